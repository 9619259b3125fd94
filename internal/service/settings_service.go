package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/policy"
	"github.com/iliyamo/room-reservation/internal/queue"
)

// UploadPrefix is the public URL prefix under which uploaded branding files
// are served.
const UploadPrefix = "/uploads/"

// allowedUploads are the accepted branding file extensions.
var allowedUploads = []string{"png", "jpg", "jpeg", "svg", "ico"}

// SettingStore captures the persistence interactions needed by
// SettingsService.
type SettingStore interface {
	All(ctx context.Context) (map[string]string, error)
	SaveAll(ctx context.Context, values map[string]string) error
}

// Upload is one file sent for a branding key.
type Upload struct {
	Filename string
	Body     io.Reader
}

// SettingsService reads and updates branding settings.
type SettingsService struct {
	store     SettingStore
	events    EventPublisher
	uploadDir string
	now       func() time.Time
}

// NewSettingsService wires dependencies for settings.  Uploaded files are
// written below uploadDir.
func NewSettingsService(store SettingStore, events EventPublisher, uploadDir string, now func() time.Time) *SettingsService {
	if now == nil {
		now = time.Now
	}
	return &SettingsService{store: store, events: events, uploadDir: uploadDir, now: now}
}

// Get returns the stored settings merged over the defaults.
func (s *SettingsService) Get(ctx context.Context) (map[string]string, error) {
	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	out := make(map[string]string, len(model.DefaultSettings)+len(stored))
	for k, v := range model.DefaultSettings {
		out[k] = v
	}
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

func knownSetting(key string) bool {
	return slices.Contains(model.TextSettings, key) || slices.Contains(model.FileSettings, key)
}

// Update stores text values and uploaded files.  Admin only.  Unknown keys
// in text are ignored.  Files are saved as <key>_<unix>.<ext> and the
// setting holds the public path.
func (s *SettingsService) Update(ctx context.Context, actor Identity, text map[string]string, files map[string]Upload) (map[string]string, error) {
	if !policy.IsAdminOnly(actor.Role) {
		return nil, ErrPermissionDenied
	}

	values := map[string]string{}
	for k, v := range text {
		if knownSetting(k) {
			values[k] = strings.TrimSpace(v)
		}
	}

	var res ValidationResult
	for key, up := range files {
		if !slices.Contains(model.FileSettings, key) {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(up.Filename)), ".")
		if !slices.Contains(allowedUploads, ext) {
			res.add(key, "Allowed file types: "+strings.Join(allowedUploads, ", "))
		}
	}
	if !res.OK() {
		return nil, &ValidationError{Result: res}
	}

	for _, key := range model.FileSettings {
		up, ok := files[key]
		if !ok {
			continue
		}
		path, err := s.save(key, up)
		if err != nil {
			return nil, err
		}
		values[key] = path
	}

	if err := s.store.SaveAll(ctx, values); err != nil {
		return nil, storeError(err)
	}
	s.publish(ctx, actor, values)
	return s.Get(ctx)
}

// save writes up below uploadDir and returns its public path.
func (s *SettingsService) save(key string, up Upload) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	name := fmt.Sprintf("%s_%d%s", key, s.now().Unix(), ext)
	f, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, up.Body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return UploadPrefix + name, nil
}

func (s *SettingsService) publish(ctx context.Context, actor Identity, values map[string]string) {
	if s.events == nil {
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	ev := queue.NewEvent(ctx, queue.ActionSettingsUpdated, "settings", "", actor.ID, map[string]any{"keys": keys}, s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("action", ev.Action).Msg("publish event failed")
	}
}
