// export writes reservations to a CSV archive.  It is meant to run from
// cron on the first day of each month:
//
//	export                      previous calendar month
//	export --from 2025-01-01 --to 2025-03-31
//	export --past               everything dated before today
//
// Files land in --dir (default EXPORT_DIR).  Nothing is written when the
// selection is empty.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/iliyamo/room-reservation/internal/config"
	"github.com/iliyamo/room-reservation/internal/database"
	"github.com/iliyamo/room-reservation/internal/export"
	"github.com/iliyamo/room-reservation/internal/logging"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/schedule"
	"github.com/iliyamo/room-reservation/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Error().Err(err).Msg("export failed")
		os.Exit(1)
	}
}

// options is the parsed command line.
type options struct {
	Dir  string
	From string
	To   string
	File string
}

// parseOptions resolves flags into a date range and file name relative to
// now.
func parseOptions(args []string, now time.Time) (options, error) {
	var (
		opts options
		past bool
	)
	flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
	flagSet.StringVar(&opts.Dir, "dir", config.ExportDir(), "directory for the CSV file")
	flagSet.StringVar(&opts.From, "from", "", "first date to export (YYYY-MM-DD)")
	flagSet.StringVar(&opts.To, "to", "", "last date to export (YYYY-MM-DD)")
	flagSet.BoolVar(&past, "past", false, "export every reservation dated before today")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	switch {
	case past && (opts.From != "" || opts.To != ""):
		return options{}, errors.New("--past cannot be combined with --from/--to")
	case past:
		opts.To = now.AddDate(0, 0, -1).Format(schedule.DateLayout)
		opts.File = export.PastName(now)
	case opts.From != "" || opts.To != "":
		for _, p := range []*string{&opts.From, &opts.To} {
			if *p == "" {
				continue
			}
			d, err := schedule.NormalizeDate(*p)
			if err != nil {
				return options{}, fmt.Errorf("invalid date %q: %w", *p, err)
			}
			*p = d
		}
		if opts.From != "" && opts.To != "" && opts.From > opts.To {
			return options{}, errors.New("--from is after --to")
		}
		opts.File = export.RangeName(opts.From, opts.To)
	default:
		y, m := schedule.PreviousMonth(now)
		opts.From, opts.To = schedule.MonthRange(y, m)
		opts.File = export.MonthName(y, m)
	}
	return opts, nil
}

func run(args []string) error {
	config.LoadDotEnv()
	lc := config.LoadLog()
	logging.Setup(lc.Level, lc.Format)

	opts, err := parseOptions(args, time.Now())
	if err != nil {
		return err
	}

	db, err := database.Open(config.LoadDB())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc := service.NewReservationService(repository.NewReservationRepo(db), nil, nil, nil)
	path, n, err := write(ctx, svc, opts)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Info().Str("from", opts.From).Str("to", opts.To).Msg("no reservations to export")
		return nil
	}
	log.Info().Int("count", n).Str("file", path).Msg("export written")
	return nil
}

// exporter is the part of ReservationService used here.
type exporter interface {
	Export(ctx context.Context, id service.Identity, from, to string) ([]model.Reservation, error)
}

// write exports the selection to opts.Dir/opts.File.  It returns the path
// and row count; no file is created for an empty selection.
func write(ctx context.Context, svc exporter, opts options) (string, int, error) {
	rows, err := svc.Export(ctx, service.SystemIdentity, opts.From, opts.To)
	if err != nil {
		return "", 0, err
	}
	if len(rows) == 0 {
		return "", 0, nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create %s: %w", opts.Dir, err)
	}
	path := filepath.Join(opts.Dir, opts.File)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	if err := export.WriteCSV(f, rows, export.StyleArchive); err != nil {
		_ = f.Close()
		return "", 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", 0, err
	}
	return path, len(rows), nil
}
