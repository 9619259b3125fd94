package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{User: "app", Pass: "s3cret", Host: "db", Port: "3306", Name: "rooms"})
	assert.True(t, strings.HasPrefix(dsn, "app:s3cret@tcp(db:3306)/rooms?"))
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")

	noPass := DSN(config.DBConfig{User: "app", Host: "db", Port: "3306", Name: "rooms"})
	assert.True(t, strings.HasPrefix(noPass, "app@tcp(db:3306)/rooms?"))
}

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		base := strings.TrimPrefix(n, "migrations/")
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			ups[strings.TrimSuffix(base, ".up.sql")] = true
		case strings.HasSuffix(base, ".down.sql"):
			downs[strings.TrimSuffix(base, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", base)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSchemaHasDateLockTable(t *testing.T) {
	b, err := migrations.ReadFile("migrations/000002_reservations.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "reservation_date_locks")
}
