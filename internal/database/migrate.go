package database

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every embedded migration that has not run yet.  The
// migration files hold several statements each, hence multiStatements.
func Migrate(dsn string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "mysql://"+dsn+"&multiStatements=true")
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrator")
		}
	}()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug().Msg("schema up to date")
		return nil
	case err != nil:
		return err
	}
	v, _, _ := m.Version()
	log.Info().Uint("version", v).Msg("schema migrated")
	return nil
}
