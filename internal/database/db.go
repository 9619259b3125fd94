package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/room-reservation/internal/config"
)

// DSN builds a go-sql-driver/mysql data source name for cfg.
// clientFoundRows makes UPDATE report matched rather than changed rows, so
// an update that rewrites identical values is not mistaken for a missing
// row.
func DSN(cfg config.DBConfig) string {
	auth := cfg.User
	if cfg.Pass != "" {
		auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
	}
	// parseTime=true -> DATETIME/DATE -> time.Time | loc=Local keeps dates on the server's calendar
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local&clientFoundRows=true",
		auth, cfg.Host, cfg.Port, cfg.Name)
}

// Open connects to MySQL, verifies the connection and applies pending
// migrations when cfg.AutoMigrate is set.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	dsn := DSN(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(dsn); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}
