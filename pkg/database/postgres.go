package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewPostgres opens a connection pool from either a full DSN or a plain
// host:port with local-development defaults, then brings the schema up to
// date.
func NewPostgres(pgURL, pgHost string) (*sql.DB, error) {
	var connector *pgdriver.Connector
	if pgURL != "" {
		connector = pgdriver.NewConnector(pgdriver.WithDSN(pgURL))
	} else {
		connector = pgdriver.NewConnector(
			pgdriver.WithAddr(pgHost),
			pgdriver.WithUser("postgres"),
			pgdriver.WithPassword("postgres"),
			pgdriver.WithDatabase("postgres"),
			pgdriver.WithInsecure(true),
		)
	}

	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging db: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return db, nil
}

func applyMigrations(db *sql.DB) error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_sessions",
				Up: []string{`
					CREATE TABLE IF NOT EXISTS sessions (
						phone_number TEXT PRIMARY KEY,
						data JSONB NOT NULL,
						updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
				},
				Down: []string{`DROP TABLE sessions`},
			},
		},
	}

	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return err
	}

	slog.Info("database migrations applied", "count", n)
	return nil
}
