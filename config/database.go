package config

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// NewDatabase opens the SQL store for the sqlite and postgres drivers.
func NewDatabase(cfg *Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.StoreDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.StoreDriver, err)
	}
	if cfg.StoreDriver == "sqlite" {
		// one writer at a time, and :memory: must stay on one connection
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", cfg.StoreDriver, err)
	}
	return db, nil
}
