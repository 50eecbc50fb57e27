package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "pgx"
)

type DB struct {
	db *sql.DB
}

type Config struct {
	Driver  string `yaml:"driver"`
	ConnStr string `yaml:"conn_str"`
}

const schema = `
	create table if not exists chat_history (
		chat_id    text primary key,
		history    text not null,
		updated_at bigint not null
	)
`

func New(ctx context.Context, cfg *Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSqlite
	}

	if driver != DriverSqlite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	conn, err := sql.Open(driver, cfg.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if driver == DriverSqlite {
		// sqlite serializes writers anyway, a single conn avoids SQLITE_BUSY
		conn.SetMaxOpenConns(1)
	}

	if err = conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err = conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	return &DB{
		db: conn,
	}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
