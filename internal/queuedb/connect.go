package queuedb

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqliteParams keeps concurrent writers from failing fast with SQLITE_BUSY
// and makes every transaction take the write lock up front.
const sqliteParams = "_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

type ConnOptions struct {
	Driver    string
	DSN       string
	TLSConfig *tls.Config
}

func Open(ctx context.Context, opts ConnOptions) (*bun.DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("connection string is empty, unable to establish connection")
	}

	switch opts.Driver {
	case DriverPostgres, "":
		return openPostgres(ctx, opts)
	case DriverSQLite:
		return openSQLite(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}
}

func openPostgres(ctx context.Context, opts ConnOptions) (*bun.DB, error) {
	pgxCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection due to %w", err)
	}
	if opts.TLSConfig != nil {
		pgxCfg.ConnConfig.TLSConfig = opts.TLSConfig
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func openSQLite(ctx context.Context, dsn string) (*bun.DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	sqldb, err := sql.Open("sqlite3", dsn+sep+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database due to %w", err)
	}
	// One connection per process, cross-process writers wait on the busy timeout.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
