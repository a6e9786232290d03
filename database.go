package queuectl

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/extra/bunotel"

	"github.com/TimKotowski/queuectl/internal/queuedb"
)

func initializeDB(ctx context.Context, config *Config) (*bun.DB, error) {
	db, err := GetDBConnection(ctx, config)
	if err != nil {
		return nil, err
	}

	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName("queuectl")))
	if config.QueryDebug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db, nil
}

// GetDBConnection opens and pings the store selected by config.Driver.
func GetDBConnection(ctx context.Context, config *Config) (*bun.DB, error) {
	return queuedb.Open(ctx, queuedb.ConnOptions{
		Driver:    config.Driver,
		DSN:       config.DSN,
		TLSConfig: config.TLSConfig,
	})
}
