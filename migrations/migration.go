package migrations

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// Migrate applies pending migrations and reports the applied group on logger.
func Migrate(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	m := migrate.NewMigrator(db, Migrations)
	if err := m.Init(ctx); err != nil {
		return err
	}

	group, err := m.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		logger.Debug("no new migrations were applied")
	} else {
		logger.Info("applied migration group", slog.String("group", group.String()))
	}

	return nil
}
