package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/TimKotowski/queuectl/internal/queuedb"
	"github.com/TimKotowski/queuectl/migrations"
)

type Resource struct {
	Dsn string

	DB *bun.DB
}

// SetUp opens a migrated SQLite store in a per-test temp dir.
// Set verbose to print every query.
func SetUp(t *testing.T, verbose bool) Resource {
	t.Helper()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "queue.db")

	db, err := queuedb.Open(ctx, queuedb.ConnOptions{Driver: queuedb.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if verbose {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	require.NoError(t, migrations.Migrate(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil))))

	return Resource{Dsn: dsn, DB: db}
}
