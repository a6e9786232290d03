package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/TimKotowski/queuectl/internal/queuedb"
	"github.com/TimKotowski/queuectl/migrations"
)

const (
	postgresDefaultPassword = "password"
	postgresDefaultUser     = "queuectl"
	postgresDefaultDB       = "queuectl"

	tag = "17"
)

type Resource struct {
	Dsn string

	DB *bun.DB

	ContainerName string

	ContainerID string
}

// NewPool connects to the local Docker daemon, skipping the test when none is reachable.
func NewPool(t *testing.T) *dockertest.Pool {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	return pool
}

// SetUp starts a throwaway Postgres container with the queue schema migrated.
func SetUp(pool *dockertest.Pool, t *testing.T) Resource {
	ctx := context.Background()
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        tag,
		Env: []string{
			"POSTGRES_PASSWORD=" + postgresDefaultPassword,
			"POSTGRES_USER=" + postgresDefaultUser,
			"POSTGRES_DB=" + postgresDefaultDB,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			assert.NoError(t, err)
		}
	})

	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresDefaultUser,
		postgresDefaultPassword,
		resource.GetBoundIP("5432/tcp"),
		resource.GetPort("5432/tcp"),
		postgresDefaultDB,
	)

	pool.MaxWait = 20 * time.Second
	db, err := pgIsReady(ctx, pool, databaseURL)
	require.NoError(t, err)

	if db == nil {
		require.NoError(t, errors.New("something went horribly wrong, db connection unsuccessful"))
	}
	t.Cleanup(func() { _ = db.Close() })

	err = migrations.Migrate(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return Resource{
		Dsn:           databaseURL,
		DB:            db,
		ContainerName: resource.Container.Name,
		ContainerID:   resource.Container.ID,
	}
}

func pgIsReady(ctx context.Context, pool *dockertest.Pool, dsn string) (*bun.DB, error) {
	var err error
	var db *bun.DB

	if err := pool.Retry(func() error {
		db, err = queuedb.Open(ctx, queuedb.ConnOptions{Driver: queuedb.DriverPostgres, DSN: dsn})
		return err
	}); err != nil {
		return nil, err
	}

	return db, nil
}
