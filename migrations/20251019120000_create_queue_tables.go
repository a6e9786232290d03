package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/TimKotowski/queuectl/internal/queuedb"
)

func init() {
	Migrations.MustRegister(createQueueTables, dropQueueTables)
}

func createQueueTables(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*queuedb.Job)(nil),
		(*queuedb.JobLog)(nil),
		(*queuedb.Metric)(nil),
		(*queuedb.Setting)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*queuedb.Job)(nil)).
		Index("jobs_claim_idx").
		Column("queue", "state", "priority", "created_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().
		Model((*queuedb.JobLog)(nil)).
		Index("job_logs_job_id_idx").
		Column("job_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	settings := queuedb.DefaultSettings
	_, err = db.NewInsert().
		Model(&settings).
		On("CONFLICT (?) DO NOTHING", bun.Ident("key")).
		Exec(ctx)
	if err != nil {
		return err
	}

	metrics := queuedb.DefaultMetrics
	_, err = db.NewInsert().
		Model(&metrics).
		On("CONFLICT (?) DO NOTHING", bun.Ident("key")).
		Exec(ctx)

	return err
}

func dropQueueTables(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*queuedb.JobLog)(nil),
		(*queuedb.Job)(nil),
		(*queuedb.Metric)(nil),
		(*queuedb.Setting)(nil),
	}
	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
