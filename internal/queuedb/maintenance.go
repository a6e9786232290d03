package queuedb

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type MaintenanceDB interface {
	// ReIndex rebuilds the jobs table indexes.
	// The jobs table churns on every claim and completion, leaving the claim index with sparse pages.
	ReIndex(ctx context.Context) error

	// QueueDepths counts jobs per queue and state.
	QueueDepths(ctx context.Context) ([]QueueDepth, error)
}

type maintenanceDB struct {
	*jobDB
}

func NewMaintenanceDB(db *bun.DB) MaintenanceDB {
	return &maintenanceDB{
		jobDB: &jobDB{db: db},
	}
}

func (m *maintenanceDB) ReIndex(ctx context.Context) error {
	query := "REINDEX ?"
	if m.db.Dialect().Name() == dialect.PG {
		query = "REINDEX TABLE ?"
	}

	_, err := m.db.ExecContext(ctx, query, bun.Ident("jobs"))
	return err
}
