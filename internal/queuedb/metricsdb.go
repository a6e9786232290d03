package queuedb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type MetricsDB interface {
	// RecordCompletionTx bumps the completed counter and folds runtimeMs into the running mean.
	// The counter row is updated first, so concurrent completions serialize on its row lock
	// and the mean is always computed against the count it belongs to.
	RecordCompletionTx(ctx context.Context, tx bun.IDB, runtimeMs float64) error

	IncrementTx(ctx context.Context, tx bun.IDB, key string) error

	All(ctx context.Context) (map[string]float64, error)
}

type metricsDB struct {
	db *bun.DB
}

func NewMetricsDB(db *bun.DB) MetricsDB {
	return &metricsDB{
		db: db,
	}
}

func (m *metricsDB) RecordCompletionTx(ctx context.Context, tx bun.IDB, runtimeMs float64) error {
	var count float64
	err := tx.NewUpdate().
		Model((*Metric)(nil)).
		Set("value = value + 1").
		Where("? = ?", bun.Ident("key"), MetricCompletedJobs).
		Returning("value").
		Scan(ctx, &count)
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", MetricCompletedJobs, err)
	}

	// new_avg = (old_avg*old_count + sample) / (old_count+1), where count is already old_count+1.
	_, err = tx.NewUpdate().
		Model((*Metric)(nil)).
		Set("value = (value * ? + ?) / ?", count-1, runtimeMs, count).
		Where("? = ?", bun.Ident("key"), MetricAvgRuntimeMs).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("updating %s: %w", MetricAvgRuntimeMs, err)
	}

	return nil
}

func (m *metricsDB) IncrementTx(ctx context.Context, tx bun.IDB, key string) error {
	_, err := tx.NewUpdate().
		Model((*Metric)(nil)).
		Set("value = value + 1").
		Where("? = ?", bun.Ident("key"), key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", key, err)
	}

	return nil
}

func (m *metricsDB) All(ctx context.Context) (map[string]float64, error) {
	var metrics []Metric
	if err := m.db.NewSelect().Model(&metrics).Scan(ctx); err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(metrics))
	for _, metric := range metrics {
		values[metric.Key] = metric.Value
	}

	return values, nil
}
