package queuedb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

type SettingsDB interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set inserts or overwrites key.
	Set(ctx context.Context, key, value string) error

	All(ctx context.Context) ([]Setting, error)
}

type settingsDB struct {
	db *bun.DB
}

func NewSettingsDB(db *bun.DB) SettingsDB {
	return &settingsDB{
		db: db,
	}
}

func (s *settingsDB) Get(ctx context.Context, key string) (string, bool, error) {
	var setting Setting
	err := s.db.NewSelect().
		Model(&setting).
		Where("? = ?", bun.Ident("key"), key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return setting.Value, true, nil
}

func (s *settingsDB) Set(ctx context.Context, key, value string) error {
	_, err := s.db.NewInsert().
		Model(&Setting{Key: key, Value: value}).
		On("CONFLICT (?) DO UPDATE", bun.Ident("key")).
		Set("? = EXCLUDED.?", bun.Ident("value"), bun.Ident("value")).
		Exec(ctx)

	return err
}

func (s *settingsDB) All(ctx context.Context) ([]Setting, error) {
	settings := make([]Setting, 0)
	err := s.db.NewSelect().
		Model(&settings).
		Order("key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return settings, nil
}
