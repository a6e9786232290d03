package queuectl

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/TimKotowski/queuectl/internal/queuedb"
)

type settingRule struct {
	parse func(string) error
}

func intAtLeast(min int64) settingRule {
	return settingRule{parse: func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not an integer", v)
		}
		if n < min {
			return fmt.Errorf("must be at least %d", min)
		}
		return nil
	}}
}

var positiveFloat = settingRule{parse: func(v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", v)
	}
	if f <= 0 || math.IsInf(f, 0) {
		return fmt.Errorf("must be a positive finite number")
	}
	return nil
}}

var settingRules = map[string]settingRule{
	queuedb.SettingBackoffBase:    positiveFloat,
	queuedb.SettingMaxRetries:     intAtLeast(0),
	queuedb.SettingPollIntervalMs: intAtLeast(1),
	queuedb.SettingMaxBackoffSec:  intAtLeast(0),
}

// GetSetting returns a runtime setting and whether it is stored.
func (q *Queue) GetSetting(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := q.settings.Get(ctx, key)
	if err != nil {
		return "", false, persistenceError("get setting", err)
	}

	return value, ok, nil
}

// SetSetting validates and stores a runtime setting. Workers pick it up on their next read.
func (q *Queue) SetSetting(ctx context.Context, key, value string) error {
	rule, ok := settingRules[key]
	if !ok {
		return &ValidationError{Field: "key", Reason: fmt.Sprintf("unknown setting %q", key)}
	}
	if err := rule.parse(value); err != nil {
		return &ValidationError{Field: key, Reason: err.Error()}
	}

	if err := q.settings.Set(ctx, key, value); err != nil {
		return persistenceError("set setting", err)
	}

	q.logger.Info("setting updated", slog.String("key", key), slog.String("value", value))

	return nil
}

func (q *Queue) Settings(ctx context.Context) (map[string]string, error) {
	settings, err := q.settings.All(ctx)
	if err != nil {
		return nil, persistenceError("list settings", err)
	}

	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Key] = s.Value
	}

	return values, nil
}

// intSetting reads key as an integer. Missing or malformed values fall back.
func (q *Queue) intSetting(ctx context.Context, key string, fallback int64) (int64, error) {
	raw, ok, err := q.GetSetting(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.logger.Warn("malformed setting, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Int64("default", fallback),
		)
		return fallback, nil
	}

	return n, nil
}

func (q *Queue) floatSetting(ctx context.Context, key string, fallback float64) (float64, error) {
	raw, ok, err := q.GetSetting(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		q.logger.Warn("malformed setting, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Float64("default", fallback),
		)
		return fallback, nil
	}

	return f, nil
}

// pollInterval reads poll_interval_ms, falling back to Config.PollInterval.
func (q *Queue) pollInterval(ctx context.Context) (time.Duration, error) {
	fallback := q.conf.PollInterval.Milliseconds()
	ms, err := q.intSetting(ctx, queuedb.SettingPollIntervalMs, fallback)
	if err != nil {
		return 0, err
	}
	if ms <= 0 {
		ms = fallback
	}

	return time.Duration(ms) * time.Millisecond, nil
}
