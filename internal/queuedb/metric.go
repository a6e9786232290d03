package queuedb

import "github.com/uptrace/bun"

const (
	MetricCompletedJobs = "completed_jobs"
	MetricDeadJobs      = "dead_jobs"
	MetricAvgRuntimeMs  = "avg_runtime_ms"
)

type Metric struct {
	bun.BaseModel `bun:"table:metrics"`

	Key   string  `bun:"key,pk"`
	Value float64 `bun:"value,notnull"`
}

// Setting is a runtime tunable stored in the config table.
type Setting struct {
	bun.BaseModel `bun:"table:config"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

const (
	SettingBackoffBase    = "backoff_base"
	SettingMaxRetries     = "max_retries"
	SettingPollIntervalMs = "poll_interval_ms"
	SettingMaxBackoffSec  = "max_backoff_sec"
)

// DefaultSettings are seeded on first migration and never overwrite existing values.
var DefaultSettings = []Setting{
	{Key: SettingBackoffBase, Value: "2"},
	{Key: SettingMaxRetries, Value: "3"},
	{Key: SettingPollIntervalMs, Value: "1000"},
	{Key: SettingMaxBackoffSec, Value: "0"},
}

var DefaultMetrics = []Metric{
	{Key: MetricCompletedJobs},
	{Key: MetricDeadJobs},
	{Key: MetricAvgRuntimeMs},
}
