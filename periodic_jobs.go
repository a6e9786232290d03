package queuectl

import (
	"context"

	"github.com/TimKotowski/queuectl/internal/queuedb"
	"github.com/TimKotowski/queuectl/internal/telemetry"
)

var (
	_ JobHandler = &queueDepthJobHandler{}
	_ JobHandler = &reindexJobHandler{}
)

type HandleFunc = func(ctx context.Context) error

type JobRegister interface {
	Register(handle JobHandler)
}

type JobHandler interface {
	JobMeta
	Handle(ctx context.Context) error
}

type JobMeta interface {
	PeriodicSchedule() string
	Name() string
}

type baseJobHandler struct {
	db   queuedb.MaintenanceDB
	conf *Config
}

// queueDepthJobHandler publishes per queue and state job counts to the jobs gauge.
type queueDepthJobHandler struct {
	baseJobHandler
	metrics *telemetry.Metrics
}

func newQueueDepthJobHandler(conf *Config, db queuedb.MaintenanceDB, metrics *telemetry.Metrics) *queueDepthJobHandler {
	return &queueDepthJobHandler{
		baseJobHandler: baseJobHandler{
			db:   db,
			conf: conf,
		},
		metrics: metrics,
	}
}

func (q *queueDepthJobHandler) Handle(ctx context.Context) error {
	depths, err := q.db.QueueDepths(ctx)
	if err != nil {
		return err
	}

	q.metrics.Jobs.Reset()
	for _, d := range depths {
		q.metrics.Jobs.WithLabelValues(d.Queue, d.State).Set(float64(d.Count))
	}

	return nil
}

func (q *queueDepthJobHandler) PeriodicSchedule() string {
	return "@every 15s"
}

func (q *queueDepthJobHandler) Name() string {
	return "Queue Depth Job"
}

type reindexJobHandler struct {
	baseJobHandler
}

func newReindexJobHandler(conf *Config, db queuedb.MaintenanceDB) *reindexJobHandler {
	return &reindexJobHandler{
		baseJobHandler: baseJobHandler{
			db:   db,
			conf: conf,
		},
	}
}

func (r *reindexJobHandler) Handle(ctx context.Context) error {
	return r.db.ReIndex(ctx)
}

// PeriodicSchedule Start little past beginning of 12am to prevent scheduling oddities.
func (r *reindexJobHandler) PeriodicSchedule() string {
	return "5 0 * * *"
}

func (r *reindexJobHandler) Name() string {
	return "Reindex Job"
}
