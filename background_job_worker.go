package queuectl

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/TimKotowski/queuectl/internal/queuedb"
	"github.com/TimKotowski/queuectl/internal/telemetry"
)

const cronExecutors = 2

type JobScheduler interface {
	SetUp(metrics *telemetry.Metrics)
	Start()
	Close()
}

var (
	_ JobRegister  = &BackgroundJobProcessor{}
	_ JobScheduler = &BackgroundJobProcessor{}
)

// BackgroundJobProcessor runs maintenance handlers on their cron schedules.
type BackgroundJobProcessor struct {
	baseJobHandler
	registeredJobs map[string]HandleFunc
	jobMetas       []JobMeta
	jobsChan       chan string
	clock          clockwork.Clock
	logger         *slog.Logger
	shutdown       chan struct{}
	closeOnce      sync.Once
	wg             sync.WaitGroup
}

func NewBackgroundJobProcessor(conf *Config, db queuedb.MaintenanceDB, clock clockwork.Clock) *BackgroundJobProcessor {
	b := baseJobHandler{conf: conf, db: db}
	bgJobProcessor := &BackgroundJobProcessor{
		baseJobHandler: b,
		registeredJobs: make(map[string]HandleFunc),
		clock:          clock,
		logger:         conf.Logger,
		jobMetas:       make([]JobMeta, 0),
		jobsChan:       make(chan string),
		shutdown:       make(chan struct{}),
	}

	return bgJobProcessor
}

func (b *BackgroundJobProcessor) SetUp(metrics *telemetry.Metrics) {
	handlers := []JobHandler{
		newQueueDepthJobHandler(b.conf, b.db, metrics),
		newReindexJobHandler(b.conf, b.db),
	}

	for _, j := range handlers {
		b.Register(j)
	}
}

func (b *BackgroundJobProcessor) Register(handle JobHandler) {
	handleFunc := func(ctx context.Context) error {
		return handle.Handle(ctx)
	}
	b.registeredJobs[handle.Name()] = handleFunc
	b.jobMetas = append(b.jobMetas, handle)
}

func (b *BackgroundJobProcessor) Start() {
	b.wg.Add(1 + cronExecutors)
	go b.cronJobOrchestrator()

	for range cronExecutors {
		go b.cronJobExecutor()
	}
}

// Close stops scheduling and waits for running handlers to return.
func (b *BackgroundJobProcessor) Close() {
	b.closeOnce.Do(func() {
		close(b.shutdown)
	})
	b.wg.Wait()
}

func (b *BackgroundJobProcessor) cronJobOrchestrator() {
	defer b.wg.Done()

	tasks := newMaintenanceSchedule()
	now := b.clock.Now()
	for _, j := range b.jobMetas {
		schedule, err := cron.ParseStandard(j.PeriodicSchedule())
		if err != nil {
			b.logger.Error("unable to parse crontab schedule",
				slog.String("job", j.Name()),
				slog.String("schedule", j.PeriodicSchedule()),
				slog.String("error", err.Error()),
			)
			continue
		}
		task := &scheduledTask{meta: j, schedule: schedule}
		task.advance(now)
		tasks.add(task)
	}

	if tasks.len() == 0 {
		return
	}

	for {
		task := tasks.next()
		// An overdue cron fires right away.
		wait := max(task.nextRunAt.Sub(b.clock.Now()), 0)
		timer := b.clock.NewTimer(wait)
		select {
		case <-b.shutdown:
			timer.Stop()
			return
		case <-timer.Chan():
		}

		// A frequent cron can come due together with a slower one.
		now := b.clock.Now()
		ready := append([]*scheduledTask{task}, tasks.due(now)...)

		for _, t := range ready {
			select {
			case <-b.shutdown:
				return
			case b.jobsChan <- t.meta.Name():
			}
			t.advance(now)
			tasks.add(t)
		}
	}
}

func (b *BackgroundJobProcessor) cronJobExecutor() {
	defer b.wg.Done()

	for {
		select {
		case <-b.shutdown:
			return
		case cronName := <-b.jobsChan:
			ctx, cancel := context.WithTimeout(context.Background(), b.conf.MaintenanceTimeout)
			handler := b.registeredJobs[cronName]
			if err := handler(ctx); err != nil {
				b.logger.Error("maintenance job failed",
					slog.String("job", cronName),
					slog.String("error", err.Error()),
				)
			}
			cancel()
		}
	}
}
