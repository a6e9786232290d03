package queuectl

import (
	"container/heap"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduledTask is a maintenance handler waiting for its next cron tick.
type scheduledTask struct {
	meta      JobMeta
	schedule  cron.Schedule
	nextRunAt time.Time
}

// advance moves the task to its first tick strictly after now.
func (s *scheduledTask) advance(now time.Time) {
	s.nextRunAt = s.schedule.Next(now)
}

// taskHeap orders tasks by next tick, then by name so simultaneous ticks
// dispatch in a stable order.
type taskHeap []*scheduledTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].nextRunAt.Equal(h[j].nextRunAt) {
		return h[i].meta.Name() < h[j].meta.Name()
	}
	return h[i].nextRunAt.Before(h[j].nextRunAt)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*scheduledTask)) }

func (h *taskHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return last
}

// maintenanceSchedule is a min-heap of tasks keyed by their next tick.
type maintenanceSchedule struct {
	tasks taskHeap
}

func newMaintenanceSchedule() *maintenanceSchedule {
	return &maintenanceSchedule{}
}

func (m *maintenanceSchedule) add(task *scheduledTask) {
	heap.Push(&m.tasks, task)
}

func (m *maintenanceSchedule) next() *scheduledTask {
	return heap.Pop(&m.tasks).(*scheduledTask)
}

// due pops every task whose tick is at or before now.
func (m *maintenanceSchedule) due(now time.Time) []*scheduledTask {
	var ready []*scheduledTask
	for len(m.tasks) > 0 && !m.tasks[0].nextRunAt.After(now) {
		ready = append(ready, m.next())
	}
	return ready
}

func (m *maintenanceSchedule) len() int {
	return len(m.tasks)
}
