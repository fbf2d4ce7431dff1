package reminder

import (
	"container/heap"
	"context"
	"time"

	"github.com/jmhodges/clock"

	"ecocal/internal/log"
	"ecocal/internal/metrics"
	"ecocal/internal/model"
	"ecocal/internal/notify"
)

// DefaultTick is the period of the scheduler loop. Reminders are not
// latency-sensitive; a coarse tick is deliberate.
const DefaultTick = time.Second

const notifyTimeout = 15 * time.Second

// ScheduleAll computes one ReminderTask per event: the event's date minus
// leadDays, at sendHour o'clock in the target zone. Tasks whose send time
// has already passed at scheduling time are dropped, not fired immediately,
// so restarting near old events never spams recipients.
func ScheduleAll(events []model.Event, recipients []string, now time.Time, leadDays, sendHour int) []model.ReminderTask {
	tasks := make([]model.ReminderTask, 0, len(events))
	for _, ev := range events {
		if ev.Day.IsZero() {
			continue
		}
		d := ev.Day.AddDate(0, 0, -leadDays)
		sendAt := time.Date(d.Year(), d.Month(), d.Day(), sendHour, 0, 0, 0, d.Location())
		if !sendAt.After(now) {
			continue
		}
		tasks = append(tasks, model.ReminderTask{
			Event:      ev,
			Recipients: recipients,
			SendAt:     sendAt,
		})
	}
	return tasks
}

// Scheduler owns the pending-task set. Batches are handed over a channel and
// the run loop is the only goroutine that touches the queue, so there is no
// shared-mutable state beyond the handoff itself.
type Scheduler struct {
	notifier notify.Notifier
	tick     time.Duration
	clk      clock.Clock
	batches  chan []model.ReminderTask
	queue    *taskQueue
}

func New(n notify.Notifier, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		notifier: n,
		tick:     tick,
		clk:      clock.New(),
		batches:  make(chan []model.ReminderTask, 8),
		queue:    newTaskQueue(),
	}
}

// Schedule hands a batch of tasks to the run loop. Ownership of the slice
// transfers with the send; callers must not touch it afterwards.
func (s *Scheduler) Schedule(tasks []model.ReminderTask) {
	if len(tasks) == 0 {
		return
	}
	metrics.RemindersScheduled.Add(float64(len(tasks)))
	s.batches <- tasks
}

// Pending reports the number of tasks waiting to fire. Only safe from the
// run-loop goroutine or before Run starts; tests use it after driving Tick.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Tick removes and returns every pending task whose send time is at or
// before now. A task fires at most once: it leaves the queue on fire, so a
// backward clock jump can delay a task but never duplicate it.
func (s *Scheduler) Tick(now time.Time) []model.ReminderTask {
	var fired []model.ReminderTask
	for {
		head := s.queue.Peek()
		if head == nil || now.Before(head.SendAt) {
			break
		}
		task := heap.Pop(s.queue).(*model.ReminderTask)
		fired = append(fired, *task)
	}
	return fired
}

// ingest moves a handed-off batch into the pending queue.
func (s *Scheduler) ingest(batch []model.ReminderTask) {
	for i := range batch {
		heap.Push(s.queue, &batch[i])
	}
	log.Info("reminder batch scheduled", "batch_size", len(batch), "pending", s.queue.Len())
}

// Run drives the periodic tick until ctx is canceled. Pending tasks are not
// persisted; cancellation drops whatever remains.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reminder scheduler stopping", "pending_dropped", s.queue.Len())
			return
		case batch := <-s.batches:
			s.ingest(batch)
		case <-ticker.C:
			for _, task := range s.Tick(s.clk.Now()) {
				s.dispatch(task)
			}
		}
	}
}

// dispatch sends one reminder in the background. A delivery failure is
// logged and counted; it never touches other pending tasks.
func (s *Scheduler) dispatch(task model.ReminderTask) {
	metrics.RemindersFired.Inc()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, task.Event, task.Recipients); err != nil {
			log.Error("reminder notification failed", err,
				"notifier", s.notifier.Name(),
				"event", task.Event.Name,
				"recipients", len(task.Recipients),
			)
			return
		}
		log.Info("reminder sent",
			"notifier", s.notifier.Name(),
			"event", task.Event.Name,
			"recipients", len(task.Recipients),
		)
	}()
}
