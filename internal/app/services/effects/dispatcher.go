// Package effects runs best-effort side effects decoupled from the
// authoritative mutations that trigger them.
package effects

import (
	"context"
	"sync"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/audit"
	"github.com/pixelhaven/marketplace/internal/app/metrics"
	"github.com/pixelhaven/marketplace/internal/app/system"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

var _ system.Service = (*Dispatcher)(nil)

// Task is a named side effect. A failing task is logged and audited,
// never retried and never surfaced to the operation that enqueued it.
type Task struct {
	Name    string
	Actor   string
	Subject string
	Run     func(ctx context.Context) error
}

// Dispatcher drains enqueued tasks on a single goroutine. Enqueue never
// blocks: when the queue is full the task is dropped with a log line,
// which is acceptable for advisory notifications.
type Dispatcher struct {
	log   *logger.Logger
	audit *audit.Log
	tasks chan Task

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	taskTimeout time.Duration
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(capacity int, auditLog *audit.Log, log *logger.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = 64
	}
	if log == nil {
		log = logger.NewDefault("effects")
	}
	return &Dispatcher{
		log:         log,
		audit:       auditLog,
		tasks:       make(chan Task, capacity),
		taskTimeout: 10 * time.Second,
	}
}

func (d *Dispatcher) Name() string { return "effects-dispatcher" }

// Start begins draining the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case task := <-d.tasks:
				d.run(runCtx, task)
			}
		}
	}()

	d.log.Info("effects dispatcher started")
	return nil
}

// Stop drains nothing further and waits for the in-flight task.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.cancel()
	d.running = false
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules a task. Safe to call whether or not the dispatcher
// is running; a stopped dispatcher simply accumulates until capacity.
func (d *Dispatcher) Enqueue(task Task) {
	select {
	case d.tasks <- task:
	default:
		d.log.WithField("task", task.Name).Warn("effects queue full, dropping task")
		d.record(task, "dropped", "queue full")
	}
}

// Drain runs queued tasks on the caller's goroutine until the queue is
// empty. Intended for tests and shutdown paths that want determinism.
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		select {
		case task := <-d.tasks:
			d.run(ctx, task)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()

	if err := task.Run(taskCtx); err != nil {
		d.log.WithError(err).WithField("task", task.Name).Warn("side effect failed")
		d.record(task, "failed", err.Error())
		return
	}
	d.record(task, "ok", "")
}

func (d *Dispatcher) record(task Task, outcome, detail string) {
	metrics.RecordSideEffect(task.Name, outcome)
	if d.audit == nil {
		return
	}
	d.audit.Record(audit.Entry{
		Actor:   task.Actor,
		Action:  task.Name,
		Subject: task.Subject,
		Outcome: outcome,
		Detail:  detail,
	})
}
