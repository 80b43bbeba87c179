package notification

import (
	"context"
	"sync"
	"time"

	"facility-uptime-monitor/internal/logger"
	appErrors "facility-uptime-monitor/pkg/errors"

	"go.uber.org/zap"
)

// Task is a unit of delayed work. It receives a context bounded by the task timeout.
type Task func(ctx context.Context)

// Scheduler runs a task after a delay. Scheduled tasks cannot be cancelled.
type Scheduler interface {
	Schedule(delay time.Duration, task Task) error
}

type timerEntry struct {
	timer *time.Timer
	task  Task
}

// Dispatcher holds delayed tasks on timers and runs them on a fixed worker pool.
// Stop fires every pending timer immediately so nothing scheduled is dropped.
type Dispatcher struct {
	workers     int
	taskTimeout time.Duration
	queue       chan Task

	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]timerEntry
	started bool
	stopped bool

	inflight sync.WaitGroup
	wg       sync.WaitGroup
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Task, n)
		}
	}
}

func WithTaskTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.taskTimeout = timeout
		}
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		workers:     2,
		taskTimeout: 30 * time.Second,
		queue:       make(chan Task, 256),
		timers:      make(map[uint64]timerEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	logger.Info("Notification dispatcher started", zap.Int("workers", d.workers))
}

func (d *Dispatcher) Schedule(delay time.Duration, task Task) error {
	if task == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return appErrors.ErrShuttingDown
	}

	d.nextID++
	id := d.nextID
	d.timers[id] = timerEntry{
		timer: time.AfterFunc(delay, func() { d.fire(id) }),
		task:  task,
	}
	return nil
}

// Pending reports how many tasks are waiting on their timer.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// fire hands the task to the queue. Whoever removes the entry from the map owns the task.
func (d *Dispatcher) fire(id uint64) {
	d.mu.Lock()
	entry, ok := d.timers[id]
	if ok {
		delete(d.timers, id)
		d.inflight.Add(1)
	}
	d.mu.Unlock()

	if !ok {
		return
	}
	defer d.inflight.Done()
	d.queue <- entry.task
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for task := range d.queue {
		d.run(id, task)
	}
}

func (d *Dispatcher) run(worker int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Notification task panicked",
				zap.Int("worker", worker),
				zap.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()
	task(ctx)
}

// Stop flushes pending timers, drains the queue and waits for the workers or ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started := d.started

	flush := make([]Task, 0, len(d.timers))
	for id, entry := range d.timers {
		entry.timer.Stop()
		flush = append(flush, entry.task)
		delete(d.timers, id)
	}
	d.mu.Unlock()

	if len(flush) > 0 {
		logger.Info("Flushing pending notifications", zap.Int("count", len(flush)))
	}

	if !started {
		for _, task := range flush {
			d.run(-1, task)
		}
		return d.drainUnstarted(ctx)
	}

	for _, task := range flush {
		d.queue <- task
	}
	d.inflight.Wait()
	close(d.queue)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainUnstarted runs tasks that timers pushed into the queue while no worker was
// running, including fires still blocked on a full queue.
func (d *Dispatcher) drainUnstarted(ctx context.Context) error {
	fired := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(fired)
	}()

	for {
		select {
		case task := <-d.queue:
			d.run(-1, task)
		case <-fired:
			for {
				select {
				case task := <-d.queue:
					d.run(-1, task)
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
