package notification

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	appErrors "facility-uptime-monitor/pkg/errors"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcherRunsAfterDelay(t *testing.T) {
	d := NewDispatcher(WithWorkers(1))
	d.Start()
	defer func() { _ = d.Stop(context.Background()) }()

	var ran atomic.Int32
	start := time.Now()
	var elapsed atomic.Int64
	if err := d.Schedule(20*time.Millisecond, func(context.Context) {
		elapsed.Store(int64(time.Since(start)))
		ran.Add(1)
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	waitFor(t, func() bool { return ran.Load() == 1 })
	if time.Duration(elapsed.Load()) < 20*time.Millisecond {
		t.Fatalf("task ran before its delay: %s", time.Duration(elapsed.Load()))
	}
}

func TestDispatcherStopFlushesPending(t *testing.T) {
	d := NewDispatcher(WithWorkers(2))
	d.Start()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if err := d.Schedule(time.Hour, func(context.Context) { ran.Add(1) }); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if d.Pending() != 5 {
		t.Fatalf("expected 5 pending tasks, got %d", d.Pending())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ran.Load() != 5 {
		t.Fatalf("expected all 5 pending tasks to run on stop, got %d", ran.Load())
	}

	err := d.Schedule(0, func(context.Context) {})
	if !errors.Is(err, appErrors.ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown after stop, got %v", err)
	}
}

func TestDispatcherStopWithoutStartRunsInline(t *testing.T) {
	d := NewDispatcher()
	var ran atomic.Int32
	_ = d.Schedule(time.Hour, func(context.Context) { ran.Add(1) })

	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ran.Load() != 1 {
		t.Fatalf("expected pending task to run inline, got %d runs", ran.Load())
	}
}

func TestDispatcherStopWithoutStartRunsFiredTasks(t *testing.T) {
	d := NewDispatcher(WithQueueSize(1))
	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		if err := d.Schedule(0, func(context.Context) { ran.Add(1) }); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	// All timers have fired: one task sits in the queue, the rest wait on it.
	waitFor(t, func() bool { return d.Pending() == 0 })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ran.Load() != 3 {
		t.Fatalf("expected fired tasks to run on stop, got %d", ran.Load())
	}
}

func TestDispatcherSurvivesPanickingTask(t *testing.T) {
	d := NewDispatcher(WithWorkers(1))
	d.Start()
	defer func() { _ = d.Stop(context.Background()) }()

	var ran atomic.Int32
	_ = d.Schedule(0, func(context.Context) { panic("boom") })
	_ = d.Schedule(0, func(context.Context) { ran.Add(1) })

	waitFor(t, func() bool { return ran.Load() == 1 })
}
