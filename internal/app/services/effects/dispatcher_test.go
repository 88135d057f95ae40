package effects

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/audit"
)

func TestDispatcherRunsEnqueuedTasks(t *testing.T) {
	auditLog := audit.NewLog(8, nil)
	d := NewDispatcher(4, auditLog, nil)

	var ran int32
	d.Enqueue(Task{
		Name:    "notification.test",
		Actor:   "admin-1",
		Subject: "a1",
		Run: func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
	})
	d.Drain(context.Background())

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("task did not run")
	}
	entries := auditLog.List(0)
	if len(entries) != 1 || entries[0].Outcome != "ok" {
		t.Fatalf("audit = %+v", entries)
	}
}

func TestDispatcherAuditsFailures(t *testing.T) {
	auditLog := audit.NewLog(8, nil)
	d := NewDispatcher(4, auditLog, nil)

	d.Enqueue(Task{
		Name: "email.test",
		Run:  func(context.Context) error { return errors.New("boom") },
	})
	d.Drain(context.Background())

	entries := auditLog.List(0)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].Outcome != "failed" || entries[0].Detail != "boom" {
		t.Fatalf("entry = %+v", entries[0])
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	auditLog := audit.NewLog(8, nil)
	d := NewDispatcher(1, auditLog, nil)

	d.Enqueue(Task{Name: "first", Run: func(context.Context) error { return nil }})
	d.Enqueue(Task{Name: "second", Run: func(context.Context) error { return nil }})

	var dropped bool
	for _, e := range auditLog.List(0) {
		if e.Action == "second" && e.Outcome == "dropped" {
			dropped = true
		}
	}
	if !dropped {
		t.Fatalf("overflow task was not recorded as dropped")
	}
}

func TestDispatcherLifecycle(t *testing.T) {
	d := NewDispatcher(4, nil, nil)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// starting twice is a no-op
	if err := d.Start(ctx); err != nil {
		t.Fatalf("double start: %v", err)
	}

	done := make(chan struct{})
	d.Enqueue(Task{Name: "bg", Run: func(context.Context) error {
		close(done)
		return nil
	}})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("background task never ran")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := d.Stop(stopCtx); err != nil {
		t.Fatalf("double stop: %v", err)
	}
}
