package lesson

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func TestMirrorQueueCoalesces(t *testing.T) {
	fm := &fakeMirror{}
	mq := NewMirrorQueue(fm, zaptest.NewLogger(t), time.Hour, 3)
	mq.Enqueue("alice", "L1", true)
	mq.Enqueue("alice", "L1", false)
	mq.Enqueue("bob", "L1", true)

	if err := mq.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fm.callCount() != 2 {
		t.Fatalf("mirror calls = %d, want 2", fm.callCount())
	}
	for _, c := range fm.calls {
		if c.uid == "alice" && c.favorite {
			t.Error("stale state sent for alice")
		}
	}
	if mq.Pending() != 0 {
		t.Errorf("pending = %d after successful flush", mq.Pending())
	}
}

func TestMirrorQueueRetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	fm := &fakeMirror{fail: 10}
	mq := NewMirrorQueue(fm, zaptest.NewLogger(t), time.Hour, 2)
	mq.Enqueue("alice", "L1", true)
	mq.Enqueue("alice", "L2", true)

	err := mq.Flush(ctx)
	if len(multierr.Errors(err)) != 2 {
		t.Fatalf("Flush err = %v, want two combined failures", err)
	}
	if !errors.Is(err, errUnavailable) {
		t.Errorf("combined error does not wrap the cause: %v", err)
	}
	if mq.Pending() != 2 {
		t.Fatalf("pending = %d, failures should stay queued", mq.Pending())
	}

	mq.Flush(ctx)
	if mq.Pending() != 0 {
		t.Errorf("pending = %d after max attempts", mq.Pending())
	}
}

func TestMirrorQueueRecovers(t *testing.T) {
	ctx := context.Background()
	fm := &fakeMirror{fail: 1}
	mq := NewMirrorQueue(fm, zaptest.NewLogger(t), time.Hour, 3)
	mq.Enqueue("alice", "L1", true)

	if err := mq.Flush(ctx); err == nil {
		t.Fatal("first flush should fail")
	}
	if err := mq.Flush(ctx); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if mq.Pending() != 0 {
		t.Error("op still pending after recovery")
	}
}

func TestMirrorQueueRunFlushesOnEnqueue(t *testing.T) {
	fm := &fakeMirror{}
	mq := NewMirrorQueue(fm, zaptest.NewLogger(t), time.Hour, 3)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		mq.Run(ctx)
		close(stopped)
	}()

	mq.Enqueue("alice", "L1", true)
	deadline := time.Now().Add(2 * time.Second)
	for fm.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-stopped
	if fm.callCount() != 1 {
		t.Errorf("mirror calls = %d, want 1", fm.callCount())
	}
}
