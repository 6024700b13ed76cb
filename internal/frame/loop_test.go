package frame

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopTicksUntilDone(t *testing.T) {
	l := NewLoop(200)
	var ticks atomic.Int32
	err := l.Start(context.Background(), func(time.Time) error {
		if ticks.Add(1) == 5 {
			return ErrDone
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(); err != nil {
		t.Fatalf("expected ErrDone to be swallowed, got %v", err)
	}
	if got := ticks.Load(); got != 5 {
		t.Fatalf("expected 5 ticks, got %d", got)
	}
	if l.Running() {
		t.Fatalf("expected loop to have ended")
	}
}

func TestLoopReportsTickError(t *testing.T) {
	boom := errors.New("boom")
	l := NewLoop(200)
	if err := l.Start(context.Background(), func(time.Time) error { return boom }); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestLoopStopIdempotent(t *testing.T) {
	l := NewLoop(100)
	l.Stop() // never started

	if err := l.Start(context.Background(), func(time.Time) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := l.Start(context.Background(), func(time.Time) error { return nil }); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
	l.Stop()
	l.Stop()
	if l.Running() {
		t.Fatalf("expected stopped loop")
	}
	if err := l.Wait(); err != nil {
		t.Fatalf("expected nil after stop, got %v", err)
	}
}

func TestLoopStopWaitsForTick(t *testing.T) {
	l := NewLoop(1000)
	started := make(chan struct{})
	var finished atomic.Bool
	var once atomic.Bool
	err := l.Start(context.Background(), func(time.Time) error {
		if once.CompareAndSwap(false, true) {
			close(started)
			time.Sleep(30 * time.Millisecond)
			finished.Store(true)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	l.Stop()
	if !finished.Load() {
		t.Fatalf("expected Stop to wait for the in-flight tick")
	}
}

func TestLoopContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(100)
	if err := l.Start(ctx, func(time.Time) error { return nil }); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(); err != nil {
		t.Fatalf("expected cancellation to end cleanly, got %v", err)
	}
}

func TestLoopRestartAfterDone(t *testing.T) {
	l := NewLoop(500)
	done := func(time.Time) error { return ErrDone }
	if err := l.Start(context.Background(), done); err != nil {
		t.Fatal(err)
	}
	l.Wait()
	if err := l.Start(context.Background(), done); err != nil {
		t.Fatalf("expected restart after the loop ended, got %v", err)
	}
	l.Wait()
}

func TestLoopInterval(t *testing.T) {
	if got := NewLoop(50).Interval(); got != 20*time.Millisecond {
		t.Fatalf("expected 20ms, got %v", got)
	}
	if got := NewLoop(0).Interval(); got != time.Second/60 {
		t.Fatalf("expected 60fps default, got %v", got)
	}
}
