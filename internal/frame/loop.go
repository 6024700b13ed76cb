// Package frame runs a unit of work once per display frame, rescheduling it
// after each completed tick until cancelled.
package frame

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDone may be returned by a tick to end the loop without reporting an
// error from Wait.
var ErrDone = errors.New("frame loop done")

// ErrRunning is returned by Start when the loop is already active.
var ErrRunning = errors.New("frame loop already running")

// TickFunc is called once per frame.
type TickFunc func(now time.Time) error

// Loop is a cooperative per-frame scheduler. The next tick is armed only after
// the current one returns, so a slow tick delays the loop instead of piling
// up work.
type Loop struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewLoop creates a loop running at fps frames per second.
func NewLoop(fps int) *Loop {
	if fps < 1 {
		fps = 60
	}
	return &Loop{interval: time.Second / time.Duration(fps)}
}

// Interval returns the frame period.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Start launches the loop. The first tick runs immediately.
func (l *Loop) Start(ctx context.Context, tick TickFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		select {
		case <-l.done:
			l.cancel()
		default:
			return ErrRunning
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.err = nil

	go func() {
		defer close(done)
		err := run(ctx, l.interval, tick)

		l.mu.Lock()
		if !errors.Is(err, ErrDone) && !errors.Is(err, context.Canceled) {
			l.err = err
		}
		l.mu.Unlock()
	}()
	return nil
}

func run(ctx context.Context, interval time.Duration, tick TickFunc) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-timer.C:
			if err := tick(now); err != nil {
				return err
			}
			timer.Reset(interval)
		}
	}
}

// Stop cancels the loop and waits for an in-flight tick to finish. Stopping
// a loop that is not running is a no-op. Stop must not be called from inside
// a tick; return ErrDone instead.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done

	l.mu.Lock()
	if l.done == done {
		l.cancel = nil
		l.done = nil
	}
	l.mu.Unlock()
}

// Wait blocks until the loop ends on its own (tick error or ErrDone) or is
// stopped, and returns the tick error if any.
func (l *Loop) Wait() error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	if done != nil {
		<-done
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Running reports whether ticks are still being scheduled.
func (l *Loop) Running() bool {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
