// Package eventloop runs posted tasks one at a time on a single goroutine.
//
// State owned by a Loop must only be touched from tasks running on it, which
// makes the loop the "UI thread" of the lesson state core: handlers and
// asynchronous continuations are marshaled onto it and never overlap.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed returned when posting to a closed loop
var ErrClosed = errors.New("event loop is closed")

// Loop serial task executor
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// New starts a loop, buffer is the number of tasks that may queue up
// before Post blocks
func New(buffer int) *Loop {
	l := &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			return
		}
	}
}

// Post schedules fn, it reports false if the loop is closed
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
//
// Must not be called from a task running on the same loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done closed when the loop stops
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close stops the loop, queued tasks are discarded
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}
