package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Call when the loop is not running.
var ErrStopped = errors.New("loop is stopped")

// Scheduler starts fixed-interval polls.
type Scheduler interface {
	// Every runs fn every interval until the returned Poll is cancelled.
	Every(interval time.Duration, fn func()) Poll
}

// Poll is a cancellable recurring callback.
type Poll interface {
	// Cancel stops the poll. Once Cancel returns on the loop goroutine the
	// callback will not run again. Cancel is idempotent.
	Cancel()
}

// Loop is the foreground event loop.
type Loop struct {
	logger *slog.Logger

	tasks  chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a new loop. Tasks may be posted before Start; they run once
// the loop starts.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		logger: logger,
		tasks:  make(chan func(), 64),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the loop goroutine until ctx is cancelled or Stop is called.
// A loop can only be started once.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true

	go l.run(ctx)
	l.logger.Debug("loop started")
}

// Stop stops the loop and waits for the goroutine to exit.
// Tasks still queued are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	started := l.started
	close(l.stopCh)
	l.mu.Unlock()

	if started {
		<-l.doneCh
	} else {
		close(l.doneCh)
	}
	l.logger.Debug("loop stopped")
}

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}

// Post queues fn to run on the loop. Returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.doneCh:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.doneCh:
		return false
	}
}

// Call runs fn on the loop and waits for its result.
// It must not be called from the loop goroutine itself.
func (l *Loop) Call(fn func() error) error {
	result := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("task panicked: %v", r)
				panic(r)
			}
		}()
		result <- fn()
	}
	if !l.Post(task) {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-l.doneCh:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Every implements Scheduler. The ticker runs on its own goroutine and posts
// fn to the loop; a tick is skipped while the previous one is still queued.
func (l *Loop) Every(interval time.Duration, fn func()) Poll {
	p := &poll{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stop:
				return
			case <-l.doneCh:
				return
			case <-ticker.C:
				if !p.pending.CompareAndSwap(false, true) {
					continue
				}
				l.Post(func() {
					p.pending.Store(false)
					if p.cancelled.Load() {
						return
					}
					fn()
				})
			}
		}
	}()

	return p
}

// run is the main loop.
func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// exec runs a task, keeping the loop alive if it panics.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked on loop", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

type poll struct {
	cancelled atomic.Bool
	pending   atomic.Bool
	stop      chan struct{}
	once      sync.Once
}

func (p *poll) Cancel() {
	p.once.Do(func() {
		p.cancelled.Store(true)
		close(p.stop)
	})
}
