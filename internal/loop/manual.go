package loop

import (
	"sync"
	"time"
)

// Manual is a Scheduler whose polls only run when Tick is called.
type Manual struct {
	mu    sync.Mutex
	polls []*manualPoll
}

// NewManual creates a manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

type manualPoll struct {
	interval  time.Duration
	fn        func()
	cancelled bool
	m         *Manual
}

func (p *manualPoll) Cancel() {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	p.cancelled = true
}

// Every implements Scheduler.
func (m *Manual) Every(interval time.Duration, fn func()) Poll {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &manualPoll{interval: interval, fn: fn, m: m}
	m.polls = append(m.polls, p)
	return p
}

// Tick runs every live poll once, in creation order. Polls created during
// the tick run on the next one; polls cancelled during the tick are skipped.
func (m *Manual) Tick() {
	m.mu.Lock()
	live := make([]*manualPoll, 0, len(m.polls))
	for _, p := range m.polls {
		if !p.cancelled {
			live = append(live, p)
		}
	}
	m.polls = live
	snapshot := append([]*manualPoll(nil), live...)
	m.mu.Unlock()

	for _, p := range snapshot {
		m.mu.Lock()
		cancelled := p.cancelled
		m.mu.Unlock()
		if cancelled {
			continue
		}
		p.fn()
	}
}

// TickN calls Tick n times.
func (m *Manual) TickN(n int) {
	for i := 0; i < n; i++ {
		m.Tick()
	}
}

// Active returns the number of polls that have not been cancelled.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.polls {
		if !p.cancelled {
			n++
		}
	}
	return n
}

// Intervals returns the intervals of the live polls, in creation order.
func (m *Manual) Intervals() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []time.Duration
	for _, p := range m.polls {
		if !p.cancelled {
			out = append(out, p.interval)
		}
	}
	return out
}
