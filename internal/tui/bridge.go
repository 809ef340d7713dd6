package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/cuedeck/internal/console"
	"github.com/jmylchreest/cuedeck/internal/model"
)

// Messages the bridge delivers to the program.
type (
	playbackEndedMsg  struct{ cue model.Cue }
	levelMsg          float64
	timerMsg          time.Duration
	catalogChangedMsg struct{}
	errorMsg          string
)

// bridgeBuffer bounds how far console events may run ahead of the UI.
const bridgeBuffer = 256

// Bridge turns console callbacks into Bubble Tea messages. Callbacks never
// block: events are queued and pumped into the program once it is attached.
// Level and timer updates are dropped when the queue is full.
type Bridge struct {
	queue chan tea.Msg
	done  chan struct{}

	mu       sync.Mutex
	attached bool
	closed   bool
	wg       sync.WaitGroup

	// OnError, if set, also receives every error message.
	OnError func(message string)
}

// NewBridge creates an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{
		queue: make(chan tea.Msg, bridgeBuffer),
		done:  make(chan struct{}),
	}
}

// Callbacks returns console callbacks that feed this bridge.
func (b *Bridge) Callbacks() console.Callbacks {
	return console.Callbacks{
		OnPlaybackEnded: func(cue model.Cue) {
			b.send(playbackEndedMsg{cue: cue}, true)
		},
		OnLevelUpdate: func(level float64) {
			b.send(levelMsg(level), false)
		},
		OnTimerUpdate: func(elapsed time.Duration) {
			b.send(timerMsg(elapsed), false)
		},
		OnCatalogChanged: func() {
			b.send(catalogChangedMsg{}, true)
		},
		OnError: func(message string) {
			if b.OnError != nil {
				b.OnError(message)
			}
			b.send(errorMsg(message), true)
		},
	}
}

// Attach starts forwarding queued events to p.
func (b *Bridge) Attach(p interface{ Send(tea.Msg) }) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached || b.closed {
		return
	}
	b.attached = true

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case msg := <-b.queue:
				p.Send(msg)
			case <-b.done:
				return
			}
		}
	}()
}

// Close stops forwarding. Pending events are discarded.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Bridge) send(msg tea.Msg, important bool) {
	select {
	case <-b.done:
		return
	default:
	}

	if !important {
		select {
		case b.queue <- msg:
		default:
		}
		return
	}

	select {
	case b.queue <- msg:
	case <-b.done:
	}
}
