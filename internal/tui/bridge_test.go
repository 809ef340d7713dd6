package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cuedeck/internal/model"
)

type sink struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sink) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestBridge_QueuesUntilAttached(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	var notified []string
	b.OnError = func(msg string) { notified = append(notified, msg) }

	cb := b.Callbacks()
	cb.OnCatalogChanged()
	cb.OnPlaybackEnded(model.Cue{Name: "bell"})
	cb.OnLevelUpdate(0.25)
	cb.OnTimerUpdate(time.Second)
	cb.OnError("boom")

	s := &sink{}
	b.Attach(s)

	require.Eventually(t, func() bool { return s.count() == 5 }, time.Second, time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, catalogChangedMsg{}, s.msgs[0])
	assert.Equal(t, playbackEndedMsg{cue: model.Cue{Name: "bell"}}, s.msgs[1])
	assert.Equal(t, levelMsg(0.25), s.msgs[2])
	assert.Equal(t, timerMsg(time.Second), s.msgs[3])
	assert.Equal(t, errorMsg("boom"), s.msgs[4])
	assert.Equal(t, []string{"boom"}, notified)
}

func TestBridge_DropsMeterUpdatesWhenFull(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	cb := b.Callbacks()
	for i := 0; i < bridgeBuffer+10; i++ {
		cb.OnLevelUpdate(0.1)
	}
	assert.Len(t, b.queue, bridgeBuffer)
}

func TestBridge_Close(t *testing.T) {
	b := NewBridge()
	b.Attach(&sink{})
	b.Close()
	b.Close()

	// Sends after close are ignored
	b.Callbacks().OnCatalogChanged()
	b.Attach(&sink{})
}
