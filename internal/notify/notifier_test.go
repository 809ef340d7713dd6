package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*Notification
	err  error
}

func (f *fakeSender) Send(n *Notification) (uint32, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, n)
	return uint32(len(f.sent)), nil
}

func TestNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, nil)

	assert.True(t, n.Notify("k", "Summary", "Body", LevelWarning))
	require.Len(t, sender.sent, 1)

	got := sender.sent[0]
	assert.Equal(t, "cuedeck", got.AppName)
	assert.Equal(t, "Summary", got.Summary)
	assert.Equal(t, "Body", got.Body)
	assert.Equal(t, "dialog-warning", got.AppIcon)
	assert.Equal(t, byte(1), got.Urgency())
	assert.Equal(t, int32(5000), got.ExpireTimeout)
	assert.Equal(t, true, got.Hints["transient"].Value())
}

func TestNotifier_Levels(t *testing.T) {
	tests := []struct {
		level   Level
		urgency byte
		icon    string
	}{
		{LevelInfo, 0, "dialog-information"},
		{LevelWarning, 1, "dialog-warning"},
		{LevelError, 2, "dialog-error"},
	}

	for _, tt := range tests {
		n := build("s", "b", tt.level)
		assert.Equal(t, tt.urgency, n.Urgency())
		assert.Equal(t, tt.icon, n.AppIcon)
	}
}

func TestNotifier_RateLimit(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, nil)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	assert.True(t, n.NotifyError("boom"))
	assert.False(t, n.NotifyError("boom"))
	assert.True(t, n.NotifyError("other"))

	clock = clock.Add(DefaultMinInterval)
	assert.True(t, n.NotifyError("boom"))
	assert.Len(t, sender.sent, 3)

	n.SetMinInterval(time.Hour)
	clock = clock.Add(time.Minute)
	assert.False(t, n.NotifyError("boom"))
}

func TestNotifier_Disabled(t *testing.T) {
	assert.False(t, NewNotifier(nil, nil).NotifyError("x"))

	sender := &fakeSender{}
	n := NewNotifier(sender, nil)
	n.SetEnabled(false)
	assert.False(t, n.NotifySaved("clap"))
	assert.Empty(t, sender.sent)

	n.SetEnabled(true)
	assert.True(t, n.NotifyDeleted("clap"))
	assert.Equal(t, "Deleted cue 'clap'.", sender.sent[0].Body)
}

func TestNotifier_SendFailure(t *testing.T) {
	n := NewNotifier(&fakeSender{err: errors.New("no daemon")}, nil)
	assert.False(t, n.NotifyError("x"))
}

func TestNotification_UrgencyDefault(t *testing.T) {
	n := &Notification{}
	assert.Equal(t, byte(1), n.Urgency())
}
