package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(nil)
	l.Start(context.Background())
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}

	// Call is queued behind the posts, so it observes all of them
	var snapshot []int
	require.NoError(t, l.Call(func() error {
		snapshot = append(snapshot, got...)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, snapshot)
}

func TestLoop_CallReturnsError(t *testing.T) {
	l := startLoop(t)

	want := errors.New("boom")
	assert.Equal(t, want, l.Call(func() error { return want }))
}

func TestLoop_CallAfterStop(t *testing.T) {
	l := New(nil)
	l.Start(context.Background())
	l.Stop()

	assert.ErrorIs(t, l.Call(func() error { return nil }), ErrStopped)
	assert.False(t, l.Post(func() {}))

	// Stop is idempotent
	l.Stop()
}

func TestLoop_StopWithoutStart(t *testing.T) {
	l := New(nil)
	l.Stop()
	assert.ErrorIs(t, l.Call(func() error { return nil }), ErrStopped)
}

func TestLoop_ContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(nil)
	l.Start(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
	l.Stop()
}

func TestLoop_PanicDoesNotKillLoop(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("bad task") })
	assert.NoError(t, l.Call(func() error { return nil }))
}

func TestLoop_CallPanicReturnsError(t *testing.T) {
	l := startLoop(t)

	err := l.Call(func() error { panic("bad call") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad call")
	assert.NoError(t, l.Call(func() error { return nil }))
}

func TestLoop_EveryRunsUntilCancelled(t *testing.T) {
	l := startLoop(t)

	var count atomic.Int32
	p := l.Every(time.Millisecond, func() { count.Add(1) })

	assert.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, time.Millisecond)

	// Cancel on the loop goroutine: nothing may run afterwards
	require.NoError(t, l.Call(func() error {
		p.Cancel()
		return nil
	}))
	after := count.Load()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Call(func() error { return nil }))
	assert.Equal(t, after, count.Load())

	p.Cancel() // idempotent
}

func TestLoop_EveryStopsWithLoop(t *testing.T) {
	l := New(nil)
	l.Start(context.Background())

	l.Every(time.Millisecond, func() {})
	l.Stop()
	// goleak in TestMain verifies the ticker goroutine exited
}

func TestManual_Tick(t *testing.T) {
	m := NewManual()

	var a, b int
	pa := m.Every(100*time.Millisecond, func() { a++ })
	m.Every(time.Second, func() { b++ })
	assert.Equal(t, 2, m.Active())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, time.Second}, m.Intervals())

	m.TickN(3)
	assert.Equal(t, 3, a)
	assert.Equal(t, 3, b)

	pa.Cancel()
	m.Tick()
	assert.Equal(t, 3, a)
	assert.Equal(t, 4, b)
	assert.Equal(t, 1, m.Active())
}

func TestManual_CancelDuringTick(t *testing.T) {
	m := NewManual()

	var second Poll
	ran := false
	m.Every(time.Millisecond, func() { second.Cancel() })
	second = m.Every(time.Millisecond, func() { ran = true })

	m.Tick()
	assert.False(t, ran)
	assert.Equal(t, 1, m.Active())
}

func TestManual_SelfCancel(t *testing.T) {
	m := NewManual()

	var p Poll
	n := 0
	p = m.Every(time.Millisecond, func() {
		n++
		p.Cancel()
	})

	m.TickN(5)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, m.Active())
}
