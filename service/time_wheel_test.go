package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiredRecorder struct {
	mu    sync.Mutex
	items []string
}

func (r *expiredRecorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, s)
}

func (r *expiredRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

func TestNewTimeWheel_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "service.time_wheel.go: onExpire is required", func() {
		NewTimeWheel[string](time.Second, 5, nil)
	})
	assert.PanicsWithValue(t, "service.time_wheel.go: slots must be positive", func() {
		NewTimeWheel(time.Second, 0, func(string) {})
	})
}

func TestTimeWheel_ExpiresAfterFullRevolution(t *testing.T) {
	rec := &expiredRecorder{}
	w := NewTimeWheel(time.Second, 5, rec.add)

	h := w.Join("a")
	assert.NotZero(t, h)
	assert.Equal(t, 1, w.Len())

	for i := 0; i < 4; i++ {
		w.Tick()
		assert.Empty(t, rec.get(), "tick %d", i+1)
	}
	w.Tick()
	assert.Equal(t, []string{"a"}, rec.get())
	assert.Zero(t, w.Len())
	assert.False(t, w.Remove(h))

	for i := 0; i < 5; i++ {
		w.Tick()
	}
	assert.Equal(t, []string{"a"}, rec.get(), "expires once")
}

func TestTimeWheel_JoinPhase(t *testing.T) {
	rec := &expiredRecorder{}
	w := NewTimeWheel(time.Second, 5, rec.add)

	w.Join("early")
	w.Tick()
	w.Tick()
	w.Join("late")

	w.Tick()
	w.Tick()
	w.Tick()
	assert.Equal(t, []string{"early"}, rec.get())

	w.Tick()
	w.Tick()
	assert.Equal(t, []string{"early", "late"}, rec.get())
}

func TestTimeWheel_Remove(t *testing.T) {
	rec := &expiredRecorder{}
	w := NewTimeWheel(time.Second, 3, rec.add)

	keep := w.Join("keep")
	drop := w.Join("drop")
	assert.NotEqual(t, keep, drop)
	assert.True(t, w.Remove(drop))
	assert.False(t, w.Remove(drop))
	assert.False(t, w.Remove(WheelHandle(0)))

	for i := 0; i < 3; i++ {
		w.Tick()
	}
	assert.Equal(t, []string{"keep"}, rec.get())
}

func TestTimeWheel_CallbackMayReenter(t *testing.T) {
	var w *TimeWheel[string]
	var removed bool
	w = NewTimeWheel(time.Second, 1, func(string) {
		removed = w.Remove(WheelHandle(1))
		w.Join("again")
	})
	w.Join("first")
	w.Tick()
	assert.False(t, removed)
	assert.Equal(t, 1, w.Len())
}

func TestTimeWheel_Run(t *testing.T) {
	expired := make(chan string, 1)
	w := NewTimeWheel(5*time.Millisecond, 2, func(s string) { expired <- s })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Join("x")
	select {
	case got := <-expired:
		require.Equal(t, "x", got)
	case <-time.After(time.Second):
		t.Fatal("item did not expire")
	}
}
