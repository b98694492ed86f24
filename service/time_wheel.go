package service

import (
	"context"
	"sync"
	"time"

	"center/helpers"
)

// WheelHandle identifies an item joined to a TimeWheel. The zero handle is never issued.
type WheelHandle uint64

// TimeWheel is a coarse timing wheel: slots buckets visited one per tick. An item joined while the cursor
// is on slot c expires when the cursor comes back to c, i.e. after between slots-1 and slots tick periods
// of wall time depending on the wheel phase. Expired items are removed and handed to onExpire outside the lock.
//
// Used by Core to bound how long a connection may stay unauthenticated.
type TimeWheel[T any] struct {
	tick     time.Duration
	onExpire func(T)

	mu     sync.Mutex
	slots  []map[WheelHandle]T
	where  map[WheelHandle]int
	cursor int
	next   WheelHandle
}

// NewTimeWheel creates a wheel with the given tick period and number of slots. Panics on nil onExpire or
// a non-positive slot count.
//
// Called from NewCore (tick auth_tick_ms, slots auth_timeout_ticks).
func NewTimeWheel[T any](tick time.Duration, slots int, onExpire func(T)) *TimeWheel[T] {
	if slots <= 0 {
		panic("service.time_wheel.go: slots must be positive")
	}
	w := &TimeWheel[T]{
		tick:     tick,
		onExpire: helpers.NilPanic(onExpire, "service.time_wheel.go: onExpire is required"),
		slots:    make([]map[WheelHandle]T, slots),
		where:    make(map[WheelHandle]int),
	}
	for i := range w.slots {
		w.slots[i] = make(map[WheelHandle]T)
	}
	return w
}

// Join adds item to the slot under the cursor and returns its handle.
func (w *TimeWheel[T]) Join(item T) WheelHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	h := w.next
	w.slots[w.cursor][h] = item
	w.where[h] = w.cursor
	return h
}

// Remove drops the item behind h. Returns false when it already expired or was removed.
func (w *TimeWheel[T]) Remove(h WheelHandle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	slot, ok := w.where[h]
	if !ok {
		return false
	}
	delete(w.slots[slot], h)
	delete(w.where, h)
	return true
}

// Len returns the number of items currently on the wheel.
func (w *TimeWheel[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.where)
}

// Tick advances the cursor by one slot and expires everything in it.
func (w *TimeWheel[T]) Tick() {
	w.mu.Lock()
	w.cursor = (w.cursor + 1) % len(w.slots)
	bucket := w.slots[w.cursor]
	if len(bucket) == 0 {
		w.mu.Unlock()
		return
	}
	w.slots[w.cursor] = make(map[WheelHandle]T)
	expired := make([]T, 0, len(bucket))
	for h, item := range bucket {
		delete(w.where, h)
		expired = append(expired, item)
	}
	w.mu.Unlock()

	for _, item := range expired {
		w.onExpire(item)
	}
}

// Run ticks every tick period until ctx is done.
//
// Called from cmd/main in its own goroutine.
func (w *TimeWheel[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}
