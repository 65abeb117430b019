package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is an interface for accessing evaluation time. Components that
// depend on elapsed time (candidate TTLs, debounce windows, threshold
// epochs) take a Clock rather than reading the wall clock, enabling
// deterministic tests.
type Clock interface {
	// Now returns the current evaluation time.
	Now() time.Time
}

// Mode describes how the TickController advances evaluation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// TickController drives evaluation time and notifies registered listeners
// once per tick. It implements Clock.
type TickController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

	listeners []func(time.Time)
}

// NewTickController constructs a controller.
func NewTickController(start time.Time, tick time.Duration, mode Mode) *TickController {
	return &TickController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current evaluation time. Implements Clock.
func (tc *TickController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick.
func (tc *TickController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Run advances evaluation time for the specified duration, invoking
// listeners each tick, until the duration elapses or ctx is cancelled.
// In RealTime mode each tick waits for a wall-clock interval; Accelerated
// mode steps as fast as the listeners return.
func (tc *TickController) Run(ctx context.Context, duration time.Duration) {
	tc.mu.Lock()
	simTime := tc.StartTime
	tc.currentTime = simTime
	tc.mu.Unlock()

	var ticker *time.Ticker
	if tc.Mode == RealTime {
		ticker = time.NewTicker(tc.Tick)
		defer ticker.Stop()
	}

	for elapsed := time.Duration(0); duration <= 0 || elapsed < duration; elapsed += tc.Tick {
		if tc.Mode == RealTime {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		simTime = simTime.Add(tc.Tick)

		tc.mu.Lock()
		tc.currentTime = simTime
		tc.mu.Unlock()

		for _, fn := range tc.listeners {
			fn(simTime)
		}
	}
}

// Start runs the controller in a separate goroutine and returns a channel
// closed when it finishes.
func (tc *TickController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		tc.Run(ctx, duration)
	}()
	return done
}

// ManualClock is a hand-stepped Clock for tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
