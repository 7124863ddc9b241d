package analyzer

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Simulated progress defaults. Progress is a UI approximation driven by a
// timer, not a measurement of the backend's work, so it stays below 100 until
// the real call completes.
const (
	defaultTickInterval = 500 * time.Millisecond
	defaultMaxIncrement = 15
	defaultCeiling      = 90
)

// Ticker is the subset of *time.Ticker the simulator needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type simConfig struct {
	interval     time.Duration
	maxIncrement int
	ceiling      int
	newTicker    func(time.Duration) Ticker
	intN         func(n int) int
}

func defaultSimConfig() simConfig {
	return simConfig{
		interval:     defaultTickInterval,
		maxIncrement: defaultMaxIncrement,
		ceiling:      defaultCeiling,
		newTicker:    newTimeTicker,
		intN:         rand.IntN,
	}
}

// step returns the next simulated value: a random increment in
// [1, maxIncrement], capped at the ceiling.
func (s simConfig) step(current int) int {
	inc := 1
	if s.maxIncrement > 1 {
		inc += s.intN(s.maxIncrement)
	}
	return max(current, min(current+inc, s.ceiling))
}

// simulate calls tick on every timer fire until stop is called or tick
// reports false. The returned stop function never blocks and is safe to call
// more than once, including while the caller holds the lock tick acquires.
func (s simConfig) simulate(tick func() bool) (stop func()) {
	done := make(chan struct{})
	t := s.newTicker(s.interval)

	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C():
				if !tick() {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
