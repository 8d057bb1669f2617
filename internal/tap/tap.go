// Package tap estimates a tempo from the spacing of user taps.
package tap

import (
	"math"
	"sync"
	"time"

	"github.com/satindergrewal/metronome/internal/audio"
)

const (
	MaxTaps = 8
	Timeout = 3 * time.Second
)

// Estimator keeps the most recent taps. It is safe for concurrent use, but is
// meant for the control thread only.
type Estimator struct {
	mu   sync.Mutex
	taps []time.Time
}

// NewEstimator returns an empty estimator.
func NewEstimator() *Estimator {
	return &Estimator{taps: make([]time.Time, 0, MaxTaps)}
}

// Record adds a tap at now and returns the tempo implied by the live taps.
// Taps more than Timeout older than now are forgotten, and only the newest
// MaxTaps are kept. ok is false until at least two taps are live.
func (e *Estimator) Record(now time.Time) (bpm int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	live := e.taps[:0]
	for _, t := range e.taps {
		if now.Sub(t) <= Timeout && !t.After(now) {
			live = append(live, t)
		}
	}
	live = append(live, now)
	if len(live) > MaxTaps {
		live = live[len(live)-MaxTaps:]
	}
	e.taps = live

	if len(e.taps) < 2 {
		return 0, false
	}
	span := e.taps[len(e.taps)-1].Sub(e.taps[0])
	mean := span.Seconds() / float64(len(e.taps)-1)
	if mean <= 0 {
		return 0, false
	}
	return audio.ClampBPM(int(math.Round(60 / mean))), true
}

// Count returns the number of retained taps.
func (e *Estimator) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.taps)
}

// Reset forgets every tap.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.taps = e.taps[:0]
	e.mu.Unlock()
}
