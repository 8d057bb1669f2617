// Package trainer steps the tempo every few bars toward a target, the usual
// way of building speed on a passage.
package trainer

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/engine"
)

// Config is one trainer run.
type Config struct {
	StartBPM  int `json:"start_bpm"`
	TargetBPM int `json:"target_bpm"`
	Step      int `json:"step"` // BPM per change, always positive
	Bars      int `json:"bars"` // bars between changes
}

// Status is the current trainer state.
type Status struct {
	Config
	Enabled       bool `json:"enabled"`
	BarsRemaining int  `json:"bars_remaining"`
}

// Tempo is the part of engine.Controller the trainer drives.
type Tempo interface {
	SetBPM(bpm int) error
	State() engine.State
	Subscribe() *engine.Subscription
	Unsubscribe(*engine.Subscription)
}

// Trainer listens to beat events and changes the tempo on bar boundaries.
type Trainer struct {
	tempo Tempo

	mu        sync.Mutex
	cfg       Config
	enabled   bool
	remaining int
	lastBar   uint64
	lastCount uint64
}

// New creates a disabled trainer.
func New(tempo Tempo) *Trainer {
	return &Trainer{tempo: tempo}
}

// Start validates cfg, jumps to its start tempo and arms the trainer.
func (t *Trainer) Start(cfg Config) error {
	if cfg.Step <= 0 {
		return errors.Errorf("step must be positive, got %d", cfg.Step)
	}
	if cfg.Bars <= 0 {
		return errors.Errorf("bars must be positive, got %d", cfg.Bars)
	}
	cfg.StartBPM = audio.ClampBPM(cfg.StartBPM)
	cfg.TargetBPM = audio.ClampBPM(cfg.TargetBPM)
	if err := t.tempo.SetBPM(cfg.StartBPM); err != nil {
		return errors.Wrap(err, "set start tempo")
	}

	t.mu.Lock()
	t.cfg = cfg
	t.enabled = cfg.StartBPM != cfg.TargetBPM
	t.remaining = cfg.Bars
	t.lastBar, t.lastCount = 0, 0
	t.mu.Unlock()

	log.Printf("Trainer: %d -> %d BPM, %d BPM every %d bars", cfg.StartBPM, cfg.TargetBPM, cfg.Step, cfg.Bars)
	return nil
}

// Stop disarms the trainer and leaves the tempo where it is.
func (t *Trainer) Stop() {
	t.mu.Lock()
	was := t.enabled
	t.enabled = false
	t.mu.Unlock()
	if was {
		log.Println("Trainer stopped")
	}
}

// Status returns the trainer state.
func (t *Trainer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{Config: t.cfg, Enabled: t.enabled, BarsRemaining: t.remaining}
}

// Run follows beat events until ctx is cancelled.
func (t *Trainer) Run(ctx context.Context) {
	sub := t.tempo.Subscribe()
	defer t.tempo.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.C:
			t.onBeat(ev)
		}
	}
}

// onBeat counts bars from the beat counter so coalesced events still count
// every bar that went by.
func (t *Trainer) onBeat(ev engine.BeatEvent) {
	beatsPerBar := uint64(t.tempo.State().BeatsPerBar)
	if beatsPerBar == 0 || ev.Counter == 0 {
		return
	}
	bar := (ev.Counter - 1) / beatsPerBar

	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return
	}
	if ev.Counter < t.lastCount || t.lastCount == 0 {
		// First beat seen, or playback restarted.
		t.lastBar = bar
	}
	t.lastCount = ev.Counter
	t.remaining -= int(bar - t.lastBar)
	t.lastBar = bar
	if t.remaining > 0 {
		t.mu.Unlock()
		return
	}

	cur := t.tempo.State().BPM
	next := stepToward(cur, t.cfg.TargetBPM, t.cfg.Step)
	t.remaining = t.cfg.Bars
	done := next == t.cfg.TargetBPM
	if done {
		t.enabled = false
	}
	t.mu.Unlock()

	if err := t.tempo.SetBPM(next); err != nil {
		log.Printf("Trainer: set tempo %d: %v", next, err)
		return
	}
	if done {
		log.Printf("Trainer reached %d BPM", next)
	}
}

func stepToward(cur, target, step int) int {
	switch {
	case cur < target:
		return min(cur+step, target)
	case cur > target:
		return max(cur-step, target)
	}
	return cur
}
