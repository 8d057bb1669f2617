package audio

import "sync/atomic"

// Renderer is what a host calls from its audio callback.
type Renderer interface {
	Render(out []float32, hostTime int64) bool
}

// Stats are counters safe to read from any goroutine.
type Stats struct {
	Callbacks    uint64 `json:"callbacks"`
	Frames       uint64 `json:"frames"`
	Skips        uint64 `json:"skips"`
	SkippedBeats uint64 `json:"skipped_beats"`
}

// RenderCore is the real-time callback. Render must only ever be driven by
// one host at a time; Reset and Snapshot must only be called while no host
// is driving it.
type RenderCore struct {
	params *ParamStore
	sched  Scheduler
	osc    Oscillator
	synth  Synth

	// beat is BeatCounter<<8 | BeatIndex, written after every callback
	// that fired a beat.
	beat         atomic.Uint64
	callbacks    atomic.Uint64
	frames       atomic.Uint64
	skips        atomic.Uint64
	skippedBeats atomic.Uint64
}

// NewRenderCore returns a core reading its parameters from params.
func NewRenderCore(params *ParamStore) *RenderCore {
	c := &RenderCore{params: params}
	c.sched.Reset()
	return c
}

// Render fills out with one buffer of mono audio and reports whether a beat
// fired. hostTime is the host's sample clock for out[0], or negative when the
// host has none. A host clock ahead of the scheduler means callbacks were
// missed, and the scheduler skips forward to it.
//
// Render does not allocate, lock or block.
func (c *RenderCore) Render(out []float32, hostTime int64) bool {
	p := c.params.Load()
	st := &c.sched.State
	if hostTime > st.Position {
		st.Position = hostTime
	}

	fired := false
	for i := range out {
		now := st.Position + int64(i)
		if !fired {
			if ok, skipped := c.sched.Advance(now, p); ok {
				fired = true
				c.osc.Reset()
				if skipped > 0 {
					c.skips.Add(1)
					c.skippedBeats.Add(skipped)
				}
			}
		}

		accent := p.AccentFirstBeat && st.BeatIndex == 1
		v, freq := c.synth.Sample(p.Sound, now-st.LastBeat, p.ClickSamples, c.osc.Phase, accent)
		if freq > 0 {
			c.osc.Advance(freq, p.SampleRate)
		}
		out[i] = float32(clamp(v*p.Volume, -1, 1))
	}
	st.Position += int64(len(out))

	if fired {
		c.beat.Store(st.BeatCounter<<8 | uint64(st.BeatIndex))
	}
	c.callbacks.Add(1)
	c.frames.Add(uint64(len(out)))
	return fired
}

// Beat returns the latest beat posted by the render thread. counter is 0
// until the first beat after a reset.
func (c *RenderCore) Beat() (counter uint64, index int) {
	v := c.beat.Load()
	return v >> 8, int(v & 0xff)
}

// Stats returns the running counters.
func (c *RenderCore) Stats() Stats {
	return Stats{
		Callbacks:    c.callbacks.Load(),
		Frames:       c.frames.Load(),
		Skips:        c.skips.Load(),
		SkippedBeats: c.skippedBeats.Load(),
	}
}

// Reset returns the scheduler and oscillator to their start values.
func (c *RenderCore) Reset() {
	c.sched.Reset()
	c.osc.Reset()
	c.beat.Store(0)
}

// Snapshot copies the scheduler state.
func (c *RenderCore) Snapshot() SchedulerState {
	return c.sched.State
}

// Params returns the store the core reads from.
func (c *RenderCore) Params() *ParamStore { return c.params }
