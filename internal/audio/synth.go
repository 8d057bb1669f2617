package audio

import "math"

const twoPi = 2 * math.Pi

// Oscillator holds the running phase of the click carrier. It belongs to the
// render thread; the synthesizer itself is stateless.
type Oscillator struct {
	Phase float64 // radians, kept in [0, 2pi)
}

// Reset restarts the carrier at a beat onset.
func (o *Oscillator) Reset() { o.Phase = 0 }

// Advance moves the phase forward by one sample of freq at sampleRate.
func (o *Oscillator) Advance(freq float64, sampleRate int) {
	o.Phase += twoPi * freq / float64(sampleRate)
	if o.Phase >= twoPi || o.Phase < 0 {
		o.Phase = math.Mod(o.Phase, twoPi)
		if o.Phase < 0 {
			o.Phase += twoPi
		}
	}
}

// Synth renders one click sample per call from a SoundKind profile.
type Synth struct{}

// Sample returns the click value sinceBeat samples after the last onset and
// the carrier frequency the caller should advance the oscillator by. Outside
// [0, clickSamples) it returns silence and a zero frequency.
func (Synth) Sample(kind SoundKind, sinceBeat, clickSamples int64, phase float64, accent bool) (float64, float64) {
	if clickSamples <= 0 || sinceBeat < 0 || sinceBeat >= clickSamples {
		return 0, 0
	}
	progress := float64(sinceBeat) / float64(clickSamples)
	env := kind.Envelope(progress)
	freq := kind.Frequency(progress, accent)
	return kind.Sample(phase, env, progress), freq
}
