package audio

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// SoundKind selects the timbre of the synthesized click.
type SoundKind int

const (
	SoundClick SoundKind = iota
	SoundSnap
	SoundPop
	SoundTick
	SoundBeep
	SoundWoodBlock
	SoundCowbell
)

var soundNames = [...]string{
	SoundClick:     "click",
	SoundSnap:      "snap",
	SoundPop:       "pop",
	SoundTick:      "tick",
	SoundBeep:      "beep",
	SoundWoodBlock: "woodblock",
	SoundCowbell:   "cowbell",
}

// SoundKinds returns every supported kind in display order.
func SoundKinds() []SoundKind {
	kinds := make([]SoundKind, len(soundNames))
	for i := range soundNames {
		kinds[i] = SoundKind(i)
	}
	return kinds
}

func (k SoundKind) String() string {
	if k < 0 || int(k) >= len(soundNames) {
		return "unknown"
	}
	return soundNames[k]
}

// Valid reports whether k is one of the enumerated kinds.
func (k SoundKind) Valid() bool {
	return k >= 0 && int(k) < len(soundNames)
}

// ParseSoundKind maps a name such as "woodblock" or "Wood-Block" to its kind.
func ParseSoundKind(name string) (SoundKind, bool) {
	n := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(name))
	for i, s := range soundNames {
		if s == n {
			return SoundKind(i), true
		}
	}
	return SoundClick, false
}

func (k SoundKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SoundKind) UnmarshalText(b []byte) error {
	kind, ok := ParseSoundKind(string(b))
	if !ok {
		return errors.Errorf("unknown sound %q", string(b))
	}
	*k = kind
	return nil
}

// Envelope returns the amplitude of kind at progress in [0,1) through the
// click. Every shape carries a (1-progress) factor so it reaches zero at the
// end of the click, and peaks at no more than 1.8x ReferenceAmplitude.
func (k SoundKind) Envelope(progress float64) float64 {
	if progress < 0 || progress >= 1 {
		return 0
	}
	tail := 1 - progress
	var shape float64
	switch k {
	case SoundClick:
		shape = 1.6 * math.Exp(-12*progress)
	case SoundSnap:
		// sharp attack spike over a slower body
		shape = 1.2*math.Exp(-40*progress) + 0.6*math.Exp(-8*progress)
	case SoundPop:
		shape = 1.4 * math.Exp(-6*progress)
	case SoundTick:
		shape = 1.2 * math.Exp(-25*progress)
	case SoundBeep:
		// 2ms-ish ramp in, then linear decay
		shape = math.Min(1, progress/0.02)
	case SoundWoodBlock:
		shape = 1.5 * math.Exp(-18*progress)
	case SoundCowbell:
		shape = 1.3 * math.Exp(-5*progress)
	default:
		return 0
	}
	return ReferenceAmplitude * shape * tail
}

// Frequency returns the carrier frequency in Hz at progress, boosted by
// AccentBoost when accent is set.
func (k SoundKind) Frequency(progress float64, accent bool) float64 {
	var f float64
	switch k {
	case SoundClick:
		f = 1500
	case SoundSnap:
		f = 2200
	case SoundPop:
		// descending sweep 600 -> 200 Hz
		f = 600 - 400*clamp(progress, 0, 1)
	case SoundTick:
		f = 3000
	case SoundBeep:
		f = 880
	case SoundWoodBlock:
		f = 1100
	case SoundCowbell:
		f = 560
	default:
		return 0
	}
	if accent {
		f *= AccentBoost
	}
	return f
}

// Sample combines sine partials at phase, scaled by env, and adds a short
// noise transient for the percussive kinds. It is pure in its inputs.
func (k SoundKind) Sample(phase, env, progress float64) float64 {
	var v float64
	switch k {
	case SoundClick:
		v = (math.Sin(phase) + 0.5*math.Sin(2*phase) + 0.25*math.Sin(3*phase)) / 1.75
		v += burst(progress, 0.03, 0.5)
	case SoundSnap:
		v = 0.6*math.Sin(phase) + 0.4*math.Sin(3*phase)
		v += burst(progress, 0.05, 0.8)
	case SoundPop:
		v = (math.Sin(phase) + 0.2*math.Sin(2*phase)) / 1.2
	case SoundTick:
		v = (math.Sin(phase) + 0.3*math.Sin(2*phase)) / 1.3
		v += burst(progress, 0.02, 0.4)
	case SoundBeep:
		v = math.Sin(phase)
	case SoundWoodBlock:
		v = (math.Sin(phase) + 0.35*math.Sin(3*phase) + 0.15*math.Sin(5*phase)) / 1.5
		v += burst(progress, 0.03, 0.3)
	case SoundCowbell:
		v = (math.Sin(phase) + 0.7*math.Sin(3*phase) + 0.3*math.Sin(4*phase)) / 2
	default:
		return 0
	}
	return v * env
}

// burst is a linearly fading noise transient over the first length of
// progress. The noise is hashed from progress so the result stays pure.
func burst(progress, length, gain float64) float64 {
	if progress >= length {
		return 0
	}
	return gain * (1 - progress/length) * hashNoise(progress)
}

// hashNoise maps x to a deterministic value in [-1, 1].
func hashNoise(x float64) float64 {
	h := math.Float64bits(x)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return float64(h>>11)/float64(1<<52) - 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
