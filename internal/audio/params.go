package audio

import (
	"math"
	"sync/atomic"
)

// Settings are the user-facing timing inputs.
type Settings struct {
	BPM             int
	Subdivision     float64 // clicks per beat; 2 = eighth notes
	BeatsPerBar     int
	BeatUnit        int
	AccentFirstBeat bool
	Sound           SoundKind
	Volume          float64 // linear gain 0..1
}

// DefaultSettings is 120 BPM, 4/4, quarter-note clicks with an accent.
func DefaultSettings() Settings {
	return Settings{
		BPM:             120,
		Subdivision:     1,
		BeatsPerBar:     4,
		BeatUnit:        4,
		AccentFirstBeat: true,
		Sound:           SoundClick,
		Volume:          0.8,
	}
}

// Sanitized returns s with every field forced into its legal range.
func (s Settings) Sanitized() Settings {
	s.BPM = ClampBPM(s.BPM)
	s.Subdivision = ClampSubdivision(s.Subdivision)
	s.BeatsPerBar = ClampBeatsPerBar(s.BeatsPerBar)
	if !ValidBeatUnit(s.BeatUnit) {
		s.BeatUnit = 4
	}
	if !s.Sound.Valid() {
		s.Sound = SoundClick
	}
	s.Volume = ClampVolume(s.Volume)
	return s
}

// TimingParameters is the immutable snapshot the render thread reads once
// per callback. Build it with NewTimingParameters and never mutate it after
// publishing.
type TimingParameters struct {
	Settings
	SampleRate     int
	SamplesPerBeat float64 // SampleRate*60/BPM/Subdivision, always > 0
	ClickSamples   int64
}

// NewTimingParameters derives the sample-domain values for s at sampleRate.
func NewTimingParameters(s Settings, sampleRate int) *TimingParameters {
	s = s.Sanitized()
	if sampleRate <= 0 {
		sampleRate = StreamSampleRate
	}
	return &TimingParameters{
		Settings:       s,
		SampleRate:     sampleRate,
		SamplesPerBeat: SamplesPerBeat(sampleRate, s.BPM, s.Subdivision),
		ClickSamples:   ClickSamples(sampleRate),
	}
}

// SamplesPerBeat is the spacing between clicks in samples.
func SamplesPerBeat(sampleRate, bpm int, subdivision float64) float64 {
	return float64(sampleRate) * 60 / float64(bpm) / subdivision
}

// ParamStore publishes TimingParameters from the control thread to the
// render thread. Readers always see a whole snapshot.
type ParamStore struct {
	p atomic.Pointer[TimingParameters]
}

// NewParamStore returns a store holding p.
func NewParamStore(p *TimingParameters) *ParamStore {
	s := &ParamStore{}
	s.p.Store(p)
	return s
}

// Load returns the current snapshot.
func (s *ParamStore) Load() *TimingParameters { return s.p.Load() }

// Store publishes p. The caller must not modify p afterwards.
func (s *ParamStore) Store(p *TimingParameters) { s.p.Store(p) }

func ClampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

func ClampBeatsPerBar(n int) int {
	if n < MinBeatsPerBar {
		return MinBeatsPerBar
	}
	if n > MaxBeatsPerBar {
		return MaxBeatsPerBar
	}
	return n
}

// ClampSubdivision maps non-positive or NaN factors to 1 and clamps the rest.
func ClampSubdivision(f float64) float64 {
	if math.IsNaN(f) || f <= 0 {
		return 1
	}
	return clamp(f, MinSubdivision, MaxSubdivision)
}

// ClampVolume maps NaN to silence and clamps to [0,1].
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}
