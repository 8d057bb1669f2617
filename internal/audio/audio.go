package audio

import "time"

const (
	// StreamSampleRate is the rate of the network monitor. Opus only accepts
	// 8/12/16/24/48 kHz, so the stream host pins it.
	StreamSampleRate = 48000
	Channels         = 1
	FrameDuration    = 20 * time.Millisecond
	FrameSize        = 960 // samples per 20ms frame at StreamSampleRate
	FrameBytes       = FrameSize * Channels * 2

	ClickDuration = 100 * time.Millisecond

	MinBPM         = 40
	MaxBPM         = 400
	MinBeatsPerBar = 1
	MaxBeatsPerBar = 32
	MinSubdivision = 0.25
	MaxSubdivision = 8

	// AccentBoost raises the carrier on the first beat of a bar.
	AccentBoost = 1.2
	// ReferenceAmplitude is the nominal peak of a click before envelope shaping.
	ReferenceAmplitude = 0.5
)

// BeatUnits lists the time signature denominators the engine accepts.
var BeatUnits = []int{1, 2, 4, 8, 16, 32}

// ValidBeatUnit reports whether den is an accepted time signature denominator.
func ValidBeatUnit(den int) bool {
	for _, u := range BeatUnits {
		if u == den {
			return true
		}
	}
	return false
}

// ClickSamples returns the fixed click length in samples at the given rate.
func ClickSamples(sampleRate int) int64 {
	return int64(sampleRate) * int64(ClickDuration/time.Millisecond) / 1000
}
