package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/satindergrewal/metronome/internal/audio"
)

// Output modes.
const (
	OutputDevice = "device"
	OutputStream = "stream"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Audio host
	Output     string        // device or stream
	SampleRate int           // requested device rate; the stream is always 48kHz
	Buffer     time.Duration // device buffer length

	// Starting settings
	BPM             int
	BeatsPerBar     int
	BeatUnit        int
	Subdivision     float64
	Sound           string
	Volume          float64
	AccentFirstBeat bool

	// TempoJump is the BPM change that restarts playback instead of retiming.
	TempoJump int
	// Prompt enables the interactive command prompt on stdin.
	Prompt bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	output := strings.ToLower(envStr("METRONOME_OUTPUT", OutputDevice))
	if output != OutputDevice && output != OutputStream {
		log.Printf("Unknown METRONOME_OUTPUT %q, using %s", output, OutputDevice)
		output = OutputDevice
	}
	return Config{
		Port: envInt("METRONOME_PORT", 8080),

		Output:     output,
		SampleRate: envInt("METRONOME_SAMPLE_RATE", audio.StreamSampleRate),
		Buffer:     time.Duration(envInt("METRONOME_BUFFER_MS", 5)) * time.Millisecond,

		BPM:             envInt("METRONOME_BPM", 120),
		BeatsPerBar:     envInt("METRONOME_BEATS_PER_BAR", 4),
		BeatUnit:        envInt("METRONOME_BEAT_UNIT", 4),
		Subdivision:     envFloat("METRONOME_SUBDIVISION", 1),
		Sound:           envStr("METRONOME_SOUND", "click"),
		Volume:          envFloat("METRONOME_VOLUME", 0.8),
		AccentFirstBeat: envBool("METRONOME_ACCENT", true),

		TempoJump: envInt("METRONOME_TEMPO_JUMP", 20),
		Prompt:    envBool("METRONOME_PROMPT", true),
	}
}

// Settings converts the starting values to render settings. Out-of-range
// values are clamped; an unknown sound or beat unit falls back to the
// default with a warning.
func (c Config) Settings() audio.Settings {
	s := audio.DefaultSettings()
	s.BPM = c.BPM
	s.BeatsPerBar = c.BeatsPerBar
	s.Subdivision = c.Subdivision
	s.Volume = c.Volume
	s.AccentFirstBeat = c.AccentFirstBeat
	if audio.ValidBeatUnit(c.BeatUnit) {
		s.BeatUnit = c.BeatUnit
	} else {
		log.Printf("Unsupported METRONOME_BEAT_UNIT %d, using %d", c.BeatUnit, s.BeatUnit)
	}
	if kind, ok := audio.ParseSoundKind(c.Sound); ok {
		s.Sound = kind
	} else {
		log.Printf("Unknown METRONOME_SOUND %q, using %s", c.Sound, s.Sound)
	}
	return s.Sanitized()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
