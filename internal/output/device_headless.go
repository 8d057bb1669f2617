//go:build headless

package output

import (
	"time"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
)

// ErrNoDevice is returned in builds without audio device support.
var ErrNoDevice = errors.New("built without audio device support")

// Device is a stand-in for builds tagged headless.
type Device struct {
	rate int
}

// NewDevice always fails so callers fall back to another host.
func NewDevice(sampleRate int, buffer time.Duration) (*Device, error) {
	return nil, ErrNoDevice
}

func (d *Device) SampleRate() int { return d.rate }

func (d *Device) Start(r audio.Renderer) error { return ErrNoDevice }

func (d *Device) Stop() error { return nil }

func (d *Device) Close() error { return nil }
