// Package export renders a click track offline and writes it as a WAV file,
// using the same render core the live hosts drive.
package export

import (
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
)

// DefaultBlockSize matches a typical device callback.
const DefaultBlockSize = 256

// Options describes an offline render.
type Options struct {
	Settings   audio.Settings
	SampleRate int
	Bars       int
	BlockSize  int
}

// Summary describes a finished render.
type Summary struct {
	Frames int
	Beats  uint64
}

// Render runs the render core over Bars bars of BeatsPerBar clicks each and
// returns the mono samples.
func Render(opts Options) ([]float32, Summary, error) {
	if opts.Bars <= 0 {
		return nil, Summary{}, errors.Errorf("bars must be positive, got %d", opts.Bars)
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.StreamSampleRate
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}

	p := audio.NewTimingParameters(opts.Settings, opts.SampleRate)
	total := int(math.Ceil(float64(opts.Bars*p.BeatsPerBar) * p.SamplesPerBeat))
	core := audio.NewRenderCore(audio.NewParamStore(p))

	out := make([]float32, total)
	for off := 0; off < total; off += opts.BlockSize {
		end := min(off+opts.BlockSize, total)
		core.Render(out[off:end], -1)
	}
	counter, _ := core.Beat()
	return out, Summary{Frames: total, Beats: counter}, nil
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, audio.Channels, 1)
	pcm := audio.FloatToInt16(make([]int16, len(samples)), samples)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: audio.Channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(pcm)),
		SourceBitDepth: 16,
	}
	for i, s := range pcm {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "encode wav")
	}
	return errors.Wrap(enc.Close(), "finish wav")
}

// WriteFile renders opts and writes the result to path.
func WriteFile(path string, opts Options) (Summary, error) {
	samples, sum, err := Render(opts)
	if err != nil {
		return sum, err
	}
	f, err := os.Create(path)
	if err != nil {
		return sum, errors.Wrap(err, "create output")
	}
	defer f.Close()

	rate := opts.SampleRate
	if rate <= 0 {
		rate = audio.StreamSampleRate
	}
	if err := WriteWAV(f, samples, rate); err != nil {
		return sum, err
	}
	return sum, errors.Wrap(f.Close(), "close output")
}
