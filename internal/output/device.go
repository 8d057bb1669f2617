//go:build !headless

package output

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
)

type rendererRef struct{ r audio.Renderer }

// Device plays through the system audio output. The oto player pulls buffers
// from Read on its own goroutine; Read only touches atomics and a buffer
// allocated up front.
type Device struct {
	ctx  *oto.Context
	rate int

	mu      sync.Mutex // setup and control only
	player  *oto.Player
	started bool

	renderer atomic.Pointer[rendererRef]
	busy     atomic.Int32
	buf      []float32
}

// NewDevice opens the default output at sampleRate, mono float32. Only one
// Device may exist per process.
func NewDevice(sampleRate int, buffer time.Duration) (*Device, error) {
	if sampleRate <= 0 {
		return nil, errors.Errorf("invalid sample rate %d", sampleRate)
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open audio device")
	}
	<-ready
	return &Device{
		ctx:  ctx,
		rate: sampleRate,
		buf:  make([]float32, bufferFrames(sampleRate, buffer)),
	}, nil
}

// minBufferFrames covers oto's default buffer at the rates devices offer.
const minBufferFrames = 4096

// bufferFrames sizes the render buffer for the largest request oto makes
// with the given buffer duration, so Read never allocates.
func bufferFrames(sampleRate int, buffer time.Duration) int {
	n := int((time.Duration(sampleRate)*buffer + time.Second - 1) / time.Second)
	return max(n, minBufferFrames)
}

// SampleRate returns the rate the device was opened at.
func (d *Device) SampleRate() int { return d.rate }

// Start begins pulling audio from r.
func (d *Device) Start(r audio.Renderer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ctx.Err(); err != nil {
		return errors.Wrap(err, "audio device")
	}
	d.renderer.Store(&rendererRef{r: r})
	if d.player == nil {
		d.player = d.ctx.NewPlayer(d)
	}
	if !d.started {
		d.player.Play()
		d.started = true
	}
	return nil
}

// Stop detaches the renderer and waits for any Read in progress to finish,
// so the renderer is not called again after Stop returns.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renderer.Store(nil)
	for d.busy.Load() != 0 {
		runtime.Gosched()
	}
	if d.started {
		d.player.Pause()
		d.started = false
	}
	return nil
}

// Close releases the player.
func (d *Device) Close() error {
	if err := d.Stop(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return err
}

// Read implements io.Reader for the oto player.
func (d *Device) Read(p []byte) (int, error) {
	d.busy.Store(1)
	defer d.busy.Store(0)

	n := len(p) / 4
	ref := d.renderer.Load()
	if ref == nil || n == 0 {
		clear(p)
		return len(p), nil
	}
	if len(d.buf) < n {
		// Only reached if oto asks for more than its configured buffer.
		d.buf = make([]float32, n)
	}
	samples := d.buf[:n]
	ref.r.Render(samples, -1)
	audio.PutFloat32LE(p, samples)
	clear(p[n*4:])
	return len(p), nil
}
