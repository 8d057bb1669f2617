// Package engine is the control-thread side of the metronome: it validates
// parameter changes, publishes them to the render core, starts and stops the
// audio host, and relays beat notifications back out.
package engine

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/tap"
)

var (
	ErrUnsupportedBeatUnit = errors.New("unsupported beat unit")
	ErrUnknownSound        = errors.New("unknown sound")
)

// Host drives a Renderer from an audio callback at a negotiated sample rate.
// Stop must not return until the last in-flight Render call has returned.
type Host interface {
	SampleRate() int
	Start(r audio.Renderer) error
	Stop() error
}

// State is what a UI reads to display the metronome.
type State struct {
	BPM             int             `json:"bpm"`
	IsPlaying       bool            `json:"is_playing"`
	BeatsPerBar     int             `json:"beats_per_bar"`
	BeatUnit        int             `json:"beat_unit"`
	CurrentBeat     int             `json:"current_beat"` // 0 when stopped
	Subdivision     float64         `json:"subdivision"`
	Sound           audio.SoundKind `json:"sound"`
	Volume          float64         `json:"volume"`
	AccentFirstBeat bool            `json:"accent_first_beat"`
	SampleRate      int             `json:"sample_rate"`
}

// Options configures a Controller.
type Options struct {
	Settings audio.Settings
	// LargeTempoJump is the BPM change above which SetBPM restarts playback
	// instead of retiming in place. Zero never restarts.
	LargeTempoJump int
	// WatchInterval is how often the beat mailbox is polled.
	WatchInterval time.Duration
	Now           func() time.Time
}

// Controller is the control facade. All methods are safe for concurrent use.
type Controller struct {
	host   Host
	core   *audio.RenderCore
	params *audio.ParamStore
	taps   *tap.Estimator
	now    func() time.Time
	jump   int

	mu          sync.RWMutex
	settings    audio.Settings
	sampleRate  int
	playing     bool
	currentBeat int
	lastCounter uint64
	lastSkipped uint64
	subs        map[*Subscription]struct{}

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewController wires a render core to host and starts the beat watcher.
// Call Close to release it.
func NewController(host Host, opts Options) *Controller {
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = 5 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rate := host.SampleRate()
	if rate <= 0 {
		rate = audio.StreamSampleRate
	}
	settings := opts.Settings.Sanitized()
	params := audio.NewParamStore(audio.NewTimingParameters(settings, rate))

	c := &Controller{
		host:       host,
		core:       audio.NewRenderCore(params),
		params:     params,
		taps:       tap.NewEstimator(),
		now:        opts.Now,
		jump:       opts.LargeTempoJump,
		settings:   settings,
		sampleRate: rate,
		subs:       make(map[*Subscription]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.watch(opts.WatchInterval)
	return c
}

// Start begins playback from beat 1. Calling it while playing does nothing.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked()
}

func (c *Controller) startLocked() error {
	if c.playing {
		return nil
	}
	rate := c.host.SampleRate()
	if rate <= 0 {
		return errors.Errorf("audio output reported sample rate %d", rate)
	}
	c.sampleRate = rate
	c.publishLocked()
	c.core.Reset()
	c.lastCounter = 0
	c.lastSkipped = c.core.Stats().SkippedBeats

	c.playing = true
	if err := c.host.Start(c.core); err != nil {
		c.playing = false
		c.currentBeat = 0
		c.core.Reset()
		return errors.Wrap(err, "start audio output")
	}
	// The first beat fires on the first rendered frame.
	c.currentBeat = 1
	log.Printf("Metronome started: %d BPM, %d/%d, %s at %d Hz",
		c.settings.BPM, c.settings.BeatsPerBar, c.settings.BeatUnit, c.settings.Sound, rate)
	return nil
}

// Stop halts playback and clears the visible beat. It is safe to call when
// not playing.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taps.Reset()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	c.currentBeat = 0
	if !c.playing {
		return nil
	}
	c.playing = false
	if err := c.host.Stop(); err != nil {
		return errors.Wrap(err, "stop audio output")
	}
	log.Println("Metronome stopped")
	return nil
}

// SetBPM clamps bpm to the supported range and publishes it. While playing, a
// change larger than the configured jump restarts playback from beat 1;
// smaller changes only retime the following beats.
func (c *Controller) SetBPM(bpm int) error {
	bpm = audio.ClampBPM(bpm)
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.settings.BPM
	c.settings.BPM = bpm
	c.publishLocked()

	delta := bpm - old
	if delta < 0 {
		delta = -delta
	}
	if c.playing && c.jump > 0 && delta > c.jump {
		log.Printf("Tempo jump %d -> %d BPM, restarting", old, bpm)
		if err := c.stopLocked(); err != nil {
			return err
		}
		return c.startLocked()
	}
	return nil
}

// SetSubdivision sets the number of clicks per beat.
func (c *Controller) SetSubdivision(factor float64) {
	c.mu.Lock()
	c.settings.Subdivision = audio.ClampSubdivision(factor)
	c.publishLocked()
	c.mu.Unlock()
}

// SetTimeSignature sets beats per bar (clamped) and the beat unit, which must
// be one of audio.BeatUnits.
func (c *Controller) SetTimeSignature(numerator, denominator int) error {
	if !audio.ValidBeatUnit(denominator) {
		return errors.Wrapf(ErrUnsupportedBeatUnit, "%d/%d", numerator, denominator)
	}
	c.mu.Lock()
	c.settings.BeatsPerBar = audio.ClampBeatsPerBar(numerator)
	c.settings.BeatUnit = denominator
	c.publishLocked()
	c.mu.Unlock()
	return nil
}

// SetSoundKind selects the click timbre.
func (c *Controller) SetSoundKind(kind audio.SoundKind) error {
	if !kind.Valid() {
		return errors.Wrapf(ErrUnknownSound, "kind %d", int(kind))
	}
	c.mu.Lock()
	c.settings.Sound = kind
	c.publishLocked()
	c.mu.Unlock()
	return nil
}

// SetVolume sets the linear click gain, clamped to [0,1]. NaN is ignored.
func (c *Controller) SetVolume(gain float64) {
	if math.IsNaN(gain) {
		return
	}
	c.mu.Lock()
	c.settings.Volume = audio.ClampVolume(gain)
	c.publishLocked()
	c.mu.Unlock()
}

// SetAccentFirstBeat toggles the raised pitch on beat 1 of each bar.
func (c *Controller) SetAccentFirstBeat(on bool) {
	c.mu.Lock()
	c.settings.AccentFirstBeat = on
	c.publishLocked()
	c.mu.Unlock()
}

// Tap records a tap now and, once two or more taps are live, applies the
// estimated tempo.
func (c *Controller) Tap() (int, bool, error) {
	bpm, ok := c.taps.Record(c.now())
	if !ok {
		return 0, false, nil
	}
	return bpm, true, c.SetBPM(bpm)
}

// State returns a copy of the published state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.settings
	return State{
		BPM:             s.BPM,
		IsPlaying:       c.playing,
		BeatsPerBar:     s.BeatsPerBar,
		BeatUnit:        s.BeatUnit,
		CurrentBeat:     c.currentBeat,
		Subdivision:     s.Subdivision,
		Sound:           s.Sound,
		Volume:          s.Volume,
		AccentFirstBeat: s.AccentFirstBeat,
		SampleRate:      c.sampleRate,
	}
}

// Stats returns the render counters.
func (c *Controller) Stats() audio.Stats {
	return c.core.Stats()
}

// Close stops playback and the beat watcher.
func (c *Controller) Close() error {
	err := c.Stop()
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
	return err
}

// publishLocked swaps in a fresh snapshot. Must be called with mu held.
func (c *Controller) publishLocked() {
	c.params.Store(audio.NewTimingParameters(c.settings, c.sampleRate))
}
