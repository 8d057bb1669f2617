package output

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
)

// Stream renders 20ms mono frames at 48kHz on a wall-clock ticker and hands
// them to Frames as int16 PCM, for the network monitor. It stands in for an
// audio device on machines without one.
type Stream struct {
	frameCh chan []int16
	now     func() time.Time
	period  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStream creates a stopped stream host.
func NewStream() *Stream {
	return &Stream{
		frameCh: make(chan []int16, 100),
		now:     time.Now,
		period:  audio.FrameDuration,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each). It is never
// closed; it goes quiet while stopped.
func (s *Stream) Frames() <-chan []int16 {
	return s.frameCh
}

// SampleRate is always audio.StreamSampleRate.
func (s *Stream) SampleRate() int { return audio.StreamSampleRate }

// Start launches the render loop. Starting a running stream is an error.
func (s *Stream) Start(r audio.Renderer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("stream already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, r, s.done)
	return nil
}

// Stop ends the render loop and waits for it to exit.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	return nil
}

// run renders one frame per tick. The host clock is the number of frames
// the wall clock says are due; when the ticker falls behind, frames are
// dropped rather than rendered late, and the render core skips the beats
// that fell inside them.
func (s *Stream) run(ctx context.Context, r audio.Renderer, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	buf := make([]float32, audio.FrameSize)
	start := s.now()
	var frame int64

	for {
		select {
		case <-ctx.Done():
			if frame > 0 {
				s.sendTail(r, buf, frame)
			}
			return
		case <-ticker.C:
		}

		if due := int64(s.now().Sub(start)/s.period) - 1; due > frame {
			frame = due
		}
		r.Render(buf, frame*audio.FrameSize)
		frame++

		pcm := audio.FloatToInt16(make([]int16, audio.FrameSize), buf)
		select {
		case s.frameCh <- pcm:
		case <-ctx.Done():
			return
		}
	}
}

// sendTail renders one more frame faded to silence so listeners do not hear
// a click cut off mid-decay.
func (s *Stream) sendTail(r audio.Renderer, buf []float32, frame int64) {
	r.Render(buf, frame*audio.FrameSize)
	tail := audio.FloatToInt16(make([]int16, audio.FrameSize), buf)
	audio.Ramp(tail, 1, 0)
	select {
	case s.frameCh <- tail:
	default:
	}
}
