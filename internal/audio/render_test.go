package audio

import (
	"math"
	"testing"
)

func testParams(spb float64, beatsPerBar int) *TimingParameters {
	return &TimingParameters{
		Settings:       Settings{BPM: 120, Subdivision: 1, BeatsPerBar: beatsPerBar, BeatUnit: 4, Volume: 1},
		SampleRate:     48000,
		SamplesPerBeat: spb,
		ClickSamples:   4800,
	}
}

func newTestCore(s Settings, rate int) *RenderCore {
	return NewRenderCore(NewParamStore(NewTimingParameters(s, rate)))
}

// --- Scheduler ---

func TestSchedulerFirstBeatImmediately(t *testing.T) {
	var s Scheduler
	s.Reset()
	fired, skipped := s.Advance(0, testParams(500, 4))
	if !fired || skipped != 0 {
		t.Fatalf("Advance(0) = %v, %d; want true, 0", fired, skipped)
	}
	st := s.State
	if st.BeatCounter != 1 || st.BeatIndex != 1 {
		t.Errorf("counter=%d index=%d, want 1, 1", st.BeatCounter, st.BeatIndex)
	}
	if st.LastBeat != 0 || st.NextBeat != 500 {
		t.Errorf("LastBeat=%d NextBeat=%d, want 0, 500", st.LastBeat, st.NextBeat)
	}
}

func TestSchedulerNoBeatBeforeBoundary(t *testing.T) {
	var s Scheduler
	s.Reset()
	p := testParams(500, 4)
	s.Advance(0, p)
	for now := int64(1); now < 500; now++ {
		if fired, _ := s.Advance(now, p); fired {
			t.Fatalf("beat fired early at %d", now)
		}
	}
	if fired, _ := s.Advance(500, p); !fired {
		t.Error("beat did not fire at boundary 500")
	}
}

func TestSchedulerBeatIndexCycles(t *testing.T) {
	var s Scheduler
	s.Reset()
	p := testParams(100, 3)
	want := []int{1, 2, 3, 1, 2, 3, 1}
	for i, w := range want {
		fired, _ := s.Advance(s.State.NextBeat, p)
		if !fired {
			t.Fatalf("beat %d did not fire", i)
		}
		if s.State.BeatIndex != w {
			t.Errorf("beat %d: index = %d, want %d", i, s.State.BeatIndex, w)
		}
	}
}

func TestSchedulerSkipsMissedBeatsInOneStep(t *testing.T) {
	var s Scheduler
	s.Reset()
	s.State.NextBeat = 1000
	s.State.BeatCounter = 5
	p := testParams(1000, 4)

	// Three whole intervals (1000, 2000, 3000) were missed; 4000 is current.
	fired, skipped := s.Advance(4000, p)
	if !fired {
		t.Fatal("expected a beat")
	}
	if skipped != 3 {
		t.Errorf("skipped = %d, want 3", skipped)
	}
	st := s.State
	if st.BeatCounter != 9 {
		t.Errorf("BeatCounter = %d, want 9 (advanced by 4)", st.BeatCounter)
	}
	if st.LastBeat != 4000 || st.NextBeat != 5000 {
		t.Errorf("LastBeat=%d NextBeat=%d, want 4000, 5000", st.LastBeat, st.NextBeat)
	}
	if st.Skips != 1 || st.SkippedBeats != 3 {
		t.Errorf("Skips=%d SkippedBeats=%d, want 1, 3", st.Skips, st.SkippedBeats)
	}
	if st.BeatIndex != 1 {
		t.Errorf("BeatIndex = %d, want 1 for beat 9 of a 4-beat bar", st.BeatIndex)
	}
}

func TestSchedulerSkipMidInterval(t *testing.T) {
	var s Scheduler
	s.Reset()
	s.State.NextBeat = 1000
	p := testParams(500, 4)

	// now sits 1500 samples past the due beat: 3 whole intervals missed.
	fired, skipped := s.Advance(2500, p)
	if !fired || skipped != 3 {
		t.Fatalf("Advance = %v, %d; want true, 3", fired, skipped)
	}
	if s.State.BeatCounter != 4 {
		t.Errorf("BeatCounter = %d, want 4", s.State.BeatCounter)
	}
	if s.State.LastBeat > 2500 || s.State.NextBeat <= 2500 {
		t.Errorf("LastBeat=%d NextBeat=%d do not bracket now=2500", s.State.LastBeat, s.State.NextBeat)
	}
}

func TestSchedulerNoDrift(t *testing.T) {
	var s Scheduler
	s.Reset()
	p := testParams(48000*60.0/140, 4) // 20571.43 samples
	const beats = 10000
	for i := 0; i < beats; i++ {
		s.Advance(s.State.NextBeat, p)
	}
	exact := float64(beats) * p.SamplesPerBeat
	if d := math.Abs(float64(s.State.NextBeat) - exact); d >= 1 {
		t.Errorf("NextBeat = %d drifted %v samples from %v", s.State.NextBeat, d, exact)
	}
}

// --- RenderCore ---

func TestRenderFirstCallbackFiresBeatOne(t *testing.T) {
	c := newTestCore(DefaultSettings(), 48000)
	out := make([]float32, 256)
	if !c.Render(out, -1) {
		t.Fatal("first callback did not fire a beat")
	}
	counter, index := c.Beat()
	if counter != 1 || index != 1 {
		t.Errorf("Beat() = %d, %d; want 1, 1", counter, index)
	}
	if got := c.Snapshot().Position; got != 256 {
		t.Errorf("Position = %d, want 256", got)
	}
}

func TestRenderAtMostOneBeatPerCallback(t *testing.T) {
	s := DefaultSettings()
	s.BPM = 400
	s.Subdivision = 8
	c := newTestCore(s, 8000) // 150 samples per click
	out := make([]float32, 512)
	c.Render(out, -1)
	if counter, _ := c.Beat(); counter != 1 {
		t.Errorf("BeatCounter after one callback = %d, want 1", counter)
	}
}

func TestRenderHostClockJumpSkips(t *testing.T) {
	s := DefaultSettings()
	s.BPM = 60
	c := newTestCore(s, 1000) // 1000 samples per beat
	out := make([]float32, 100)
	c.Render(out, -1) // beat 1 at 0, next due at 1000

	if !c.Render(out, 4000) {
		t.Fatal("expected a beat after the clock jump")
	}
	counter, index := c.Beat()
	if counter != 5 {
		t.Errorf("BeatCounter = %d, want 5 (1 + 3 skipped + 1)", counter)
	}
	if index != 1 {
		t.Errorf("BeatIndex = %d, want 1", index)
	}
	stats := c.Stats()
	if stats.Skips != 1 || stats.SkippedBeats != 3 {
		t.Errorf("Stats = %+v, want 1 skip of 3 beats", stats)
	}
	if got := c.Snapshot().Position; got != 4100 {
		t.Errorf("Position = %d, want 4100", got)
	}
}

func TestRenderClickThenSilence(t *testing.T) {
	s := DefaultSettings()
	s.BPM = 60
	s.Volume = 1
	c := newTestCore(s, 1000) // 100-sample click, 1000-sample beat
	out := make([]float32, 1000)
	c.Render(out, -1)

	nonZero := 0
	for i := 0; i < 100; i++ {
		if out[i] != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Error("click region is silent")
	}
	for i := 100; i < 1000; i++ {
		if out[i] != 0 {
			t.Fatalf("out[%d] = %v, want silence after the click", i, out[i])
		}
	}
}

func TestRenderVolume(t *testing.T) {
	s := DefaultSettings()
	s.Volume = 0
	c := newTestCore(s, 48000)
	out := make([]float32, 4800)
	c.Render(out, -1)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v at zero volume", i, v)
		}
	}
}

func TestRenderBoundedForAllKinds(t *testing.T) {
	for _, k := range SoundKinds() {
		s := DefaultSettings()
		s.Sound = k
		s.Volume = 1
		c := newTestCore(s, 48000)
		out := make([]float32, 4800)
		c.Render(out, -1)
		for i, v := range out {
			if v < -1 || v > 1 || math.IsNaN(float64(v)) {
				t.Fatalf("%v: out[%d] = %v out of range", k, i, v)
			}
		}
	}
}

func TestRenderPicksUpNewParameters(t *testing.T) {
	s := DefaultSettings()
	s.BPM = 60
	c := newTestCore(s, 1000)
	out := make([]float32, 10)
	c.Render(out, -1) // beat at 0, next at 1000 using 60 BPM

	s.BPM = 120
	c.Params().Store(NewTimingParameters(s, 1000))
	for c.Snapshot().Position <= 1000 {
		c.Render(out, -1)
	}
	// The boundary already scheduled keeps its place; spacing after it changes.
	if got := c.Snapshot().NextBeat; got != 1500 {
		t.Errorf("NextBeat = %d, want 1500 (1000 + 500)", got)
	}
}

func TestRenderIndexNeverZeroWhilePlaying(t *testing.T) {
	s := DefaultSettings()
	s.BPM = 400
	s.BeatsPerBar = 5
	c := newTestCore(s, 8000)
	out := make([]float32, 64)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		c.Render(out, -1)
		_, idx := c.Beat()
		if idx < 1 || idx > 5 {
			t.Fatalf("callback %d: BeatIndex = %d", i, idx)
		}
		seen[idx] = true
	}
	if len(seen) != 5 {
		t.Errorf("saw indices %v, want all of 1..5", seen)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	c := newTestCore(DefaultSettings(), 48000)
	out := make([]float32, 512)
	for i := 0; i < 50; i++ {
		c.Render(out, -1)
	}
	c.Reset()
	once := c.Snapshot()
	c.Reset()
	twice := c.Snapshot()
	if once != twice {
		t.Errorf("Reset twice = %+v, once = %+v", twice, once)
	}
	if once.Position != 0 || once.BeatCounter != 0 || once.NextBeat != 0 {
		t.Errorf("Reset state = %+v, want zero position and counters", once)
	}
	if counter, idx := c.Beat(); counter != 0 || idx != 0 {
		t.Errorf("Beat() after reset = %d, %d; want 0, 0", counter, idx)
	}
}

func TestRenderDoesNotAllocate(t *testing.T) {
	c := newTestCore(DefaultSettings(), 48000)
	out := make([]float32, 256)
	allocs := testing.AllocsPerRun(200, func() {
		c.Render(out, -1)
	})
	if allocs != 0 {
		t.Errorf("Render allocated %v times per call, want 0", allocs)
	}
}

func BenchmarkRender256(b *testing.B) {
	c := newTestCore(DefaultSettings(), 48000)
	out := make([]float32, 256)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Render(out, -1)
	}
}
