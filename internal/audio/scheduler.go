package audio

import "math"

// noBeat places LastBeat far enough in the past that nothing sounds before
// the first onset, without overflowing position arithmetic.
const noBeat = math.MinInt64 / 2

// SchedulerState is the sample-domain beat position. It is owned by the
// render thread and only copied out for display.
type SchedulerState struct {
	Position     int64  // sample index of the first frame of the next callback
	NextBeat     int64  // sample index at which the next beat fires
	LastBeat     int64  // sample index of the most recent beat
	BeatCounter  uint64 // beats fired since start, skipped ones included
	BeatIndex    int    // 1-based position in the bar, 0 before the first beat
	Skips        uint64 // times the scheduler jumped over missed beats
	SkippedBeats uint64 // beats jumped over in total

	frac float64 // fractional part of the exact NextBeat
}

// Scheduler decides where beat boundaries fall.
type Scheduler struct {
	State SchedulerState
}

// Reset puts the scheduler back at sample 0 with the first beat due
// immediately.
func (s *Scheduler) Reset() {
	s.State = SchedulerState{LastBeat: noBeat}
}

// Advance fires a beat if now has reached NextBeat. When the caller has been
// starved for more than a whole interval, all missed beats are counted in a
// single jump and reported as skipped; they are not replayed. The beat that
// fires is the latest boundary at or before now.
//
// Advance fires at most one beat per call. The render core calls it per frame
// until a beat fires and then stops asking for the rest of the buffer, so a
// second boundary inside the same buffer is deferred to the next callback.
func (s *Scheduler) Advance(now int64, p *TimingParameters) (fired bool, skipped uint64) {
	st := &s.State
	if now < st.NextBeat {
		return false, 0
	}
	spb := p.SamplesPerBeat
	exact := float64(st.NextBeat) + st.frac

	if d := math.Floor((float64(now) - exact) / spb); d > 0 {
		skipped = uint64(d)
	}

	beat := exact + float64(skipped)*spb
	next := beat + spb
	st.LastBeat = int64(beat)
	st.NextBeat = int64(next)
	st.frac = next - float64(st.NextBeat)
	st.BeatCounter += skipped + 1
	st.BeatIndex = int((st.BeatCounter-1)%uint64(p.BeatsPerBar)) + 1
	if skipped > 0 {
		st.Skips++
		st.SkippedBeats += skipped
	}
	return true, skipped
}
