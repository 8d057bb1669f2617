package audio

// Smoothstep returns 3t^2 - 2t^3 for t clamped to [0,1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Ramp scales frame in place by a smoothstep gain moving from one level to
// another across the frame. Ramp(f, 1, 0) fades a frame out to silence.
func Ramp(frame []int16, from, to float64) []int16 {
	n := len(frame)
	if n == 0 {
		return frame
	}
	for i := range frame {
		t := float64(i) / float64(n)
		gain := from + (to-from)*Smoothstep(t)
		v := float64(frame[i]) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		frame[i] = int16(v)
	}
	return frame
}
