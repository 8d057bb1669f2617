package audio

import (
	"encoding/binary"
	"math"
)

// FloatToInt16 converts [-1,1] samples into dst, which must be at least as
// long as src. It returns the filled prefix of dst.
func FloatToInt16(dst []int16, src []float32) []int16 {
	dst = dst[:len(src)]
	for i, s := range src {
		v := float64(s) * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		dst[i] = int16(math.Round(v))
	}
	return dst
}

// AppendSamples appends int16 samples to dst as little-endian bytes.
func AppendSamples(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// PutFloat32LE writes samples into p as little-endian float32, the layout of
// oto.FormatFloat32LE. p must hold len(samples)*4 bytes.
func PutFloat32LE(p []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
}
