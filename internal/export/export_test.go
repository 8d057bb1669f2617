package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/satindergrewal/metronome/internal/audio"
)

func TestRenderLength(t *testing.T) {
	tests := []struct {
		name       string
		bpm        int
		beats      int
		sub        float64
		bars       int
		wantFrames int
		wantBeats  uint64
	}{
		{"4/4 at 120", 120, 4, 1, 2, 192000, 8},
		{"3/4 at 60", 60, 3, 1, 1, 144000, 3},
		{"eighths", 120, 4, 2, 1, 48000, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := audio.DefaultSettings()
			s.BPM = tt.bpm
			s.BeatsPerBar = tt.beats
			s.Subdivision = tt.sub
			samples, sum, err := Render(Options{Settings: s, SampleRate: 48000, Bars: tt.bars})
			if err != nil {
				t.Fatal(err)
			}
			if len(samples) != tt.wantFrames || sum.Frames != tt.wantFrames {
				t.Errorf("frames = %d (summary %d), want %d", len(samples), sum.Frames, tt.wantFrames)
			}
			if sum.Beats != tt.wantBeats {
				t.Errorf("beats = %d, want %d", sum.Beats, tt.wantBeats)
			}
		})
	}
}

func TestRenderRejectsZeroBars(t *testing.T) {
	if _, _, err := Render(Options{Settings: audio.DefaultSettings(), Bars: 0}); err == nil {
		t.Error("Render with 0 bars should fail")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "click.wav")
	s := audio.DefaultSettings()
	s.Volume = 1
	sum, err := WriteFile(path, Options{Settings: s, SampleRate: 44100, Bars: 1})
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("written file is not a valid WAV")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if buf.Format.NumChannels != 1 || buf.Format.SampleRate != 44100 {
		t.Errorf("format = %d ch @ %d Hz, want 1 ch @ 44100 Hz", buf.Format.NumChannels, buf.Format.SampleRate)
	}
	if len(buf.Data) != sum.Frames {
		t.Errorf("decoded %d samples, want %d", len(buf.Data), sum.Frames)
	}

	click := int(audio.ClickSamples(44100))
	loud := 0
	for _, v := range buf.Data[:click] {
		if v != 0 {
			loud++
		}
	}
	if loud == 0 {
		t.Error("first click is silent in the file")
	}
	for i, v := range buf.Data[click : 2*click] {
		if v != 0 {
			t.Fatalf("sample %d = %d, want silence between clicks", click+i, v)
		}
	}
}
