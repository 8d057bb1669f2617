package stream

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMP3ArgsLowLatency(t *testing.T) {
	args := strings.Join(mp3Args(48000), " ")
	for _, want := range []string{
		"-f s16le -ar 48000 -ac 1 -i pipe:0",
		"-b:a 64k",
		"-reservoir 0",
		"-fflags nobuffer",
		"-flush_packets 1",
		"-analyzeduration 0",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args missing %q: %s", want, args)
		}
	}
	if !strings.HasSuffix(args, "pipe:1") {
		t.Errorf("ffmpeg args must end with the output pipe: %s", args)
	}
}

func TestEncoderFeedWritesWholeFrames(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()
	pr, pw := io.Pipe()
	enc := &encoder{in: pw}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		enc.feed(ctx, l)
		close(done)
	}()

	l.C <- []int16{1, -1, 256}
	got := make([]byte, 6)
	if _, err := io.ReadFull(pr, got); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bytes = % x, want % x", got, want)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not return after cancel")
	}
	// feed closes the encoder input so ffmpeg sees EOF.
	if _, err := pr.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("read after feed = %v, want EOF", err)
	}
}

func TestEncoderFeedStopsOnUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()
	_, pw := io.Pipe()
	enc := &encoder{in: pw}

	done := make(chan struct{})
	go func() {
		enc.feed(context.Background(), l)
		close(done)
	}()
	b.Unsubscribe(l)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not return after unsubscribe")
	}
}
