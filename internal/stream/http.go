package stream

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
)

// MP3Bitrate is the encoder bitrate for the HTTP monitor. A mono click
// track needs little more than this.
const MP3Bitrate = "64k"

// mp3Args builds the ffmpeg command line for a low-latency mono encode.
// Probing is skipped because the input format is fixed, and the LAME bit
// reservoir is off so each click transient is emitted in the frame it
// lands in rather than borrowed against later frames.
func mp3Args(rate int) []string {
	return []string{
		"-probesize", "32",
		"-analyzeduration", "0",
		"-fflags", "nobuffer",
		"-f", "s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", MP3Bitrate,
		"-reservoir", "0",
		"-write_xing", "0",
		"-f", "mp3",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

// encoder is one ffmpeg process turning PCM frames into MP3.
type encoder struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out io.ReadCloser
}

func startEncoder(ctx context.Context, rate int) (*encoder, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", mp3Args(rate)...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdin")
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg")
	}
	return &encoder{cmd: cmd, in: in, out: out}, nil
}

// feed writes frames from l to the encoder until the listener ends or ctx
// is cancelled. A frame is written whole, so a late listener never sees a
// click cut in half.
func (e *encoder) feed(ctx context.Context, l *Listener) {
	defer e.in.Close()
	pcm := make([]byte, 0, audio.FrameBytes)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			pcm = audio.AppendSamples(pcm[:0], frame)
			if _, err := e.in.Write(pcm); err != nil {
				return
			}
		}
	}
}

// HTTPHandler serves the click track as a chunked MP3 stream. Each
// connection gets its own encoder fed from the broadcaster.
type HTTPHandler struct {
	broadcaster *Broadcaster
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster) *HTTPHandler {
	return &HTTPHandler{broadcaster: b}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	enc, err := startEncoder(ctx, audio.StreamSampleRate)
	if err != nil {
		log.Printf("HTTP monitor: %v", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		cancel()
		enc.cmd.Wait()
	}()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "metronome")
	w.Header().Set("ICY-Br", MP3Bitrate[:len(MP3Bitrate)-1])

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	log.Printf("HTTP monitor connected from %s (total: %d)", r.RemoteAddr, h.broadcaster.ListenerCount())
	defer func() {
		log.Printf("HTTP monitor disconnected from %s (dropped %d frames)", r.RemoteAddr, listener.Dropped())
	}()

	go enc.feed(ctx, listener)

	// MP3 frames at 64k are a few hundred bytes; flush each read so a click
	// reaches the browser as soon as it is encoded.
	buf := make([]byte, 1024)
	for {
		n, err := enc.out.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("HTTP monitor: ffmpeg read error: %v", err)
			}
			return
		}
	}
}
