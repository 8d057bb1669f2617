package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/api"
	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/config"
	"github.com/satindergrewal/metronome/internal/console"
	"github.com/satindergrewal/metronome/internal/engine"
	"github.com/satindergrewal/metronome/internal/export"
	"github.com/satindergrewal/metronome/internal/output"
	"github.com/satindergrewal/metronome/internal/stream"
	"github.com/satindergrewal/metronome/internal/trainer"
	"github.com/satindergrewal/metronome/internal/web"
)

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 && os.Args[1] == "render" {
		if err := render(cfg, os.Args[2:]); err != nil {
			log.Fatalf("render: %v", err)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("metronome starting up...")

	mux := http.NewServeMux()
	listeners := func() int { return 0 }

	// Audio host: the system device, or a paced stream for network monitors
	var host engine.Host
	if cfg.Output == config.OutputDevice {
		dev, err := output.NewDevice(cfg.SampleRate, cfg.Buffer)
		if err != nil {
			log.Printf("Audio device unavailable (%v), falling back to stream output", err)
		} else {
			defer dev.Close()
			host = dev
			log.Printf("Audio device open at %d Hz", dev.SampleRate())
		}
	}
	if host == nil {
		s := output.NewStream()
		host = s

		// Broadcaster: fan-out PCM frames to all monitors
		broadcaster := stream.NewBroadcaster()
		go broadcaster.Run(ctx, s.Frames())

		webrtcHandler := stream.NewWebRTCHandler(broadcaster)
		defer webrtcHandler.Close()
		mux.Handle("/stream", stream.NewHTTPHandler(broadcaster))
		mux.Handle("/offer", webrtcHandler)
		listeners = broadcaster.ListenerCount
		log.Printf("Streaming %d Hz mono to /stream and /offer", audio.StreamSampleRate)
	}

	ctrl := engine.NewController(host, engine.Options{
		Settings:       cfg.Settings(),
		LargeTempoJump: cfg.TempoJump,
	})
	defer ctrl.Close()

	// Web UI
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})
	mux.Handle("/events", stream.NewEventsHandler(ctrl))

	// Tempo trainer: steps the tempo toward a target every few bars
	tr := trainer.New(ctrl)
	go tr.Run(ctx)

	apiServer := api.New(ctrl)
	apiServer.Listeners = listeners
	apiServer.Trainer = tr
	apiServer.Register(mux)

	if cfg.Prompt {
		go func() {
			err := console.Run(ctx, ctrl, "metronome> ")
			switch {
			case err == console.ErrQuit:
				cancel()
			case err != nil:
				log.Printf("Prompt error: %v", err)
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("metronome live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("HTTP server error: %v", err)
	}
}

// render writes a click track to a WAV file instead of playing it.
func render(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	out := fs.String("o", "click.wav", "output WAV file")
	bars := fs.Int("bars", 8, "number of bars")
	rate := fs.Int("rate", cfg.SampleRate, "sample rate")
	bpm := fs.Int("bpm", cfg.BPM, "tempo")
	sig := fs.String("sig", fmt.Sprintf("%d/%d", cfg.BeatsPerBar, cfg.BeatUnit), "time signature")
	sub := fs.Float64("sub", cfg.Subdivision, "clicks per beat")
	sound := fs.String("sound", cfg.Sound, "click sound")
	fs.Parse(args)

	var num, den int
	if _, err := fmt.Sscanf(*sig, "%d/%d", &num, &den); err != nil {
		return errors.Errorf("bad time signature %q", *sig)
	}
	if !audio.ValidBeatUnit(den) {
		return errors.Wrapf(engine.ErrUnsupportedBeatUnit, "%d/%d", num, den)
	}
	cfg.BPM, cfg.BeatsPerBar, cfg.BeatUnit = *bpm, num, den
	cfg.Subdivision, cfg.Sound = *sub, *sound

	sum, err := export.WriteFile(*out, export.Options{
		Settings:   cfg.Settings(),
		SampleRate: *rate,
		Bars:       *bars,
	})
	if err != nil {
		return err
	}
	log.Printf("Wrote %s: %d bars, %d clicks, %d frames at %d Hz", *out, *bars, sum.Beats, sum.Frames, *rate)
	return nil
}
