// Package api serves the JSON control API.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/engine"
	"github.com/satindergrewal/metronome/internal/trainer"
)

// Control is the part of engine.Controller the API drives.
type Control interface {
	Start() error
	Stop() error
	SetBPM(bpm int) error
	Tap() (int, bool, error)
	SetTimeSignature(numerator, denominator int) error
	SetSubdivision(factor float64)
	SetSoundKind(kind audio.SoundKind) error
	SetVolume(gain float64)
	SetAccentFirstBeat(on bool)
	State() engine.State
	Stats() audio.Stats
}

// Server routes /api/* requests to a Control.
type Server struct {
	ctrl Control
	// Listeners, when set, reports connected monitor clients for /api/status.
	Listeners func() int
	// Trainer, when set, is served at /api/trainer.
	Trainer *trainer.Trainer
}

// New creates an API server for ctrl.
func New(ctrl Control) *Server {
	return &Server{ctrl: ctrl}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.status)
	mux.HandleFunc("/api/start", post(s.start))
	mux.HandleFunc("/api/stop", post(s.stop))
	mux.HandleFunc("/api/bpm", post(s.bpm))
	mux.HandleFunc("/api/tap", post(s.tap))
	mux.HandleFunc("/api/timesig", post(s.timeSignature))
	mux.HandleFunc("/api/subdivision", post(s.subdivision))
	mux.HandleFunc("/api/sound", post(s.sound))
	mux.HandleFunc("/api/volume", post(s.volume))
	mux.HandleFunc("/api/accent", post(s.accent))
	if s.Trainer != nil {
		mux.HandleFunc("/api/trainer", s.trainer)
	}
}

type statusResponse struct {
	engine.State
	Sounds    []audio.SoundKind `json:"sounds"`
	Stats     audio.Stats       `json:"stats"`
	Listeners int               `json:"listeners"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:  s.ctrl.State(),
		Sounds: audio.SoundKinds(),
		Stats:  s.ctrl.Stats(),
	}
	if s.Listeners != nil {
		resp.Listeners = s.Listeners()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.ctrl.Start())
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.ctrl.Stop())
}

func (s *Server) bpm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPM *int `json:"bpm"`
	}
	if !decode(w, r, &req) || !required(w, req.BPM != nil, "bpm") {
		return
	}
	s.reply(w, s.ctrl.SetBPM(*req.BPM))
}

func (s *Server) tap(w http.ResponseWriter, r *http.Request) {
	bpm, ok, err := s.ctrl.Tap()
	if err != nil {
		s.reply(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"bpm":   bpm,
		"tempo": ok,
		"state": s.ctrl.State(),
	})
}

func (s *Server) timeSignature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BeatsPerBar *int `json:"beats_per_bar"`
		BeatUnit    *int `json:"beat_unit"`
	}
	if !decode(w, r, &req) || !required(w, req.BeatsPerBar != nil && req.BeatUnit != nil, "beats_per_bar and beat_unit") {
		return
	}
	s.reply(w, s.ctrl.SetTimeSignature(*req.BeatsPerBar, *req.BeatUnit))
}

func (s *Server) subdivision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subdivision *float64 `json:"subdivision"`
	}
	if !decode(w, r, &req) || !required(w, req.Subdivision != nil, "subdivision") {
		return
	}
	s.ctrl.SetSubdivision(*req.Subdivision)
	s.reply(w, nil)
}

func (s *Server) sound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sound *audio.SoundKind `json:"sound"`
	}
	if !decode(w, r, &req) || !required(w, req.Sound != nil, "sound") {
		return
	}
	s.reply(w, s.ctrl.SetSoundKind(*req.Sound))
}

func (s *Server) volume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume *float64 `json:"volume"`
	}
	if !decode(w, r, &req) || !required(w, req.Volume != nil, "volume") {
		return
	}
	s.ctrl.SetVolume(*req.Volume)
	s.reply(w, nil)
}

func (s *Server) accent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !decode(w, r, &req) || !required(w, req.Enabled != nil, "enabled") {
		return
	}
	s.ctrl.SetAccentFirstBeat(*req.Enabled)
	s.reply(w, nil)
}

// trainer reports the trainer on GET. POST with a config starts a run;
// POST {"enabled": false} stops it.
func (s *Server) trainer(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.Trainer.Status())
	case http.MethodPost:
		var req struct {
			trainer.Config
			Enabled *bool `json:"enabled"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Enabled != nil && !*req.Enabled {
			s.Trainer.Stop()
		} else if err := s.Trainer.Start(req.Config); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "trainer": s.Trainer.Status(), "state": s.ctrl.State()})
	default:
		http.Error(w, "GET or POST required", http.StatusMethodNotAllowed)
	}
}

// reply writes the current state, or err with a status matching its cause.
func (s *Server) reply(w http.ResponseWriter, err error) {
	if err != nil {
		code := http.StatusInternalServerError
		switch errors.Cause(err) {
		case engine.ErrUnsupportedBeatUnit, engine.ErrUnknownSound:
			code = http.StatusBadRequest
		default:
			log.Printf("API error: %v", err)
		}
		writeJSON(w, code, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.ctrl.State()})
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func required(w http.ResponseWriter, ok bool, field string) bool {
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": field + " required"})
	}
	return ok
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
