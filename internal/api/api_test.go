package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/engine"
	"github.com/satindergrewal/metronome/internal/trainer"
)

type nullHost struct{ startErr error }

func (h *nullHost) SampleRate() int              { return 48000 }
func (h *nullHost) Start(r audio.Renderer) error { return h.startErr }
func (h *nullHost) Stop() error                  { return nil }

func newTestServer(t *testing.T, host engine.Host) (*engine.Controller, *http.ServeMux) {
	t.Helper()
	ctrl := engine.NewController(host, engine.Options{
		Settings:       audio.DefaultSettings(),
		LargeTempoJump: 20,
		WatchInterval:  time.Hour,
	})
	t.Cleanup(func() { ctrl.Close() })
	s := New(ctrl)
	s.Listeners = func() int { return 3 }
	s.Trainer = trainer.New(ctrl)
	mux := http.NewServeMux()
	s.Register(mux)
	return ctrl, mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

type reply struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error"`
	State engine.State `json:"state"`
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) reply {
	t.Helper()
	var r reply
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return r
}

func TestStatus(t *testing.T) {
	_, mux := newTestServer(t, &nullHost{})
	rec := do(mux, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var got map[string]any
	json.NewDecoder(rec.Body).Decode(&got)
	if got["bpm"] != float64(120) || got["sound"] != "click" || got["is_playing"] != false {
		t.Errorf("status = %v", got)
	}
	if got["listeners"] != float64(3) {
		t.Errorf("listeners = %v, want 3", got["listeners"])
	}
	if sounds, _ := got["sounds"].([]any); len(sounds) != len(audio.SoundKinds()) {
		t.Errorf("sounds = %v", got["sounds"])
	}
}

func TestSetters(t *testing.T) {
	tests := []struct {
		path  string
		body  string
		check func(engine.State) bool
	}{
		{"/api/bpm", `{"bpm": 200}`, func(s engine.State) bool { return s.BPM == 200 }},
		{"/api/bpm", `{"bpm": 5}`, func(s engine.State) bool { return s.BPM == 40 }},
		{"/api/timesig", `{"beats_per_bar": 6, "beat_unit": 8}`, func(s engine.State) bool { return s.BeatsPerBar == 6 && s.BeatUnit == 8 }},
		{"/api/subdivision", `{"subdivision": 3}`, func(s engine.State) bool { return s.Subdivision == 3 }},
		{"/api/sound", `{"sound": "woodblock"}`, func(s engine.State) bool { return s.Sound == audio.SoundWoodBlock }},
		{"/api/volume", `{"volume": 0.25}`, func(s engine.State) bool { return s.Volume == 0.25 }},
		{"/api/accent", `{"enabled": false}`, func(s engine.State) bool { return !s.AccentFirstBeat }},
		{"/api/start", ``, func(s engine.State) bool { return s.IsPlaying && s.CurrentBeat == 1 }},
		{"/api/stop", ``, func(s engine.State) bool { return !s.IsPlaying && s.CurrentBeat == 0 }},
	}
	_, mux := newTestServer(t, &nullHost{})
	for _, tt := range tests {
		rec := do(mux, http.MethodPost, tt.path, tt.body)
		if rec.Code != http.StatusOK {
			t.Errorf("POST %s %s: code %d, body %s", tt.path, tt.body, rec.Code, rec.Body)
			continue
		}
		r := decodeReply(t, rec)
		if !r.OK || !tt.check(r.State) {
			t.Errorf("POST %s %s: state %+v", tt.path, tt.body, r.State)
		}
	}
}

func TestBadRequests(t *testing.T) {
	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/api/bpm", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/bpm", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/api/bpm", `not json`, http.StatusBadRequest},
		{http.MethodPost, "/api/timesig", `{"beats_per_bar": 3, "beat_unit": 5}`, http.StatusBadRequest},
		{http.MethodPost, "/api/sound", `{"sound": "gong"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/volume", `{"gain": 1}`, http.StatusBadRequest},
	}
	_, mux := newTestServer(t, &nullHost{})
	for _, tt := range tests {
		rec := do(mux, tt.method, tt.path, tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s %s %s: code %d, want %d", tt.method, tt.path, tt.body, rec.Code, tt.want)
		}
	}
}

func TestStartFailureIsServerError(t *testing.T) {
	_, mux := newTestServer(t, &nullHost{startErr: errors.New("no device")})
	rec := do(mux, http.MethodPost, "/api/start", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	r := decodeReply(t, rec)
	if r.OK || !strings.Contains(r.Error, "no device") {
		t.Errorf("reply = %+v", r)
	}
}

func TestTap(t *testing.T) {
	_, mux := newTestServer(t, &nullHost{})
	rec := do(mux, http.MethodPost, "/api/tap", "")
	var got map[string]any
	json.NewDecoder(rec.Body).Decode(&got)
	if got["ok"] != true || got["tempo"] != false {
		t.Errorf("first tap = %v, want ok with no tempo yet", got)
	}
}

func TestTrainer(t *testing.T) {
	ctrl, mux := newTestServer(t, &nullHost{})

	rec := do(mux, http.MethodPost, "/api/trainer", `{"start_bpm": 80, "target_bpm": 120, "step": 5, "bars": 4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start trainer: code %d, body %s", rec.Code, rec.Body)
	}
	if got := ctrl.State().BPM; got != 80 {
		t.Errorf("BPM = %d, want 80", got)
	}

	rec = do(mux, http.MethodGet, "/api/trainer", "")
	var st trainer.Status
	json.NewDecoder(rec.Body).Decode(&st)
	if !st.Enabled || st.TargetBPM != 120 || st.BarsRemaining != 4 {
		t.Errorf("status = %+v", st)
	}

	do(mux, http.MethodPost, "/api/trainer", `{"enabled": false}`)
	rec = do(mux, http.MethodGet, "/api/trainer", "")
	json.NewDecoder(rec.Body).Decode(&st)
	if st.Enabled {
		t.Error("trainer still enabled after stop")
	}

	rec = do(mux, http.MethodPost, "/api/trainer", `{"start_bpm": 80, "target_bpm": 120, "step": 0, "bars": 4}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero step: code %d, want 400", rec.Code)
	}
}
