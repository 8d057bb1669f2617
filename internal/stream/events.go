package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/satindergrewal/metronome/internal/engine"
)

// BeatFeed is the part of engine.Controller the events handler needs.
type BeatFeed interface {
	Subscribe() *engine.Subscription
	Unsubscribe(*engine.Subscription)
}

// EventsHandler pushes beat events to browsers as server-sent events, so a
// UI can flash the current beat without polling.
type EventsHandler struct {
	feed BeatFeed
}

// NewEventsHandler creates an events handler reading from feed.
func NewEventsHandler(feed BeatFeed) *EventsHandler {
	return &EventsHandler{feed: feed}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.feed.Subscribe()
	defer h.feed.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.C:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Beat event encode error: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: beat\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
