package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"genworld/internal/worldmodel"
)

// sseWriter wraps http.ResponseWriter/http.Flusher for event-stream
// framing, grounded in the teacher's internal/a2a/sse.SSEWriter.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, f: f}, true
}

func (s *sseWriter) Send(ev *worldmodel.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", body); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// handleSSE streams a world's events to a browser client, reading from the
// same subscriber fan-out the websocket handler uses.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	sw, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.events.Subscribe(r.PathValue("id"), "")
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sw.Send(ev); err != nil {
				return
			}
		}
	}
}
