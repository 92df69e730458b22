package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"genworld/internal/apperr"
	"genworld/internal/worldmodel"
)

type postEventRequest struct {
	Kind    worldmodel.EventKind `json:"kind"`
	Source  string               `json:"source"`
	Payload map[string]any       `json:"payload"`
}

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var req postEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Kind == "" {
		respondError(w, fmt.Errorf("kind is required: %w", apperr.ErrValidation))
		return
	}
	ev := &worldmodel.Event{
		ID:      uuid.NewString(),
		WorldID: r.PathValue("id"),
		Kind:    req.Kind,
		Source:  req.Source,
		Payload: req.Payload,
	}
	if err := s.events.Process(r.Context(), ev); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			since = n
		}
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	events, err := s.store.Events.ListByWorld(r.Context(), r.PathValue("id"), since, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}
