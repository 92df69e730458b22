package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"genworld/internal/apperr"
	"genworld/internal/worldmodel"
)

type createAgentRequest struct {
	Name        string  `json:"name"`
	Persona     string  `json:"persona"`
	CurrentArea string  `json:"current_area"`
	LocationX   float64 `json:"location_x"`
	LocationY   float64 `json:"location_y"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, fmt.Errorf("name is required: %w", apperr.ErrValidation))
		return
	}
	agent := &worldmodel.Agent{
		ID:          uuid.NewString(),
		WorldID:     r.PathValue("id"),
		Name:        req.Name,
		Persona:     req.Persona,
		CurrentArea: req.CurrentArea,
		LocationX:   req.LocationX,
		LocationY:   req.LocationY,
		Status:      "idle",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Agents.Put(r.Context(), agent); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.Agents.ListByWorld(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.store.Agents.Get(r.Context(), r.PathValue("aid"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Agents.Delete(r.Context(), r.PathValue("aid")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAgentMemories is the debug/introspection endpoint dumping the raw
// memory stream, grounded in the teacher's evolving.go GetMemoryStats /
// SearchWithScores observability surface.
func (s *Server) handleAgentMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := s.store.Memories.ListByAgent(r.Context(), r.PathValue("aid"), 0)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, memories)
}

// handleAgentPlan returns the agent's current in-memory plan bundle,
// grounded in the teacher's debug-surface idiom of exposing otherwise
// internal cognitive state for observability.
func (s *Server) handleAgentPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.loop.CurrentPlan(r.PathValue("aid"))
	if !ok {
		respondError(w, fmt.Errorf("no plan generated yet for agent %s: %w", r.PathValue("aid"), apperr.ErrNotFound))
		return
	}
	respondJSON(w, http.StatusOK, plan)
}
