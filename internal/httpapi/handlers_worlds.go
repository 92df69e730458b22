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

type createWorldRequest struct {
	Name        string  `json:"name"`
	SpeedFactor float64 `json:"speed_factor"`
}

func (s *Server) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	var req createWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperr.ErrValidation, err))
		return
	}
	if req.Name == "" {
		respondError(w, fmt.Errorf("name is required: %w", apperr.ErrValidation))
		return
	}
	if req.SpeedFactor <= 0 {
		req.SpeedFactor = 1
	}

	world := &worldmodel.World{
		ID:          uuid.NewString(),
		Name:        req.Name,
		State:       worldmodel.StateStopped,
		CurrentTime: time.Now().UTC(),
		SpeedFactor: req.SpeedFactor,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Worlds.Put(r.Context(), world); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, world)
}

func (s *Server) handleListWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := s.store.Worlds.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, worlds)
}

func (s *Server) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	world, err := s.store.Worlds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, world)
}

func (s *Server) handleDeleteWorld(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Worlds.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartWorld(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Start(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePauseWorld(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Pause(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResumeWorld(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Resume(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStopWorld(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Stop(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetTime(w http.ResponseWriter, r *http.Request) {
	world, err := s.store.Worlds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"current_time": world.CurrentTime,
		"tick_seq":      world.TickSeq,
		"speed_factor":  world.SpeedFactor,
	})
}

type advanceTimeRequest struct {
	Seconds float64 `json:"seconds"`
}

// handleAdvanceTime moves the simulated clock forward directly, without
// running a cognition tick for any agent — useful for tests and for
// operators fast-forwarding a paused world.
func (s *Server) handleAdvanceTime(w http.ResponseWriter, r *http.Request) {
	var req advanceTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds <= 0 {
		respondError(w, fmt.Errorf("seconds must be positive: %w", apperr.ErrValidation))
		return
	}
	world, err := s.store.Worlds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	world.CurrentTime = world.CurrentTime.Add(time.Duration(req.Seconds * float64(time.Second)))
	if err := s.store.Worlds.Put(r.Context(), world); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, world)
}

// handleProcessTick runs a single cognition tick for the world on demand,
// regardless of the scheduler's running cadence — used by tests and by
// operators stepping a paused world one tick at a time.
func (s *Server) handleProcessTick(w http.ResponseWriter, r *http.Request) {
	world, err := s.store.Worlds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.scheduler.Tick(r.Context(), world); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, world)
}

type setSpeedRequest struct {
	SpeedFactor float64 `json:"speed_factor"`
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req setSpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SpeedFactor <= 0 {
		respondError(w, fmt.Errorf("speed_factor must be positive: %w", apperr.ErrValidation))
		return
	}
	world, err := s.store.Worlds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	world.SpeedFactor = req.SpeedFactor
	if err := s.store.Worlds.Put(r.Context(), world); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, world)
}
