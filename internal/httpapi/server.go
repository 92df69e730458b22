// Package httpapi exposes the world engine's REST surface, grounded in the
// teacher's internal/httpapi/server.go registerRoutes idiom: a bare
// net/http.ServeMux with Go 1.22+ method-pattern routes, no external router.
package httpapi

import (
	"net/http"

	"genworld/internal/agentloop"
	"genworld/internal/events"
	"genworld/internal/scheduler"
	"genworld/internal/store"
)

type Server struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	events    *events.Processor
	loop      *agentloop.Loop
	mux       *http.ServeMux
}

func NewServer(st *store.Store, sch *scheduler.Scheduler, ev *events.Processor, loop *agentloop.Loop) *Server {
	s := &Server{store: st, scheduler: sch, events: ev, loop: loop, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /worlds", s.handleCreateWorld)
	s.mux.HandleFunc("GET /worlds", s.handleListWorlds)
	s.mux.HandleFunc("GET /worlds/{id}", s.handleGetWorld)
	s.mux.HandleFunc("DELETE /worlds/{id}", s.handleDeleteWorld)
	s.mux.HandleFunc("POST /worlds/{id}/start", s.handleStartWorld)
	s.mux.HandleFunc("POST /worlds/{id}/pause", s.handlePauseWorld)
	s.mux.HandleFunc("POST /worlds/{id}/resume", s.handleResumeWorld)
	s.mux.HandleFunc("POST /worlds/{id}/stop", s.handleStopWorld)
	s.mux.HandleFunc("GET /worlds/{id}/time", s.handleGetTime)
	s.mux.HandleFunc("POST /worlds/{id}/time/advance", s.handleAdvanceTime)
	s.mux.HandleFunc("POST /worlds/{id}/time/speed", s.handleSetSpeed)
	s.mux.HandleFunc("POST /worlds/{id}/process", s.handleProcessTick)

	s.mux.HandleFunc("POST /worlds/{id}/agents", s.handleCreateAgent)
	s.mux.HandleFunc("GET /worlds/{id}/agents", s.handleListAgents)
	s.mux.HandleFunc("GET /worlds/{id}/agents/{aid}", s.handleGetAgent)
	s.mux.HandleFunc("DELETE /worlds/{id}/agents/{aid}", s.handleDeleteAgent)
	s.mux.HandleFunc("GET /worlds/{id}/agents/{aid}/memories", s.handleAgentMemories)
	s.mux.HandleFunc("GET /worlds/{id}/agents/{aid}/plan", s.handleAgentPlan)

	s.mux.HandleFunc("POST /worlds/{id}/events", s.handlePostEvent)
	s.mux.HandleFunc("GET /worlds/{id}/events", s.handleListEvents)

	s.mux.HandleFunc("POST /worlds/{id}/snapshots", s.handleCreateSnapshot)
	s.mux.HandleFunc("GET /worlds/{id}/snapshots", s.handleListSnapshots)
	s.mux.HandleFunc("POST /worlds/{id}/snapshots/{sid}/restore", s.handleRestoreSnapshot)

	s.mux.HandleFunc("GET /worlds/{id}/stream", s.handleSSE)
	s.mux.HandleFunc("GET /worlds/{id}/ws", s.handleWS)
}
