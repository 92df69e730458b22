package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"genworld/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin checks are the caller's (reverse proxy's) responsibility
	// in this deployment shape; the engine itself serves only internal
	// trusted dashboards.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades to a websocket and pushes every event of the world as
// its raw worldmodel.Event JSON; no {type, data} envelope is applied and
// nothing is read from the client.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerWithTrace(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("httpapi: websocket upgrade failed")
		return
	}
	defer conn.Close()

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
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
