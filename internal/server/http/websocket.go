package http

import (
	"net/http"

	"github.com/brianly1003/grouppilot/internal/rpc/transport"
	"github.com/rs/zerolog/log"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
)

// handleControl upgrades to a websocket and serves the control API on it.
// The optional user_id query parameter limits pushed events to one user.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	userFilter := r.URL.Query().Get("user_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("websocket upgrade failed")
		return
	}

	t := transport.NewWebSocketTransport(conn)
	log.Info().
		Str("transport_id", t.ID()).
		Str("remote_addr", r.RemoteAddr).
		Str("path", r.URL.Path).
		Str("user_filter", userFilter).
		Msg("control client connected")

	// Hijacked connections are not tracked by http.Server.Shutdown; the
	// control server's Stop closes them.
	if err := s.control.ServeTransport(r.Context(), t, userFilter); err != nil {
		log.Debug().Err(err).Str("transport_id", t.ID()).Msg("control client ended")
	}
}
