package http

import (
	"net/http"

	"github.com/brianly1003/grouppilot/internal/rpc/handler"
)

// OpenRPCInfo describes the control API in generated documents.
var OpenRPCInfo = handler.OpenRPCInfo{
	Title:       "grouppilot control API",
	Description: "JSON-RPC 2.0 API for inspecting and steering grouppilot sessions",
	Version:     "1.0.0",
}

// OpenRPCSpec generates the control API document served at serverURL.
func OpenRPCSpec(registry *handler.Registry, serverURL string) *handler.OpenRPCSpec {
	return registry.GenerateOpenRPC(OpenRPCInfo, serverURL)
}

// handleOpenRPCDiscover serves the OpenRPC document of the control API.
func (s *Server) handleOpenRPCDiscover(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeJSONError(w, "control API is disabled", http.StatusNotFound)
		return
	}

	data, err := OpenRPCSpec(s.registry, "ws://"+s.Addr()+"/rpc").ToJSON()
	if err != nil {
		writeJSONError(w, "failed to generate OpenRPC document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
