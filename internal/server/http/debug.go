package http

import (
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// DebugHandler provides runtime and profiling endpoints.
type DebugHandler struct {
	pprofEnabled bool
	startTime    time.Time
}

// NewDebugHandler creates a new debug handler.
func NewDebugHandler(pprofEnabled bool, startTime time.Time) *DebugHandler {
	return &DebugHandler{
		pprofEnabled: pprofEnabled,
		startTime:    startTime,
	}
}

// Register registers debug endpoints on a router mounted at /debug.
func (h *DebugHandler) Register(r *mux.Router) {
	r.HandleFunc("/runtime", h.handleRuntimeInfo).Methods(http.MethodGet)

	if h.pprofEnabled {
		r.HandleFunc("/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/pprof/profile", pprof.Profile)
		r.HandleFunc("/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/pprof/trace", pprof.Trace)
		// Index also serves the named profiles (heap, goroutine, block, mutex).
		r.PathPrefix("/pprof/").HandlerFunc(pprof.Index)

		log.Info().Msg("pprof endpoints registered at /debug/pprof/")
	}
}

// handleRuntimeInfo returns Go runtime information as JSON.
func (h *DebugHandler) handleRuntimeInfo(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	info := map[string]interface{}{
		"go_version":     runtime.Version(),
		"go_os":          runtime.GOOS,
		"go_arch":        runtime.GOARCH,
		"num_cpu":        runtime.NumCPU(),
		"num_goroutine":  runtime.NumGoroutine(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"memory": map[string]interface{}{
			"alloc_mb":          float64(memStats.Alloc) / 1024 / 1024,
			"sys_mb":            float64(memStats.Sys) / 1024 / 1024,
			"heap_inuse_mb":     float64(memStats.HeapInuse) / 1024 / 1024,
			"heap_objects":      memStats.HeapObjects,
			"num_gc":            memStats.NumGC,
			"gc_pause_total_ms": float64(memStats.PauseTotalNs) / 1e6,
		},
	}

	writeJSON(w, http.StatusOK, info)
}
