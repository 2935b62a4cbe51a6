// Package health serves the read-only introspection endpoint.
package health

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/dedup"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// Report is the JSON document returned by the health endpoint.
type Report struct {
	Status    string      `json:"status"`
	Uptime    string      `json:"uptime"`
	Timestamp time.Time   `json:"timestamp"`
	Cache     cache.Stats `json:"cache"`
	InFlight  int         `json:"inflight"`
	Memory    Memory      `json:"memory"`
}

// Memory reports process memory in bytes.
type Memory struct {
	Alloc      uint64 `json:"alloc"`
	Sys        uint64 `json:"sys"`
	HeapInUse  uint64 `json:"heapInUse"`
	RSS        uint64 `json:"rss"`
	Goroutines int    `json:"goroutines"`
}

// Handler reports cache, coalescing and memory state.
type Handler struct {
	backend   cache.Backend
	tracker   *dedup.Tracker
	startedAt time.Time
	proc      *process.Process
	logger    zerolog.Logger
}

// NewHandler creates a health handler. tracker may be nil when coalescing is disabled.
func NewHandler(backend cache.Backend, tracker *dedup.Tracker, startedAt time.Time, logger zerolog.Logger) *Handler {
	if backend == nil {
		panic("cache backend cannot be nil")
	}

	h := &Handler{
		backend:   backend,
		tracker:   tracker,
		startedAt: startedAt,
		logger:    logger,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("Process stats unavailable, RSS will be reported as 0")
	} else {
		h.proc = proc
	}

	return h
}

// Report collects the current state.
func (h *Handler) Report(r *http.Request) Report {
	now := time.Now().UTC()

	report := Report{
		Status:    "ok",
		Uptime:    now.Sub(h.startedAt).Round(time.Second).String(),
		Timestamp: now,
		Cache:     h.backend.Stats(r.Context()),
		Memory:    h.memory(),
	}
	if h.tracker != nil {
		report.InFlight = h.tracker.InFlight()
	}
	return report
}

func (h *Handler) memory() Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	mem := Memory{
		Alloc:      ms.Alloc,
		Sys:        ms.Sys,
		HeapInUse:  ms.HeapInuse,
		Goroutines: runtime.NumGoroutine(),
	}

	if h.proc != nil {
		if info, err := h.proc.MemoryInfo(); err == nil {
			mem.RSS = info.RSS
		} else {
			h.logger.Debug().Err(err).Msg("Failed to read RSS")
		}
	}
	return mem
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	if err := json.NewEncoder(w).Encode(h.Report(r)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write health report")
	}
}
