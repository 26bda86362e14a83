// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/courtline/courtline/internal/api"
	"github.com/courtline/courtline/internal/api/courts"
	"github.com/courtline/courtline/internal/api/divisions"
	scheduleapi "github.com/courtline/courtline/internal/api/schedule"
	standingsapi "github.com/courtline/courtline/internal/api/standings"
	"github.com/courtline/courtline/internal/config"
)

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Schedule routes
	mux.HandleFunc("POST /api/v1/schedule/generate", scheduleapi.HandleGenerate)
	mux.HandleFunc("POST /api/v1/schedule/apply", scheduleapi.HandleApply)
	mux.HandleFunc("POST /api/v1/schedule/persist", scheduleapi.HandlePersist)
	mux.HandleFunc("POST /api/v1/schedule/clear", scheduleapi.HandleClear)
	mux.HandleFunc("DELETE /api/v1/schedule/allocations", scheduleapi.HandleRemove)
	mux.HandleFunc("GET /api/v1/schedule/estimate", scheduleapi.HandleEstimate)

	// Standings routes
	mux.HandleFunc("POST /api/v1/standings/calculate", standingsapi.HandleCalculate)
	mux.HandleFunc("POST /api/v1/standings/override", standingsapi.HandleOverride)
	mux.HandleFunc("POST /api/v1/standings/finalize", standingsapi.HandleFinalize)
	mux.HandleFunc("POST /api/v1/standings/reset", standingsapi.HandleReset)

	// Division routes
	mux.HandleFunc("GET /api/v1/divisions/status", divisions.HandleStatus)

	// Court routes
	mux.HandleFunc("GET /api/v1/courts", courts.HandleListCourts)
	mux.HandleFunc("GET /api/v1/courts/groups", courts.HandleListGroups)
	mux.HandleFunc("PATCH /api/v1/courts/status", courts.HandleUpdateStatus)
}
