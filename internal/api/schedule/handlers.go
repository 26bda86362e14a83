// internal/api/schedule/handlers.go
package schedule

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/allocation"
	"github.com/courtline/courtline/internal/api/apiutil"
	"github.com/courtline/courtline/internal/config"
	"github.com/courtline/courtline/internal/division"
	"github.com/courtline/courtline/internal/models"
)

var (
	engine      *allocation.Engine
	coordinator *division.Coordinator
	defaults    config.SchedulingConfig
	initOnce    sync.Once
)

const scheduleQueryTimeout = 10 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *allocation.Engine, c *division.Coordinator, scheduling config.SchedulingConfig) {
	if e == nil || c == nil {
		return
	}
	initOnce.Do(func() {
		engine = e
		coordinator = c
		defaults = scheduling
	})
}

// applyDefaults fills omitted duration and rest from the configured defaults.
func applyDefaults(duration, rest int64) (int64, int64) {
	if duration == 0 {
		duration = defaults.DefaultDurationMinutes
	}
	if rest == 0 {
		rest = defaults.DefaultRestMinutes
	}
	return duration, rest
}

type generateRequest struct {
	EncounterIDs    []int64 `json:"encounterIds,omitempty"`
	DivisionID      int64   `json:"divisionId"`
	PhaseID         *int64  `json:"phaseId,omitempty"`
	Round           *int64  `json:"round,omitempty"`
	CourtIDs        []int64 `json:"courtIds,omitempty"`
	CourtGroupID    *int64  `json:"courtGroupId,omitempty"`
	DurationMinutes int64   `json:"durationMinutes"`
	RestMinutes     int64   `json:"restMinutes"`
	StartInstant    string  `json:"startInstant"`
}

// POST /api/v1/schedule/generate
func HandleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil {
		logger.Error().Msg("Allocation engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req generateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DivisionID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "divisionId must be a positive integer")
		return
	}
	start, err := apiutil.ParseInstant(req.StartInstant, "startInstant")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	duration, rest := applyDefaults(req.DurationMinutes, req.RestMinutes)

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	proposal, err := engine.Propose(ctx, allocation.ProposeRequest{
		EncounterIDs: req.EncounterIDs,
		DivisionID:   req.DivisionID,
		PhaseID:      req.PhaseID,
		Round:        req.Round,
		Courts: allocation.CourtSelection{
			CourtIDs: req.CourtIDs,
			GroupID:  req.CourtGroupID,
		},
		Config: allocation.Config{
			DurationMinutes: duration,
			RestMinutes:     rest,
			Start:           start,
		},
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, proposal)
}

type applyAllocation struct {
	EncounterID      int64  `json:"encounterId"`
	CourtID          int64  `json:"courtId"`
	ScheduledInstant string `json:"scheduledInstant"`
}

type applyRequest struct {
	DivisionID      int64             `json:"divisionId"`
	DurationMinutes int64             `json:"durationMinutes"`
	RestMinutes     int64             `json:"restMinutes"`
	Allocations     []applyAllocation `json:"allocations"`
}

// POST /api/v1/schedule/apply
func HandleApply(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil || coordinator == nil {
		logger.Error().Msg("Allocation engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req applyRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DivisionID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "divisionId must be a positive integer")
		return
	}
	duration, rest := applyDefaults(req.DurationMinutes, req.RestMinutes)
	cfg := allocation.Config{
		DurationMinutes: duration,
		RestMinutes:     rest,
		Start:           time.Now(),
	}
	if err := cfg.Validate(); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	allocations := make([]models.Allocation, 0, len(req.Allocations))
	for _, item := range req.Allocations {
		start, err := apiutil.ParseInstant(item.ScheduledInstant, "scheduledInstant")
		if err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		allocations = append(allocations, models.Allocation{
			EncounterID: item.EncounterID,
			CourtID:     item.CourtID,
			Start:       start,
			End:         start.Add(cfg.SlotLength()),
			Pending:     true,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	err := coordinator.WithLock(ctx, req.DivisionID, func(ctx context.Context) error {
		return engine.Apply(ctx, allocations)
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]int{"appliedCount": len(allocations)})
}

type persistRequest struct {
	DivisionID int64 `json:"divisionId"`
}

// POST /api/v1/schedule/persist
func HandlePersist(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil || coordinator == nil {
		logger.Error().Msg("Allocation engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req persistRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DivisionID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "divisionId must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	var result *allocation.PersistResult
	err := coordinator.WithLock(ctx, req.DivisionID, func(ctx context.Context) error {
		var persistErr error
		result, persistErr = engine.Persist(ctx, req.DivisionID)
		return persistErr
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, result)
}

// DELETE /api/v1/schedule/allocations?encounter_id=N
func HandleRemove(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil {
		logger.Error().Msg("Allocation engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	encounterID, err := apiutil.ParsePositiveInt64Field(r.URL.Query().Get("encounter_id"), "encounter_id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	if err := engine.Remove(ctx, encounterID); err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type clearRequest struct {
	DivisionID int64  `json:"divisionId"`
	PhaseID    *int64 `json:"phaseId,omitempty"`
}

// POST /api/v1/schedule/clear
func HandleClear(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil || coordinator == nil {
		logger.Error().Msg("Allocation engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req clearRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DivisionID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "divisionId must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	var cleared int64
	err := coordinator.WithLock(ctx, req.DivisionID, func(ctx context.Context) error {
		var clearErr error
		cleared, clearErr = engine.Clear(ctx, req.DivisionID, req.PhaseID)
		return clearErr
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]int64{"clearedCount": cleared})
}

// GET /api/v1/schedule/estimate?count=N&courts=N&duration=N&rest=N
func HandleEstimate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	count, err := apiutil.ParseNonNegativeInt64Field(query.Get("count"), "count")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	courts, err := apiutil.ParsePositiveInt64Field(query.Get("courts"), "courts")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	duration, err := apiutil.ParsePositiveInt64Field(query.Get("duration"), "duration")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rest, err := apiutil.ParsePositiveInt64Field(query.Get("rest"), "rest")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	estimate := allocation.Estimate(count, courts, allocation.Config{
		DurationMinutes: duration,
		RestMinutes:     rest,
		Start:           time.Now(),
	})
	apiutil.WriteJSON(w, http.StatusOK, map[string]int64{
		"estimatedMinutes": int64(estimate / time.Minute),
	})
}

func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	switch {
	case errors.Is(err, allocation.ErrAllocationNotFound):
		apiutil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, allocation.ErrNoCourtsAvailable),
		errors.Is(err, allocation.ErrInvalidDuration),
		errors.Is(err, allocation.ErrInvalidRest),
		errors.Is(err, allocation.ErrMissingStart),
		strings.Contains(err.Error(), "not found"):
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error().Err(err).Msg("Schedule operation failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to process schedule request")
	}
}
