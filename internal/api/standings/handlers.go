// internal/api/standings/handlers.go
package standings

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/api/apiutil"
	"github.com/courtline/courtline/internal/division"
	standingsengine "github.com/courtline/courtline/internal/standings"
)

var (
	engine      *standingsengine.Engine
	coordinator *division.Coordinator
	initOnce    sync.Once
)

const standingsQueryTimeout = 10 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *standingsengine.Engine, c *division.Coordinator) {
	if e == nil || c == nil {
		return
	}
	initOnce.Do(func() {
		engine = e
		coordinator = c
	})
}

type calculateRequest struct {
	DivisionID int64  `json:"divisionId"`
	PoolID     *int64 `json:"poolId,omitempty"`
}

// POST /api/v1/standings/calculate
func HandleCalculate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil || coordinator == nil {
		logger.Error().Msg("Standings engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req calculateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DivisionID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "divisionId must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), standingsQueryTimeout)
	defer cancel()

	var results []standingsengine.PoolStandings
	err := coordinator.WithLock(ctx, req.DivisionID, func(ctx context.Context) error {
		var calcErr error
		results, calcErr = engine.Calculate(ctx, req.DivisionID, req.PoolID)
		return calcErr
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, results)
}

type overrideRequest struct {
	UnitID   int64 `json:"unitId"`
	PoolRank int64 `json:"poolRank"`
}

// POST /api/v1/standings/override
func HandleOverride(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil {
		logger.Error().Msg("Standings engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req overrideRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UnitID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "unitId must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), standingsQueryTimeout)
	defer cancel()

	standing, err := engine.OverrideRank(ctx, req.UnitID, req.PoolRank)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, standing)
}

type finalizeRequest struct {
	DivisionID int64 `json:"divisionId"`
}

// POST /api/v1/standings/finalize
func HandleFinalize(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil || coordinator == nil {
		logger.Error().Msg("Standings engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req finalizeRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DivisionID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "divisionId must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), standingsQueryTimeout)
	defer cancel()

	var advanced int64
	err := coordinator.WithLock(ctx, req.DivisionID, func(ctx context.Context) error {
		var finalizeErr error
		advanced, finalizeErr = engine.Finalize(ctx, req.DivisionID)
		return finalizeErr
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]int64{"advancedCount": advanced})
}

type resetRequest struct {
	DivisionID int64 `json:"divisionId"`
}

// POST /api/v1/standings/reset
func HandleReset(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil || coordinator == nil {
		logger.Error().Msg("Standings engine not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req resetRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DivisionID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "divisionId must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), standingsQueryTimeout)
	defer cancel()

	err := coordinator.WithLock(ctx, req.DivisionID, func(ctx context.Context) error {
		return engine.Reset(ctx, req.DivisionID)
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	switch {
	case errors.Is(err, standingsengine.ErrStandingNotFound):
		apiutil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, standingsengine.ErrInvalidRank):
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, standingsengine.ErrPoolFinalized),
		errors.Is(err, standingsengine.ErrPoolNotCalculated):
		apiutil.WriteError(w, http.StatusConflict, err.Error())
	default:
		logger.Error().Err(err).Msg("Standings operation failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to process standings request")
	}
}
