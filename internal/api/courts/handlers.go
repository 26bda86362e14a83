// internal/api/courts/handlers.go
package courts

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/api/apiutil"
	"github.com/courtline/courtline/internal/db"
	"github.com/courtline/courtline/internal/models"
)

var (
	queries     *db.Queries
	queriesOnce sync.Once
)

const courtsQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *db.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

// GET /api/v1/courts
func HandleListCourts(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	courts, err := queries.ListCourts(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load courts")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load courts")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, courts)
}

// GET /api/v1/courts/groups
func HandleListGroups(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	groups, err := queries.ListCourtGroups(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load court groups")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load court groups")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, groups)
}

type updateStatusRequest struct {
	CourtID int64  `json:"courtId"`
	Status  string `json:"status"`
}

// PATCH /api/v1/courts/status
func HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req updateStatusRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CourtID <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "courtId must be a positive integer")
		return
	}
	status, err := models.ParseCourtStatus(req.Status)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	court, err := queries.UpdateCourtStatus(ctx, db.UpdateCourtStatusParams{
		ID:     req.CourtID,
		Status: status,
	})
	if err != nil {
		logger.Error().Err(err).Int64("court_id", req.CourtID).Msg("Failed to update court status")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update court status")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, court)
}
