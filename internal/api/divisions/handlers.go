// internal/api/divisions/handlers.go
package divisions

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/api/apiutil"
	"github.com/courtline/courtline/internal/division"
)

var (
	coordinator *division.Coordinator
	initOnce    sync.Once
)

const divisionQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(c *division.Coordinator) {
	if c == nil {
		return
	}
	initOnce.Do(func() {
		coordinator = c
	})
}

// GET /api/v1/divisions/status?division_id=N
func HandleStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if coordinator == nil {
		logger.Error().Msg("Division coordinator not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	divisionID, err := apiutil.ParsePositiveInt64Field(r.URL.Query().Get("division_id"), "division_id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), divisionQueryTimeout)
	defer cancel()

	status, err := coordinator.Status(ctx, divisionID)
	if err != nil {
		logger.Error().Err(err).Int64("division_id", divisionID).Msg("Failed to load division status")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load division status")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, status)
}
