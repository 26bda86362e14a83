package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/division"
)

const refreshJobTimeout = time.Minute

// RegisterStatusRefreshJob registers the periodic division status refresh.
// The coordinator cache is refreshed after every mutating operation; this job
// is the fallback that bounds staleness when mutations happen outside the
// service (results entered directly in the encounter store, for example).
func RegisterStatusRefreshJob(coordinator *division.Coordinator, cronExpr string) error {
	if coordinator == nil {
		return fmt.Errorf("status refresh job requires a coordinator")
	}

	jobName := "division_status_refresh"
	jobLogger := log.With().
		Str("component", "division_status_refresh_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshJobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if err := coordinator.RefreshAll(ctx); err != nil {
			jobLogger.Error().Err(err).Msg("Failed to refresh division statuses")
			return
		}
		jobLogger.Debug().Msg("Division statuses refreshed")
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add division status refresh job: %w", err)
	}

	jobLogger.Info().Msg("Division status refresh job registered")
	return nil
}
