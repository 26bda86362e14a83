// Package division tracks per-division scheduling lifecycle state and
// serializes mutating operations for the same division.
package division

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/db"
	"github.com/courtline/courtline/internal/models"
)

type ScheduleStatus string

const (
	ScheduleStatusNone           ScheduleStatus = "no_schedule"
	ScheduleStatusReady          ScheduleStatus = "schedule_ready"
	ScheduleStatusUnitsDrawn     ScheduleStatus = "units_drawn"
	ScheduleStatusPoolsFinalized ScheduleStatus = "pools_finalized"
)

// Status is the composite lifecycle snapshot for one division. It is a cache
// derived from the persisted allocations, unit assignments, and pool
// statuses; it performs no computation of its own.
type Status struct {
	DivisionID     int64          `json:"divisionId"`
	ScheduleReady  bool           `json:"scheduleReady"`
	UnitsAssigned  bool           `json:"unitsAssigned"`
	PoolsFinalized bool           `json:"poolsFinalized"`
	ScheduleStatus ScheduleStatus `json:"scheduleStatus"`
	RefreshedAt    time.Time      `json:"refreshedAt"`
}

// CanFinalize reports whether a finalize operation should be offered: a
// schedule must exist and every pool must at least have calculated standings
// (the standings engine still enforces the state machine itself).
func (s Status) CanFinalize() bool {
	return s.ScheduleReady && s.UnitsAssigned && !s.PoolsFinalized
}

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type divisionState struct {
	mu     sync.Mutex
	status Status
}

// Coordinator caches division lifecycle status and owns a per-division
// advisory lock. Mutating engine operations for the same division serialize
// through WithLock; divisions do not contend with each other.
type Coordinator struct {
	db    *db.DB
	clock Clock

	mu        sync.Mutex
	divisions map[int64]*divisionState
}

func NewCoordinator(database *db.DB, clock Clock) (*Coordinator, error) {
	if database == nil {
		return nil, fmt.Errorf("division coordinator requires a database")
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Coordinator{
		db:        database,
		clock:     clock,
		divisions: make(map[int64]*divisionState),
	}, nil
}

func (c *Coordinator) state(divisionID int64) *divisionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.divisions[divisionID]
	if !ok {
		state = &divisionState{status: Status{
			DivisionID:     divisionID,
			ScheduleStatus: ScheduleStatusNone,
		}}
		c.divisions[divisionID] = state
	}
	return state
}

// WithLock runs fn while holding the division's advisory lock, then refreshes
// the cached status from the database. Two organizers mutating the same
// division serialize here instead of silently overwriting each other.
func (c *Coordinator) WithLock(ctx context.Context, divisionID int64, fn func(context.Context) error) error {
	state := c.state(divisionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if err := fn(ctx); err != nil {
		return err
	}

	status, err := c.refreshLocked(ctx, state, divisionID)
	if err != nil {
		// The mutation succeeded; a stale cache is repaired by the next
		// refresh cycle.
		log.Ctx(ctx).Warn().Err(err).
			Int64("division_id", divisionID).
			Msg("Failed to refresh division status after mutation")
		return nil
	}
	log.Ctx(ctx).Debug().
		Int64("division_id", divisionID).
		Str("schedule_status", string(status.ScheduleStatus)).
		Msg("Division status refreshed")
	return nil
}

// Status returns the cached snapshot, refreshing it first if it has never
// been computed.
func (c *Coordinator) Status(ctx context.Context, divisionID int64) (Status, error) {
	state := c.state(divisionID)
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.status.RefreshedAt.IsZero() {
		return c.refreshLocked(ctx, state, divisionID)
	}
	return state.status, nil
}

// Refresh recomputes the cached status from the database.
func (c *Coordinator) Refresh(ctx context.Context, divisionID int64) (Status, error) {
	state := c.state(divisionID)
	state.mu.Lock()
	defer state.mu.Unlock()
	return c.refreshLocked(ctx, state, divisionID)
}

// RefreshAll recomputes the status of every division in the store. Used by
// the periodic refresh job.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	divisions, err := c.db.Queries.ListDivisions(ctx)
	if err != nil {
		return fmt.Errorf("list divisions: %w", err)
	}
	for _, division := range divisions {
		if _, err := c.Refresh(ctx, division.ID); err != nil {
			return fmt.Errorf("refresh division %d: %w", division.ID, err)
		}
	}
	return nil
}

func (c *Coordinator) refreshLocked(ctx context.Context, state *divisionState, divisionID int64) (Status, error) {
	allocationCount, err := c.db.Queries.CountAllocationsByDivision(ctx, divisionID)
	if err != nil {
		return Status{}, fmt.Errorf("count allocations: %w", err)
	}
	unitCount, err := c.db.Queries.CountUnitsByDivision(ctx, divisionID)
	if err != nil {
		return Status{}, fmt.Errorf("count units: %w", err)
	}
	unassignedCount, err := c.db.Queries.CountUnassignedUnitsByDivision(ctx, divisionID)
	if err != nil {
		return Status{}, fmt.Errorf("count unassigned units: %w", err)
	}
	pools, err := c.db.Queries.ListPoolsByDivision(ctx, divisionID)
	if err != nil {
		return Status{}, fmt.Errorf("list pools: %w", err)
	}

	status := Status{
		DivisionID:    divisionID,
		ScheduleReady: allocationCount > 0,
		UnitsAssigned: unitCount > 0 && unassignedCount == 0,
		RefreshedAt:   c.clock.Now(),
	}
	status.PoolsFinalized = len(pools) > 0
	for _, pool := range pools {
		if pool.Status != models.PoolStatusFinalized {
			status.PoolsFinalized = false
			break
		}
	}

	switch {
	case status.PoolsFinalized:
		status.ScheduleStatus = ScheduleStatusPoolsFinalized
	case status.UnitsAssigned && status.ScheduleReady:
		status.ScheduleStatus = ScheduleStatusUnitsDrawn
	case status.ScheduleReady:
		status.ScheduleStatus = ScheduleStatusReady
	default:
		status.ScheduleStatus = ScheduleStatusNone
	}

	state.status = status
	return status, nil
}
