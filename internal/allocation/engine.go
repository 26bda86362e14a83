package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/db"
	"github.com/courtline/courtline/internal/models"
)

var (
	ErrNoCourtsAvailable  = errors.New("no schedulable courts in selection")
	ErrInvalidDuration    = errors.New("match duration must be a positive number of minutes")
	ErrInvalidRest        = errors.New("rest period must be a positive number of minutes")
	ErrMissingStart       = errors.New("schedule start time is required")
	ErrAllocationNotFound = errors.New("allocation not found")
)

// Config carries the duration/rest/start settings for a schedule run. The
// court stays busy for duration+rest after each match start; only the
// duration portion is the nominal playing window.
type Config struct {
	DurationMinutes int64     `json:"durationMinutes"`
	RestMinutes     int64     `json:"restMinutes"`
	Start           time.Time `json:"start"`
}

func (c Config) Validate() error {
	if c.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if c.RestMinutes <= 0 {
		return ErrInvalidRest
	}
	if c.Start.IsZero() {
		return ErrMissingStart
	}
	return nil
}

// SlotLength is the full court-busy interval per match.
func (c Config) SlotLength() time.Duration {
	return time.Duration(c.DurationMinutes+c.RestMinutes) * time.Minute
}

// Conflict is an advisory overlap warning. Conflicts never block a proposal;
// a human decides whether to apply the slot anyway.
type Conflict struct {
	CourtLabel  string    `json:"courtLabel"`
	Instant     time.Time `json:"instant"`
	Description string    `json:"description"`
}

type Proposal struct {
	Allocations []models.Allocation `json:"proposedAllocations"`
	Conflicts   []Conflict          `json:"conflicts"`
}

// BuildSchedule assigns candidate encounters to courts with a greedy
// earliest-available-court pass. Candidates keep their given order; for each
// one the court with the minimum next-available instant wins, ties broken by
// court list order. Each court's next-available instant is seeded past its
// existing allocations, so a pass over a consistent snapshot yields no
// conflicts; the overlap scan is a guard that records an advisory conflict,
// without blocking the slot, if the two ever disagree.
func BuildSchedule(candidates []models.Encounter, courts []models.Court, cfg Config, existing []models.Allocation) (*Proposal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		return nil, ErrNoCourtsAvailable
	}

	labels := make(map[int64]string, len(courts))
	nextAvailable := make(map[int64]time.Time, len(courts))
	for _, court := range courts {
		labels[court.ID] = court.Label
		nextAvailable[court.ID] = cfg.Start
	}
	for _, allocation := range existing {
		next, ok := nextAvailable[allocation.CourtID]
		if !ok {
			continue
		}
		if allocation.End.After(next) {
			nextAvailable[allocation.CourtID] = allocation.End
		}
	}

	proposal := &Proposal{}
	slotLength := cfg.SlotLength()
	for _, encounter := range candidates {
		chosen := courts[0]
		for _, court := range courts[1:] {
			if nextAvailable[court.ID].Before(nextAvailable[chosen.ID]) {
				chosen = court
			}
		}

		start := nextAvailable[chosen.ID]
		end := start.Add(slotLength)
		slot := models.Allocation{
			EncounterID: encounter.ID,
			CourtID:     chosen.ID,
			Start:       start,
			End:         end,
			Pending:     true,
		}

		for _, allocation := range existing {
			if allocation.Overlaps(slot) {
				proposal.Conflicts = append(proposal.Conflicts, Conflict{
					CourtLabel: labels[chosen.ID],
					Instant:    start,
					Description: fmt.Sprintf("encounter %d overlaps allocation for encounter %d on %s",
						encounter.ID, allocation.EncounterID, labels[chosen.ID]),
				})
			}
		}

		proposal.Allocations = append(proposal.Allocations, slot)
		nextAvailable[chosen.ID] = end
	}

	return proposal, nil
}

// Estimate returns an upper bound on total completion time for count matches
// on courtCount courts. It performs no assignment.
func Estimate(count, courtCount int64, cfg Config) time.Duration {
	if count <= 0 || courtCount <= 0 {
		return 0
	}
	waves := (count + courtCount - 1) / courtCount
	return time.Duration(waves) * cfg.SlotLength()
}

type Engine struct {
	db *db.DB
}

func NewEngine(database *db.DB) (*Engine, error) {
	if database == nil {
		return nil, errors.New("allocation engine requires a database")
	}
	return &Engine{db: database}, nil
}

// CourtSelection resolves to a court set from either an explicit id list or a
// group reference. Explicit ids keep their listed order for tie-breaking.
type CourtSelection struct {
	CourtIDs []int64 `json:"courtIds,omitempty"`
	GroupID  *int64  `json:"courtGroupId,omitempty"`
}

type ProposeRequest struct {
	EncounterIDs []int64        `json:"encounterIds,omitempty"`
	DivisionID   int64          `json:"divisionId"`
	PhaseID      *int64         `json:"phaseId,omitempty"`
	Round        *int64         `json:"round,omitempty"`
	Courts       CourtSelection `json:"courts"`
	Config       Config         `json:"config"`
}

// Propose loads the candidate encounters, the court set, and the persisted
// allocation context, then runs the greedy pass. Nothing is written; the
// returned proposal is applied separately.
func (e *Engine) Propose(ctx context.Context, req ProposeRequest) (*Proposal, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "allocation_engine").
		Int64("division_id", req.DivisionID).
		Logger()

	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	courts, err := e.resolveCourts(ctx, req.Courts)
	if err != nil {
		return nil, err
	}

	candidates, err := e.resolveCandidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logger.Info().Msg("No unscheduled encounters; nothing to propose")
		return &Proposal{}, nil
	}

	courtIDs := make([]int64, 0, len(courts))
	for _, court := range courts {
		courtIDs = append(courtIDs, court.ID)
	}
	existing, err := e.db.Queries.ListAllocationsByCourts(ctx, courtIDs)
	if err != nil {
		return nil, fmt.Errorf("load allocation context: %w", err)
	}

	// Allocations already held by the candidates themselves are about to be
	// replaced on apply, so they are not scheduling context.
	candidateSet := make(map[int64]struct{}, len(candidates))
	for _, encounter := range candidates {
		candidateSet[encounter.ID] = struct{}{}
	}
	others := existing[:0]
	for _, allocation := range existing {
		if _, ok := candidateSet[allocation.EncounterID]; ok {
			continue
		}
		others = append(others, allocation)
	}

	proposal, err := BuildSchedule(candidates, courts, req.Config, others)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("candidates", len(candidates)).
		Int("courts", len(courts)).
		Int("proposed", len(proposal.Allocations)).
		Int("conflicts", len(proposal.Conflicts)).
		Msg("Built schedule proposal")
	return proposal, nil
}

func (e *Engine) resolveCourts(ctx context.Context, selection CourtSelection) ([]models.Court, error) {
	var courts []models.Court
	var err error
	switch {
	case len(selection.CourtIDs) > 0:
		courts, err = e.db.Queries.ListCourtsByIDs(ctx, selection.CourtIDs)
		if err == nil {
			courts, err = orderByRequest(courts, selection.CourtIDs)
		}
	case selection.GroupID != nil:
		courts, err = e.db.Queries.ListCourtsByGroup(ctx, *selection.GroupID)
	default:
		return nil, ErrNoCourtsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("resolve court selection: %w", err)
	}

	schedulable := courts[:0]
	for _, court := range courts {
		if court.Status.Schedulable() {
			schedulable = append(schedulable, court)
		}
	}
	if len(schedulable) == 0 {
		return nil, ErrNoCourtsAvailable
	}
	return schedulable, nil
}

// orderByRequest reorders fetched courts to the caller's listed order, since
// that order decides availability ties.
func orderByRequest(courts []models.Court, ids []int64) ([]models.Court, error) {
	byID := make(map[int64]models.Court, len(courts))
	for _, court := range courts {
		byID[court.ID] = court
	}
	ordered := make([]models.Court, 0, len(ids))
	for _, id := range ids {
		court, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("court %d not found", id)
		}
		ordered = append(ordered, court)
	}
	return ordered, nil
}

func (e *Engine) resolveCandidates(ctx context.Context, req ProposeRequest) ([]models.Encounter, error) {
	if len(req.EncounterIDs) > 0 {
		encounters, err := e.db.Queries.ListEncountersByIDs(ctx, req.EncounterIDs)
		if err != nil {
			return nil, fmt.Errorf("load selected encounters: %w", err)
		}
		byID := make(map[int64]models.Encounter, len(encounters))
		for _, encounter := range encounters {
			byID[encounter.ID] = encounter
		}
		ordered := make([]models.Encounter, 0, len(req.EncounterIDs))
		for _, id := range req.EncounterIDs {
			encounter, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("encounter %d not found", id)
			}
			if encounter.Bye {
				continue
			}
			ordered = append(ordered, encounter)
		}
		return ordered, nil
	}

	encounters, err := e.db.Queries.ListUnscheduledEncounters(ctx, db.ListUnscheduledEncountersParams{
		DivisionID: req.DivisionID,
		PhaseID:    req.PhaseID,
		Round:      req.Round,
	})
	if err != nil {
		return nil, fmt.Errorf("load unscheduled encounters: %w", err)
	}
	return encounters, nil
}

// Apply commits proposed allocations into the persisted set, replacing any
// existing allocation per encounter. Slots stay pending until Persist.
func (e *Engine) Apply(ctx context.Context, allocations []models.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	err := e.db.RunInTx(ctx, func(txdb *db.DB) error {
		for _, allocation := range allocations {
			if err := txdb.Queries.UpsertAllocation(ctx, db.UpsertAllocationParams{
				EncounterID: allocation.EncounterID,
				CourtID:     allocation.CourtID,
				Start:       allocation.Start,
				End:         allocation.End,
				Pending:     true,
			}); err != nil {
				return fmt.Errorf("apply allocation for encounter %d: %w", allocation.EncounterID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().
		Str("component", "allocation_engine").
		Int("applied", len(allocations)).
		Msg("Applied schedule proposal")
	return nil
}

type PersistFailure struct {
	EncounterID int64  `json:"encounterId"`
	Reason      string `json:"reason"`
}

type PersistResult struct {
	PersistedCount int              `json:"persistedCount"`
	Failures       []PersistFailure `json:"failures,omitempty"`
}

// Persist submits the division's pending allocations as a best-effort batch.
// Each record commits independently; failures are reported per encounter and
// already persisted records are not rolled back. Callers re-submit only the
// failed subset. Other divisions' pending slots are untouched, so callers
// holding one division's lock never commit another division's in-flight work.
func (e *Engine) Persist(ctx context.Context, divisionID int64) (*PersistResult, error) {
	pending, err := e.db.Queries.ListPendingAllocationsByDivision(ctx, divisionID)
	if err != nil {
		return nil, fmt.Errorf("list pending allocations for division %d: %w", divisionID, err)
	}

	result := &PersistResult{}
	for _, allocation := range pending {
		cleared, err := e.db.Queries.SetAllocationPersisted(ctx, allocation.EncounterID)
		if err != nil {
			result.Failures = append(result.Failures, PersistFailure{
				EncounterID: allocation.EncounterID,
				Reason:      err.Error(),
			})
			continue
		}
		if !cleared {
			result.Failures = append(result.Failures, PersistFailure{
				EncounterID: allocation.EncounterID,
				Reason:      "allocation disappeared before persist",
			})
			continue
		}
		result.PersistedCount++
	}

	log.Ctx(ctx).Info().
		Str("component", "allocation_engine").
		Int64("division_id", divisionID).
		Int("persisted", result.PersistedCount).
		Int("failed", len(result.Failures)).
		Msg("Persisted pending allocations")
	return result, nil
}

// Remove deletes the allocation for the given encounter, freeing its slot.
func (e *Engine) Remove(ctx context.Context, encounterID int64) error {
	deleted, err := e.db.Queries.DeleteAllocation(ctx, encounterID)
	if err != nil {
		return fmt.Errorf("remove allocation for encounter %d: %w", encounterID, err)
	}
	if !deleted {
		return ErrAllocationNotFound
	}
	log.Ctx(ctx).Info().
		Str("component", "allocation_engine").
		Int64("encounter_id", encounterID).
		Msg("Removed allocation")
	return nil
}

// Clear drops every allocation for a division, optionally narrowed to one
// phase, and reports how many were removed.
func (e *Engine) Clear(ctx context.Context, divisionID int64, phaseID *int64) (int64, error) {
	cleared, err := e.db.Queries.ClearAllocations(ctx, db.ClearAllocationsParams{
		DivisionID: divisionID,
		PhaseID:    phaseID,
	})
	if err != nil {
		return 0, fmt.Errorf("clear allocations for division %d: %w", divisionID, err)
	}
	log.Ctx(ctx).Info().
		Str("component", "allocation_engine").
		Int64("division_id", divisionID).
		Int64("cleared", cleared).
		Msg("Cleared division schedule")
	return cleared, nil
}
