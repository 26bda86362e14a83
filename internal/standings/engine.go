package standings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/courtline/courtline/internal/db"
	"github.com/courtline/courtline/internal/models"
)

var (
	ErrPoolNotCalculated = errors.New("pool standings have not been calculated")
	ErrPoolFinalized     = errors.New("pool is finalized; reset before editing")
	ErrStandingNotFound  = errors.New("standing not found")
	ErrInvalidRank       = errors.New("rank must be a positive integer")
)

// Rank sorts the given standings by matches won (desc), game differential
// (desc), point differential (desc), then unit ID (asc) as the deterministic
// final key, and assigns 1-based ranks in place of any previous values.
func Rank(standings []models.Standing) []models.Standing {
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].MatchesWon != standings[j].MatchesWon {
			return standings[i].MatchesWon > standings[j].MatchesWon
		}
		if standings[i].GameDifferential() != standings[j].GameDifferential() {
			return standings[i].GameDifferential() > standings[j].GameDifferential()
		}
		if standings[i].PointDifferential() != standings[j].PointDifferential() {
			return standings[i].PointDifferential() > standings[j].PointDifferential()
		}
		return standings[i].UnitID < standings[j].UnitID
	})
	for i := range standings {
		rank := int64(i + 1)
		standings[i].Rank = &rank
	}
	return standings
}

// Aggregate folds completed encounters into per-unit win/loss, game, and
// point tallies for the pool's units. Byes and unresolved encounters are
// skipped.
func Aggregate(poolID int64, units []models.Unit, encounters []models.Encounter) []models.Standing {
	byUnit := make(map[int64]*models.Standing, len(units))
	ordered := make([]*models.Standing, 0, len(units))
	for _, unit := range units {
		standing := &models.Standing{UnitID: unit.ID, PoolID: poolID}
		byUnit[unit.ID] = standing
		ordered = append(ordered, standing)
	}

	for _, encounter := range encounters {
		if encounter.Bye || encounter.Status != models.EncounterStatusCompleted {
			continue
		}
		if encounter.UnitAID == nil || encounter.UnitBID == nil {
			continue
		}
		unitA, okA := byUnit[*encounter.UnitAID]
		unitB, okB := byUnit[*encounter.UnitBID]
		if !okA || !okB {
			continue
		}

		unitA.GamesWon += encounter.GamesA
		unitA.GamesLost += encounter.GamesB
		unitA.PointsFor += encounter.PointsA
		unitA.PointsAgainst += encounter.PointsB

		unitB.GamesWon += encounter.GamesB
		unitB.GamesLost += encounter.GamesA
		unitB.PointsFor += encounter.PointsB
		unitB.PointsAgainst += encounter.PointsA

		if encounter.WinnerID == nil {
			continue
		}
		if *encounter.WinnerID == unitA.UnitID {
			unitA.MatchesWon++
			unitB.MatchesLost++
		} else if *encounter.WinnerID == unitB.UnitID {
			unitB.MatchesWon++
			unitA.MatchesLost++
		}
	}

	standings := make([]models.Standing, 0, len(ordered))
	for _, standing := range ordered {
		standings = append(standings, *standing)
	}
	return standings
}

type Engine struct {
	db *db.DB
}

func NewEngine(database *db.DB) (*Engine, error) {
	if database == nil {
		return nil, errors.New("standings engine requires a database")
	}
	return &Engine{db: database}, nil
}

type PoolStandings struct {
	Pool      models.Pool       `json:"pool"`
	Standings []models.Standing `json:"standings"`
}

// Calculate recomputes standings for every pool in the division, or a single
// pool when poolID is set. Recompute is a pure function of the completed
// results, so manual overrides do not survive it. Finalized pools are locked
// until reset.
func (e *Engine) Calculate(ctx context.Context, divisionID int64, poolID *int64) ([]PoolStandings, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "standings_engine").
		Int64("division_id", divisionID).
		Logger()

	pools, err := e.resolvePools(ctx, divisionID, poolID)
	if err != nil {
		return nil, err
	}

	results := make([]PoolStandings, 0, len(pools))
	for _, pool := range pools {
		if pool.Status == models.PoolStatusFinalized {
			return nil, fmt.Errorf("pool %d: %w", pool.ID, ErrPoolFinalized)
		}

		units, err := e.db.Queries.ListUnitsByPool(ctx, pool.ID)
		if err != nil {
			return nil, fmt.Errorf("load units for pool %d: %w", pool.ID, err)
		}
		encounters, err := e.db.Queries.ListCompletedEncountersByPool(ctx, pool.ID)
		if err != nil {
			return nil, fmt.Errorf("load results for pool %d: %w", pool.ID, err)
		}

		ranked := Rank(Aggregate(pool.ID, units, encounters))

		err = e.db.RunInTx(ctx, func(txdb *db.DB) error {
			for _, standing := range ranked {
				if err := txdb.Queries.UpsertStanding(ctx, db.UpsertStandingParams{
					UnitID:        standing.UnitID,
					PoolID:        standing.PoolID,
					Rank:          standing.Rank,
					MatchesWon:    standing.MatchesWon,
					MatchesLost:   standing.MatchesLost,
					GamesWon:      standing.GamesWon,
					GamesLost:     standing.GamesLost,
					PointsFor:     standing.PointsFor,
					PointsAgainst: standing.PointsAgainst,
				}); err != nil {
					return fmt.Errorf("store standing for unit %d: %w", standing.UnitID, err)
				}
			}
			return txdb.Queries.UpdatePoolStatus(ctx, pool.ID, models.PoolStatusCalculated)
		})
		if err != nil {
			return nil, err
		}

		pool.Status = models.PoolStatusCalculated
		results = append(results, PoolStandings{Pool: pool, Standings: ranked})
		logger.Info().
			Int64("pool_id", pool.ID).
			Int("units", len(units)).
			Int("completed_encounters", len(encounters)).
			Msg("Calculated pool standings")
	}
	return results, nil
}

func (e *Engine) resolvePools(ctx context.Context, divisionID int64, poolID *int64) ([]models.Pool, error) {
	if poolID != nil {
		pool, err := e.db.Queries.GetPool(ctx, *poolID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("pool %d not found", *poolID)
			}
			return nil, fmt.Errorf("load pool %d: %w", *poolID, err)
		}
		if pool.DivisionID != divisionID {
			return nil, fmt.Errorf("pool %d does not belong to division %d", *poolID, divisionID)
		}
		return []models.Pool{pool}, nil
	}

	pools, err := e.db.Queries.ListPoolsByDivision(ctx, divisionID)
	if err != nil {
		return nil, fmt.Errorf("load pools for division %d: %w", divisionID, err)
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("division %d has no pools", divisionID)
	}
	return pools, nil
}

// OverrideRank lets an organizer pin a unit's rank while the pool is in
// calculated state. The override lasts until the next recompute or finalize.
func (e *Engine) OverrideRank(ctx context.Context, unitID, rank int64) (models.Standing, error) {
	if rank <= 0 {
		return models.Standing{}, ErrInvalidRank
	}

	standing, err := e.db.Queries.GetStandingByUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Standing{}, ErrStandingNotFound
		}
		return models.Standing{}, fmt.Errorf("load standing for unit %d: %w", unitID, err)
	}

	pool, err := e.db.Queries.GetPool(ctx, standing.PoolID)
	if err != nil {
		return models.Standing{}, fmt.Errorf("load pool %d: %w", standing.PoolID, err)
	}
	switch pool.Status {
	case models.PoolStatusFinalized:
		return models.Standing{}, fmt.Errorf("pool %d: %w", pool.ID, ErrPoolFinalized)
	case models.PoolStatusNotCalculated:
		return models.Standing{}, fmt.Errorf("pool %d: %w", pool.ID, ErrPoolNotCalculated)
	}

	updated, err := e.db.Queries.UpdateStandingRank(ctx, unitID, rank)
	if err != nil {
		return models.Standing{}, fmt.Errorf("override rank for unit %d: %w", unitID, err)
	}
	log.Ctx(ctx).Info().
		Str("component", "standings_engine").
		Int64("unit_id", unitID).
		Int64("rank", rank).
		Msg("Overrode standing rank")
	return updated, nil
}

// Finalize freezes advancement for every calculated pool in the division:
// standings with rank within the division's playoff cutoff get their
// advancement flag set, and the pools lock against recompute and overrides.
// Returns the number of units marked advancement-eligible.
func (e *Engine) Finalize(ctx context.Context, divisionID int64) (int64, error) {
	division, err := e.db.Queries.GetDivision(ctx, divisionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("division %d not found", divisionID)
		}
		return 0, fmt.Errorf("load division %d: %w", divisionID, err)
	}

	pools, err := e.resolvePools(ctx, divisionID, nil)
	if err != nil {
		return 0, err
	}
	for _, pool := range pools {
		if pool.Status == models.PoolStatusNotCalculated {
			return 0, fmt.Errorf("pool %d: %w", pool.ID, ErrPoolNotCalculated)
		}
	}

	var advanced int64
	err = e.db.RunInTx(ctx, func(txdb *db.DB) error {
		for _, pool := range pools {
			if pool.Status == models.PoolStatusFinalized {
				continue
			}
			count, err := txdb.Queries.MarkStandingsAdvanced(ctx, pool.ID, division.PlayoffFromPools)
			if err != nil {
				return fmt.Errorf("mark advancement for pool %d: %w", pool.ID, err)
			}
			if err := txdb.Queries.UpdatePoolStatus(ctx, pool.ID, models.PoolStatusFinalized); err != nil {
				return fmt.Errorf("finalize pool %d: %w", pool.ID, err)
			}
			advanced += count
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Ctx(ctx).Info().
		Str("component", "standings_engine").
		Int64("division_id", divisionID).
		Int64("advanced", advanced).
		Msg("Finalized division pools")
	return advanced, nil
}

// Reset returns finalized pools to calculated state and clears every
// advancement flag, leaving the computed tallies untouched. Resetting a pool
// that is not finalized is harmless.
func (e *Engine) Reset(ctx context.Context, divisionID int64) error {
	pools, err := e.db.Queries.ListPoolsByDivision(ctx, divisionID)
	if err != nil {
		return fmt.Errorf("load pools for division %d: %w", divisionID, err)
	}

	err = e.db.RunInTx(ctx, func(txdb *db.DB) error {
		for _, pool := range pools {
			if pool.Status != models.PoolStatusFinalized {
				continue
			}
			if err := txdb.Queries.ClearStandingsAdvancement(ctx, pool.ID); err != nil {
				return fmt.Errorf("clear advancement for pool %d: %w", pool.ID, err)
			}
			if err := txdb.Queries.UpdatePoolStatus(ctx, pool.ID, models.PoolStatusCalculated); err != nil {
				return fmt.Errorf("reset pool %d: %w", pool.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Str("component", "standings_engine").
		Int64("division_id", divisionID).
		Msg("Reset division pools")
	return nil
}
