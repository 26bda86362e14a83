// internal/db/queries_standings.go
package db

import (
	"context"
	"database/sql"

	"github.com/courtline/courtline/internal/models"
)

func (q *Queries) CreateDivision(ctx context.Context, name string, playoffFromPools int64) (models.Division, error) {
	result, err := q.db.ExecContext(ctx,
		"INSERT INTO divisions (name, playoff_from_pools) VALUES (?, ?)",
		name, playoffFromPools)
	if err != nil {
		return models.Division{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Division{}, err
	}
	return q.GetDivision(ctx, id)
}

func (q *Queries) GetDivision(ctx context.Context, id int64) (models.Division, error) {
	var division models.Division
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, playoff_from_pools FROM divisions WHERE id = ?", id).
		Scan(&division.ID, &division.Name, &division.PlayoffFromPools)
	return division, err
}

func (q *Queries) ListDivisions(ctx context.Context) ([]models.Division, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name, playoff_from_pools FROM divisions ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var divisions []models.Division
	for rows.Next() {
		var division models.Division
		if err := rows.Scan(&division.ID, &division.Name, &division.PlayoffFromPools); err != nil {
			return nil, err
		}
		divisions = append(divisions, division)
	}
	return divisions, rows.Err()
}

type CreatePoolParams struct {
	DivisionID int64
	PhaseID    *int64
	Name       string
}

func (q *Queries) CreatePool(ctx context.Context, params CreatePoolParams) (models.Pool, error) {
	result, err := q.db.ExecContext(ctx,
		"INSERT INTO pools (division_id, phase_id, name) VALUES (?, ?, ?)",
		params.DivisionID, nullInt64(params.PhaseID), params.Name)
	if err != nil {
		return models.Pool{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Pool{}, err
	}
	return q.GetPool(ctx, id)
}

func scanPool(row interface{ Scan(...interface{}) error }) (models.Pool, error) {
	var pool models.Pool
	var phaseID sql.NullInt64
	var status string
	if err := row.Scan(&pool.ID, &pool.DivisionID, &phaseID, &pool.Name, &status); err != nil {
		return models.Pool{}, err
	}
	pool.PhaseID = int64Ptr(phaseID)
	pool.Status = models.PoolStatus(status)
	return pool, nil
}

func (q *Queries) GetPool(ctx context.Context, id int64) (models.Pool, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, division_id, phase_id, name, status FROM pools WHERE id = ?", id)
	return scanPool(row)
}

func (q *Queries) ListPoolsByDivision(ctx context.Context, divisionID int64) ([]models.Pool, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, division_id, phase_id, name, status FROM pools WHERE division_id = ? ORDER BY id",
		divisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pools []models.Pool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

func (q *Queries) UpdatePoolStatus(ctx context.Context, poolID int64, status models.PoolStatus) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE pools SET status = ? WHERE id = ?", string(status), poolID)
	return err
}

type CreateUnitParams struct {
	DivisionID int64
	PoolID     *int64
	Name       string
	Seed       int64
}

func (q *Queries) CreateUnit(ctx context.Context, params CreateUnitParams) (models.Unit, error) {
	result, err := q.db.ExecContext(ctx,
		"INSERT INTO units (division_id, pool_id, name, seed) VALUES (?, ?, ?, ?)",
		params.DivisionID, nullInt64(params.PoolID), params.Name, params.Seed)
	if err != nil {
		return models.Unit{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Unit{}, err
	}
	return q.GetUnit(ctx, id)
}

func (q *Queries) GetUnit(ctx context.Context, id int64) (models.Unit, error) {
	var unit models.Unit
	var poolID sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		"SELECT id, division_id, pool_id, name, seed FROM units WHERE id = ?", id).
		Scan(&unit.ID, &unit.DivisionID, &poolID, &unit.Name, &unit.Seed)
	if err != nil {
		return models.Unit{}, err
	}
	unit.PoolID = int64Ptr(poolID)
	return unit, nil
}

func (q *Queries) ListUnitsByPool(ctx context.Context, poolID int64) ([]models.Unit, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, division_id, pool_id, name, seed FROM units WHERE pool_id = ? ORDER BY seed, id",
		poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []models.Unit
	for rows.Next() {
		var unit models.Unit
		var pid sql.NullInt64
		if err := rows.Scan(&unit.ID, &unit.DivisionID, &pid, &unit.Name, &unit.Seed); err != nil {
			return nil, err
		}
		unit.PoolID = int64Ptr(pid)
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (q *Queries) CountUnitsByDivision(ctx context.Context, divisionID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM units WHERE division_id = ?", divisionID).Scan(&count)
	return count, err
}

func (q *Queries) CountUnassignedUnitsByDivision(ctx context.Context, divisionID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM units WHERE division_id = ? AND pool_id IS NULL", divisionID).Scan(&count)
	return count, err
}

const standingColumns = "unit_id, pool_id, rank, matches_won, matches_lost, " +
	"games_won, games_lost, points_for, points_against, advanced_to_playoff"

func scanStanding(row interface{ Scan(...interface{}) error }) (models.Standing, error) {
	var s models.Standing
	var rank sql.NullInt64
	err := row.Scan(&s.UnitID, &s.PoolID, &rank, &s.MatchesWon, &s.MatchesLost,
		&s.GamesWon, &s.GamesLost, &s.PointsFor, &s.PointsAgainst, &s.AdvancedToPlayoff)
	if err != nil {
		return models.Standing{}, err
	}
	s.Rank = int64Ptr(rank)
	return s, nil
}

func (q *Queries) ListStandingsByPool(ctx context.Context, poolID int64) ([]models.Standing, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+standingColumns+" FROM standings WHERE pool_id = ? "+
			"ORDER BY rank IS NULL, rank, unit_id", poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var standings []models.Standing
	for rows.Next() {
		standing, err := scanStanding(rows)
		if err != nil {
			return nil, err
		}
		standings = append(standings, standing)
	}
	return standings, rows.Err()
}

func (q *Queries) GetStandingByUnit(ctx context.Context, unitID int64) (models.Standing, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+standingColumns+" FROM standings WHERE unit_id = ?", unitID)
	return scanStanding(row)
}

type UpsertStandingParams struct {
	UnitID        int64
	PoolID        int64
	Rank          *int64
	MatchesWon    int64
	MatchesLost   int64
	GamesWon      int64
	GamesLost     int64
	PointsFor     int64
	PointsAgainst int64
}

// UpsertStanding rewrites the computed columns and clears any advancement
// flag; recompute always starts from the source encounters.
func (q *Queries) UpsertStanding(ctx context.Context, params UpsertStandingParams) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO standings (pool_id, unit_id, rank, matches_won, matches_lost, "+
			"games_won, games_lost, points_for, points_against, advanced_to_playoff) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0) "+
			"ON CONFLICT (pool_id, unit_id) DO UPDATE SET "+
			"rank = excluded.rank, matches_won = excluded.matches_won, "+
			"matches_lost = excluded.matches_lost, games_won = excluded.games_won, "+
			"games_lost = excluded.games_lost, points_for = excluded.points_for, "+
			"points_against = excluded.points_against, advanced_to_playoff = 0",
		params.PoolID, params.UnitID, nullInt64(params.Rank), params.MatchesWon,
		params.MatchesLost, params.GamesWon, params.GamesLost, params.PointsFor,
		params.PointsAgainst)
	return err
}

func (q *Queries) UpdateStandingRank(ctx context.Context, unitID int64, rank int64) (models.Standing, error) {
	if _, err := q.db.ExecContext(ctx,
		"UPDATE standings SET rank = ? WHERE unit_id = ?", rank, unitID); err != nil {
		return models.Standing{}, err
	}
	return q.GetStandingByUnit(ctx, unitID)
}

// MarkStandingsAdvanced freezes the advancement flag for every standing in
// the pool whose rank is within the cutoff, returning how many advanced.
func (q *Queries) MarkStandingsAdvanced(ctx context.Context, poolID, maxRank int64) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		"UPDATE standings SET advanced_to_playoff = 1 "+
			"WHERE pool_id = ? AND rank IS NOT NULL AND rank <= ?", poolID, maxRank)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) ClearStandingsAdvancement(ctx context.Context, poolID int64) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE standings SET advanced_to_playoff = 0 WHERE pool_id = ?", poolID)
	return err
}
