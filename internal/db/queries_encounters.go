// internal/db/queries_encounters.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/courtline/courtline/internal/models"
)

const encounterColumns = "id, division_id, phase_id, round, pool_id, unit_a_id, unit_b_id, " +
	"bye, games_a, games_b, points_a, points_b, winner_id, status"

func scanEncounter(row interface{ Scan(...interface{}) error }) (models.Encounter, error) {
	var e models.Encounter
	var phaseID, round, poolID, unitA, unitB, winner sql.NullInt64
	var status string
	err := row.Scan(&e.ID, &e.DivisionID, &phaseID, &round, &poolID, &unitA, &unitB,
		&e.Bye, &e.GamesA, &e.GamesB, &e.PointsA, &e.PointsB, &winner, &status)
	if err != nil {
		return models.Encounter{}, err
	}
	e.PhaseID = int64Ptr(phaseID)
	e.Round = int64Ptr(round)
	e.PoolID = int64Ptr(poolID)
	e.UnitAID = int64Ptr(unitA)
	e.UnitBID = int64Ptr(unitB)
	e.WinnerID = int64Ptr(winner)
	e.Status = models.EncounterStatus(status)
	return e, nil
}

func (q *Queries) collectEncounters(rows *sql.Rows) ([]models.Encounter, error) {
	defer rows.Close()
	var encounters []models.Encounter
	for rows.Next() {
		encounter, err := scanEncounter(rows)
		if err != nil {
			return nil, err
		}
		encounters = append(encounters, encounter)
	}
	return encounters, rows.Err()
}

func (q *Queries) GetEncounter(ctx context.Context, id int64) (models.Encounter, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+encounterColumns+" FROM encounters WHERE id = ?", id)
	return scanEncounter(row)
}

func (q *Queries) ListEncountersByIDs(ctx context.Context, ids []int64) ([]models.Encounter, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM encounters WHERE id IN (%s)",
		encounterColumns, placeholders(len(ids)))
	rows, err := q.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	return q.collectEncounters(rows)
}

type ListUnscheduledEncountersParams struct {
	DivisionID int64
	PhaseID    *int64
	Round      *int64
}

// ListUnscheduledEncounters returns encounters with no allocation row, in
// round then id order. Byes never need a court.
func (q *Queries) ListUnscheduledEncounters(ctx context.Context, params ListUnscheduledEncountersParams) ([]models.Encounter, error) {
	query := "SELECT " + encounterColumns + " FROM encounters " +
		"WHERE division_id = ? AND bye = 0 " +
		"AND id NOT IN (SELECT encounter_id FROM allocations)"
	args := []interface{}{params.DivisionID}
	if params.PhaseID != nil {
		query += " AND phase_id = ?"
		args = append(args, *params.PhaseID)
	}
	if params.Round != nil {
		query += " AND round = ?"
		args = append(args, *params.Round)
	}
	query += " ORDER BY round, id"
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return q.collectEncounters(rows)
}

func (q *Queries) ListCompletedEncountersByPool(ctx context.Context, poolID int64) ([]models.Encounter, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+encounterColumns+" FROM encounters WHERE pool_id = ? AND status = 'completed' ORDER BY id",
		poolID)
	if err != nil {
		return nil, err
	}
	return q.collectEncounters(rows)
}

type CreateEncounterParams struct {
	DivisionID int64
	PhaseID    *int64
	Round      *int64
	PoolID     *int64
	UnitAID    *int64
	UnitBID    *int64
	Bye        bool
}

func (q *Queries) CreateEncounter(ctx context.Context, params CreateEncounterParams) (models.Encounter, error) {
	result, err := q.db.ExecContext(ctx,
		"INSERT INTO encounters (division_id, phase_id, round, pool_id, unit_a_id, unit_b_id, bye) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		params.DivisionID, nullInt64(params.PhaseID), nullInt64(params.Round),
		nullInt64(params.PoolID), nullInt64(params.UnitAID), nullInt64(params.UnitBID), params.Bye)
	if err != nil {
		return models.Encounter{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Encounter{}, err
	}
	return q.GetEncounter(ctx, id)
}

type RecordEncounterResultParams struct {
	EncounterID int64
	GamesA      int64
	GamesB      int64
	PointsA     int64
	PointsB     int64
	WinnerID    *int64
}

func (q *Queries) RecordEncounterResult(ctx context.Context, params RecordEncounterResultParams) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE encounters SET games_a = ?, games_b = ?, points_a = ?, points_b = ?, "+
			"winner_id = ?, status = 'completed' WHERE id = ?",
		params.GamesA, params.GamesB, params.PointsA, params.PointsB,
		nullInt64(params.WinnerID), params.EncounterID)
	return err
}

const allocationColumns = "encounter_id, court_id, start_time, end_time, pending"

func scanAllocation(row interface{ Scan(...interface{}) error }) (models.Allocation, error) {
	var a models.Allocation
	if err := row.Scan(&a.EncounterID, &a.CourtID, &a.Start, &a.End, &a.Pending); err != nil {
		return models.Allocation{}, err
	}
	return a, nil
}

func (q *Queries) collectAllocations(rows *sql.Rows) ([]models.Allocation, error) {
	defer rows.Close()
	var allocations []models.Allocation
	for rows.Next() {
		allocation, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, allocation)
	}
	return allocations, rows.Err()
}

func (q *Queries) GetAllocation(ctx context.Context, encounterID int64) (models.Allocation, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+allocationColumns+" FROM allocations WHERE encounter_id = ?", encounterID)
	return scanAllocation(row)
}

func (q *Queries) ListAllocationsByCourts(ctx context.Context, courtIDs []int64) ([]models.Allocation, error) {
	if len(courtIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"SELECT %s FROM allocations WHERE court_id IN (%s) ORDER BY court_id, start_time",
		allocationColumns, placeholders(len(courtIDs)))
	rows, err := q.db.QueryContext(ctx, query, int64Args(courtIDs)...)
	if err != nil {
		return nil, err
	}
	return q.collectAllocations(rows)
}

type ListAllocationsByDivisionParams struct {
	DivisionID int64
	PhaseID    *int64
}

func (q *Queries) ListAllocationsByDivision(ctx context.Context, params ListAllocationsByDivisionParams) ([]models.Allocation, error) {
	query := "SELECT a.encounter_id, a.court_id, a.start_time, a.end_time, a.pending " +
		"FROM allocations a JOIN encounters e ON e.id = a.encounter_id " +
		"WHERE e.division_id = ?"
	args := []interface{}{params.DivisionID}
	if params.PhaseID != nil {
		query += " AND e.phase_id = ?"
		args = append(args, *params.PhaseID)
	}
	query += " ORDER BY a.start_time, a.court_id"
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return q.collectAllocations(rows)
}

func (q *Queries) ListPendingAllocationsByDivision(ctx context.Context, divisionID int64) ([]models.Allocation, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT a.encounter_id, a.court_id, a.start_time, a.end_time, a.pending "+
			"FROM allocations a JOIN encounters e ON e.id = a.encounter_id "+
			"WHERE a.pending = 1 AND e.division_id = ? "+
			"ORDER BY a.start_time, a.court_id",
		divisionID)
	if err != nil {
		return nil, err
	}
	return q.collectAllocations(rows)
}

type UpsertAllocationParams struct {
	EncounterID int64
	CourtID     int64
	Start       time.Time
	End         time.Time
	Pending     bool
}

// UpsertAllocation replaces any existing allocation for the encounter, so
// re-applying a proposal swaps the slot instead of duplicating it.
func (q *Queries) UpsertAllocation(ctx context.Context, params UpsertAllocationParams) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO allocations (encounter_id, court_id, start_time, end_time, pending) "+
			"VALUES (?, ?, ?, ?, ?) "+
			"ON CONFLICT (encounter_id) DO UPDATE SET "+
			"court_id = excluded.court_id, start_time = excluded.start_time, "+
			"end_time = excluded.end_time, pending = excluded.pending",
		params.EncounterID, params.CourtID, params.Start, params.End, params.Pending)
	return err
}

func (q *Queries) SetAllocationPersisted(ctx context.Context, encounterID int64) (bool, error) {
	result, err := q.db.ExecContext(ctx,
		"UPDATE allocations SET pending = 0 WHERE encounter_id = ?", encounterID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (q *Queries) DeleteAllocation(ctx context.Context, encounterID int64) (bool, error) {
	result, err := q.db.ExecContext(ctx,
		"DELETE FROM allocations WHERE encounter_id = ?", encounterID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type ClearAllocationsParams struct {
	DivisionID int64
	PhaseID    *int64
}

func (q *Queries) ClearAllocations(ctx context.Context, params ClearAllocationsParams) (int64, error) {
	query := "DELETE FROM allocations WHERE encounter_id IN " +
		"(SELECT id FROM encounters WHERE division_id = ?"
	args := []interface{}{params.DivisionID}
	if params.PhaseID != nil {
		query += " AND phase_id = ?"
		args = append(args, *params.PhaseID)
	}
	query += ")"
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) CountAllocationsByDivision(ctx context.Context, divisionID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM allocations a JOIN encounters e ON e.id = a.encounter_id "+
			"WHERE e.division_id = ?", divisionID).Scan(&count)
	return count, err
}
