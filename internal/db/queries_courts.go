// internal/db/queries_courts.go
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/courtline/courtline/internal/models"
)

const courtColumns = "id, label, group_id, status, position"

func scanCourt(row interface{ Scan(...interface{}) error }) (models.Court, error) {
	var court models.Court
	var groupID sql.NullInt64
	var status string
	if err := row.Scan(&court.ID, &court.Label, &groupID, &status, &court.Position); err != nil {
		return models.Court{}, err
	}
	court.GroupID = int64Ptr(groupID)
	court.Status = models.CourtStatus(status)
	return court, nil
}

func (q *Queries) collectCourts(rows *sql.Rows) ([]models.Court, error) {
	defer rows.Close()
	var courts []models.Court
	for rows.Next() {
		court, err := scanCourt(rows)
		if err != nil {
			return nil, err
		}
		courts = append(courts, court)
	}
	return courts, rows.Err()
}

func (q *Queries) ListCourts(ctx context.Context) ([]models.Court, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+courtColumns+" FROM courts ORDER BY position, id")
	if err != nil {
		return nil, err
	}
	return q.collectCourts(rows)
}

func (q *Queries) ListCourtsByIDs(ctx context.Context, ids []int64) ([]models.Court, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"SELECT %s FROM courts WHERE id IN (%s) ORDER BY position, id",
		courtColumns, placeholders(len(ids)))
	rows, err := q.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	return q.collectCourts(rows)
}

func (q *Queries) ListCourtsByGroup(ctx context.Context, groupID int64) ([]models.Court, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+courtColumns+" FROM courts WHERE group_id = ? ORDER BY position, id",
		groupID)
	if err != nil {
		return nil, err
	}
	return q.collectCourts(rows)
}

func (q *Queries) GetCourt(ctx context.Context, id int64) (models.Court, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+courtColumns+" FROM courts WHERE id = ?", id)
	return scanCourt(row)
}

type CreateCourtParams struct {
	Label    string
	GroupID  *int64
	Status   models.CourtStatus
	Position int64
}

func (q *Queries) CreateCourt(ctx context.Context, params CreateCourtParams) (models.Court, error) {
	status := params.Status
	if status == "" {
		status = models.CourtStatusAvailable
	}
	result, err := q.db.ExecContext(ctx,
		"INSERT INTO courts (label, group_id, status, position) VALUES (?, ?, ?, ?)",
		params.Label, nullInt64(params.GroupID), string(status), params.Position)
	if err != nil {
		return models.Court{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Court{}, err
	}
	return q.GetCourt(ctx, id)
}

type UpdateCourtStatusParams struct {
	ID     int64
	Status models.CourtStatus
}

func (q *Queries) UpdateCourtStatus(ctx context.Context, params UpdateCourtStatusParams) (models.Court, error) {
	if _, err := q.db.ExecContext(ctx,
		"UPDATE courts SET status = ? WHERE id = ?",
		string(params.Status), params.ID); err != nil {
		return models.Court{}, err
	}
	return q.GetCourt(ctx, params.ID)
}

func (q *Queries) CreateCourtGroup(ctx context.Context, name string, position int64) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		"INSERT INTO court_groups (name, position) VALUES (?, ?)", name, position)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (q *Queries) ListCourtGroups(ctx context.Context) ([]models.CourtGroup, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name FROM court_groups ORDER BY position, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.CourtGroup
	for rows.Next() {
		var group models.CourtGroup
		if err := rows.Scan(&group.ID, &group.Name); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		courts, err := q.ListCourtsByGroup(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Courts = courts
	}
	return groups, nil
}
