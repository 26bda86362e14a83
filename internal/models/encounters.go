// internal/models/encounters.go
package models

import "time"

type EncounterStatus string

const (
	EncounterStatusNew        EncounterStatus = "new"
	EncounterStatusInProgress EncounterStatus = "in_progress"
	EncounterStatusCompleted  EncounterStatus = "completed"
)

// Encounter is a match between two participant units within a phase/round.
// Unit references stay nil until a draw or an advancement resolves them.
type Encounter struct {
	ID         int64           `json:"id"`
	DivisionID int64           `json:"divisionId"`
	PhaseID    *int64          `json:"phaseId,omitempty"`
	Round      *int64          `json:"round,omitempty"`
	PoolID     *int64          `json:"poolId,omitempty"`
	UnitAID    *int64          `json:"unitAId,omitempty"`
	UnitBID    *int64          `json:"unitBId,omitempty"`
	Bye        bool            `json:"bye"`
	GamesA     int64           `json:"gamesA"`
	GamesB     int64           `json:"gamesB"`
	PointsA    int64           `json:"pointsA"`
	PointsB    int64           `json:"pointsB"`
	WinnerID   *int64          `json:"winnerId,omitempty"`
	Status     EncounterStatus `json:"status"`
}

// Allocation binds an encounter to a court and a start instant. At most one
// allocation exists per encounter. End covers the full duration+rest interval;
// the court is considered occupied for the whole of [Start, End).
type Allocation struct {
	EncounterID int64     `json:"encounterId"`
	CourtID     int64     `json:"courtId"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Pending     bool      `json:"pending"`
}

// Overlaps reports half-open interval overlap with another allocation on the
// same court.
func (a Allocation) Overlaps(other Allocation) bool {
	if a.CourtID != other.CourtID {
		return false
	}
	return other.Start.Before(a.End) && other.End.After(a.Start)
}
