// internal/models/standings.go
package models

import "fmt"

type PoolStatus string

const (
	PoolStatusNotCalculated PoolStatus = "not_calculated"
	PoolStatusCalculated    PoolStatus = "calculated"
	PoolStatusFinalized     PoolStatus = "finalized"
)

func ParsePoolStatus(value string) (PoolStatus, error) {
	switch PoolStatus(value) {
	case PoolStatusNotCalculated, PoolStatusCalculated, PoolStatusFinalized:
		return PoolStatus(value), nil
	}
	return "", fmt.Errorf("unknown pool status: %q", value)
}

type Pool struct {
	ID         int64      `json:"id"`
	DivisionID int64      `json:"divisionId"`
	PhaseID    *int64     `json:"phaseId,omitempty"`
	Name       string     `json:"name"`
	Status     PoolStatus `json:"status"`
}

type Unit struct {
	ID         int64  `json:"id"`
	DivisionID int64  `json:"divisionId"`
	PoolID     *int64 `json:"poolId,omitempty"`
	Name       string `json:"name"`
	Seed       int64  `json:"seed"`
}

// Standing is a unit's computed ranking record within a pool. Rank is nil
// until a calculate run assigns it; organizers may override it while the pool
// is in calculated state. AdvancedToPlayoff is frozen only at finalize time.
type Standing struct {
	UnitID            int64  `json:"unitId"`
	PoolID            int64  `json:"poolId"`
	Rank              *int64 `json:"rank,omitempty"`
	MatchesWon        int64  `json:"matchesWon"`
	MatchesLost       int64  `json:"matchesLost"`
	GamesWon          int64  `json:"gamesWon"`
	GamesLost         int64  `json:"gamesLost"`
	PointsFor         int64  `json:"pointsFor"`
	PointsAgainst     int64  `json:"pointsAgainst"`
	AdvancedToPlayoff bool   `json:"advancedToPlayoff"`
}

func (s Standing) GameDifferential() int64 {
	return s.GamesWon - s.GamesLost
}

func (s Standing) PointDifferential() int64 {
	return s.PointsFor - s.PointsAgainst
}

type Division struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	PlayoffFromPools int64  `json:"playoffFromPools"`
}
