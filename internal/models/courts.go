// internal/models/courts.go
package models

import "fmt"

type CourtStatus string

const (
	CourtStatusAvailable   CourtStatus = "available"
	CourtStatusInUse       CourtStatus = "in_use"
	CourtStatusMaintenance CourtStatus = "maintenance"
	CourtStatusClosed      CourtStatus = "closed"
)

// Schedulable reports whether a court may receive new allocations.
// Courts under maintenance or closed are excluded from court-set resolution.
func (s CourtStatus) Schedulable() bool {
	return s == CourtStatusAvailable || s == CourtStatusInUse
}

func ParseCourtStatus(value string) (CourtStatus, error) {
	switch CourtStatus(value) {
	case CourtStatusAvailable, CourtStatusInUse, CourtStatusMaintenance, CourtStatusClosed:
		return CourtStatus(value), nil
	}
	return "", fmt.Errorf("unknown court status: %q", value)
}

type Court struct {
	ID       int64       `json:"id"`
	Label    string      `json:"label"`
	GroupID  *int64      `json:"groupId,omitempty"`
	Status   CourtStatus `json:"status"`
	Position int64       `json:"position"`
}

type CourtGroup struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Courts []Court `json:"courts"`
}
