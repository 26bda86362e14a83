package models

import (
	"testing"
	"time"
)

func TestAllocationOverlaps(t *testing.T) {
	base := time.Date(2026, 6, 13, 9, 0, 0, 0, time.UTC)
	slot := func(courtID int64, startMin, endMin int) Allocation {
		return Allocation{
			CourtID: courtID,
			Start:   base.Add(time.Duration(startMin) * time.Minute),
			End:     base.Add(time.Duration(endMin) * time.Minute),
		}
	}

	tests := []struct {
		name string
		a    Allocation
		b    Allocation
		want bool
	}{
		{"identical intervals", slot(1, 0, 20), slot(1, 0, 20), true},
		{"partial overlap", slot(1, 0, 20), slot(1, 10, 30), true},
		{"contained interval", slot(1, 0, 40), slot(1, 10, 20), true},
		{"back to back does not overlap", slot(1, 0, 20), slot(1, 20, 40), false},
		{"disjoint", slot(1, 0, 20), slot(1, 30, 50), false},
		{"different courts never overlap", slot(1, 0, 20), slot(2, 0, 20), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}
