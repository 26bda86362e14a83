package division_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/courtline/courtline/internal/db"
	"github.com/courtline/courtline/internal/division"
	"github.com/courtline/courtline/internal/models"
	"github.com/courtline/courtline/internal/testutil"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	db       *db.DB
	division models.Division
	pool     models.Pool
	court    models.Court
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	div, err := database.Queries.CreateDivision(ctx, "Ladder League", 1)
	if err != nil {
		t.Fatalf("create division: %v", err)
	}
	pool, err := database.Queries.CreatePool(ctx, db.CreatePoolParams{
		DivisionID: div.ID,
		Name:       "Pool A",
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	court, err := database.Queries.CreateCourt(ctx, db.CreateCourtParams{
		Label:    "Court A",
		Position: 1,
	})
	if err != nil {
		t.Fatalf("create court: %v", err)
	}

	return &fixture{
		db:       database,
		division: div,
		pool:     pool,
		court:    court,
		clock:    &fakeClock{now: time.Date(2026, 6, 13, 8, 0, 0, 0, time.UTC)},
	}
}

func (f *fixture) coordinator(t *testing.T) *division.Coordinator {
	t.Helper()
	coordinator, err := division.NewCoordinator(f.db, f.clock)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	return coordinator
}

func (f *fixture) addAllocation(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	encounter, err := f.db.Queries.CreateEncounter(ctx, db.CreateEncounterParams{
		DivisionID: f.division.ID,
		PoolID:     &f.pool.ID,
	})
	if err != nil {
		t.Fatalf("create encounter: %v", err)
	}
	start := time.Date(2026, 6, 13, 9, 0, 0, 0, time.UTC)
	if err := f.db.Queries.UpsertAllocation(ctx, db.UpsertAllocationParams{
		EncounterID: encounter.ID,
		CourtID:     f.court.ID,
		Start:       start,
		End:         start.Add(20 * time.Minute),
		Pending:     true,
	}); err != nil {
		t.Fatalf("upsert allocation: %v", err)
	}
}

func (f *fixture) addUnit(t *testing.T, name string, poolID *int64) {
	t.Helper()
	if _, err := f.db.Queries.CreateUnit(context.Background(), db.CreateUnitParams{
		DivisionID: f.division.ID,
		PoolID:     poolID,
		Name:       name,
		Seed:       1,
	}); err != nil {
		t.Fatalf("create unit: %v", err)
	}
}

func TestCoordinatorStatusProgression(t *testing.T) {
	f := newFixture(t)
	coordinator := f.coordinator(t)
	ctx := context.Background()

	status, err := coordinator.Status(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.ScheduleStatus != division.ScheduleStatusNone {
		t.Errorf("fresh division status = %s, want %s", status.ScheduleStatus, division.ScheduleStatusNone)
	}
	if status.CanFinalize() {
		t.Error("fresh division reports CanFinalize")
	}

	f.addAllocation(t)
	status, err = coordinator.Refresh(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if status.ScheduleStatus != division.ScheduleStatusReady {
		t.Errorf("status after allocation = %s, want %s", status.ScheduleStatus, division.ScheduleStatusReady)
	}

	f.addUnit(t, "Alpha", &f.pool.ID)
	f.addUnit(t, "Bravo", &f.pool.ID)
	status, err = coordinator.Refresh(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if status.ScheduleStatus != division.ScheduleStatusUnitsDrawn {
		t.Errorf("status with drawn units = %s, want %s", status.ScheduleStatus, division.ScheduleStatusUnitsDrawn)
	}
	if !status.CanFinalize() {
		t.Error("division with schedule and drawn units should report CanFinalize")
	}

	if err := f.db.Queries.UpdatePoolStatus(ctx, f.pool.ID, models.PoolStatusFinalized); err != nil {
		t.Fatalf("update pool status: %v", err)
	}
	status, err = coordinator.Refresh(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if status.ScheduleStatus != division.ScheduleStatusPoolsFinalized {
		t.Errorf("status with finalized pools = %s, want %s", status.ScheduleStatus, division.ScheduleStatusPoolsFinalized)
	}
	if status.CanFinalize() {
		t.Error("finalized division still reports CanFinalize")
	}
}

func TestCoordinatorUnassignedUnitsBlockDraw(t *testing.T) {
	f := newFixture(t)
	coordinator := f.coordinator(t)
	ctx := context.Background()

	f.addAllocation(t)
	f.addUnit(t, "Alpha", &f.pool.ID)
	f.addUnit(t, "Bravo", nil) // registered but not drawn into a pool

	status, err := coordinator.Refresh(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if status.UnitsAssigned {
		t.Error("UnitsAssigned = true with an undrawn unit")
	}
	if status.ScheduleStatus != division.ScheduleStatusReady {
		t.Errorf("status = %s, want %s", status.ScheduleStatus, division.ScheduleStatusReady)
	}
}

func TestCoordinatorStatusUsesCache(t *testing.T) {
	f := newFixture(t)
	coordinator := f.coordinator(t)
	ctx := context.Background()

	first, err := coordinator.Status(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !first.RefreshedAt.Equal(f.clock.Now()) {
		t.Errorf("RefreshedAt = %v, want %v", first.RefreshedAt, f.clock.Now())
	}

	// Mutate the database behind the cache; Status keeps serving the snapshot
	// until something refreshes it.
	f.addAllocation(t)
	f.clock.Advance(time.Minute)

	cached, err := coordinator.Status(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if cached.ScheduleStatus != division.ScheduleStatusNone {
		t.Errorf("cached status = %s, want stale %s", cached.ScheduleStatus, division.ScheduleStatusNone)
	}
	if !cached.RefreshedAt.Equal(first.RefreshedAt) {
		t.Errorf("cached RefreshedAt = %v, want unchanged %v", cached.RefreshedAt, first.RefreshedAt)
	}

	refreshed, err := coordinator.Refresh(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.ScheduleStatus != division.ScheduleStatusReady {
		t.Errorf("refreshed status = %s, want %s", refreshed.ScheduleStatus, division.ScheduleStatusReady)
	}
	if !refreshed.RefreshedAt.Equal(f.clock.Now()) {
		t.Errorf("refreshed RefreshedAt = %v, want %v", refreshed.RefreshedAt, f.clock.Now())
	}
}

func TestCoordinatorWithLockRefreshesAfterMutation(t *testing.T) {
	f := newFixture(t)
	coordinator := f.coordinator(t)
	ctx := context.Background()

	err := coordinator.WithLock(ctx, f.division.ID, func(ctx context.Context) error {
		f.addAllocation(t)
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}

	status, err := coordinator.Status(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.ScheduleStatus != division.ScheduleStatusReady {
		t.Errorf("status after locked mutation = %s, want %s", status.ScheduleStatus, division.ScheduleStatusReady)
	}
}

func TestCoordinatorWithLockPropagatesError(t *testing.T) {
	f := newFixture(t)
	coordinator := f.coordinator(t)

	sentinel := errors.New("mutation failed")
	err := coordinator.WithLock(context.Background(), f.division.ID, func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("WithLock() error = %v, want sentinel", err)
	}
}

func TestCoordinatorRefreshAll(t *testing.T) {
	f := newFixture(t)
	coordinator := f.coordinator(t)
	ctx := context.Background()

	other, err := f.db.Queries.CreateDivision(ctx, "Junior Singles", 1)
	if err != nil {
		t.Fatalf("create division: %v", err)
	}
	f.addAllocation(t)

	if err := coordinator.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	status, err := coordinator.Status(ctx, f.division.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.ScheduleStatus != division.ScheduleStatusReady {
		t.Errorf("first division status = %s, want %s", status.ScheduleStatus, division.ScheduleStatusReady)
	}
	otherStatus, err := coordinator.Status(ctx, other.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if otherStatus.ScheduleStatus != division.ScheduleStatusNone {
		t.Errorf("second division status = %s, want %s", otherStatus.ScheduleStatus, division.ScheduleStatusNone)
	}
}
