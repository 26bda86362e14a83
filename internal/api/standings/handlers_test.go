package standings_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	standingsapi "github.com/courtline/courtline/internal/api/standings"
	"github.com/courtline/courtline/internal/db"
	"github.com/courtline/courtline/internal/division"
	"github.com/courtline/courtline/internal/models"
	"github.com/courtline/courtline/internal/standings"
)

var testDB *db.DB

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "standings-handlers")
	if err != nil {
		panic(err)
	}

	testDB, err = db.New(filepath.Join(dir, "test.db"))
	if err != nil {
		os.RemoveAll(dir)
		panic(err)
	}

	engine, err := standings.NewEngine(testDB)
	if err != nil {
		panic(err)
	}
	coordinator, err := division.NewCoordinator(testDB, nil)
	if err != nil {
		panic(err)
	}
	standingsapi.InitHandlers(engine, coordinator)

	code := m.Run()
	testDB.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

// seedPool creates a division with one three-unit pool and completed results
// where the first unit beats both others and the second beats the third.
func seedPool(t *testing.T) (divisionID int64, unitIDs []int64) {
	t.Helper()
	ctx := context.Background()

	div, err := testDB.Queries.CreateDivision(ctx, t.Name(), 2)
	if err != nil {
		t.Fatalf("create division: %v", err)
	}
	pool, err := testDB.Queries.CreatePool(ctx, db.CreatePoolParams{
		DivisionID: div.ID,
		Name:       "Pool A",
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	units := make([]models.Unit, 0, 3)
	for i := 0; i < 3; i++ {
		unit, err := testDB.Queries.CreateUnit(ctx, db.CreateUnitParams{
			DivisionID: div.ID,
			PoolID:     &pool.ID,
			Name:       fmt.Sprintf("%s unit %d", t.Name(), i+1),
			Seed:       int64(i + 1),
		})
		if err != nil {
			t.Fatalf("create unit: %v", err)
		}
		units = append(units, unit)
		unitIDs = append(unitIDs, unit.ID)
	}

	for i := 0; i < len(units); i++ {
		for j := i + 1; j < len(units); j++ {
			encounter, err := testDB.Queries.CreateEncounter(ctx, db.CreateEncounterParams{
				DivisionID: div.ID,
				PoolID:     &pool.ID,
				UnitAID:    &units[i].ID,
				UnitBID:    &units[j].ID,
			})
			if err != nil {
				t.Fatalf("create encounter: %v", err)
			}
			if err := testDB.Queries.RecordEncounterResult(ctx, db.RecordEncounterResultParams{
				EncounterID: encounter.ID,
				GamesA:      2,
				GamesB:      1,
				PointsA:     33,
				PointsB:     28,
				WinnerID:    &units[i].ID,
			}); err != nil {
				t.Fatalf("record result: %v", err)
			}
		}
	}
	return div.ID, unitIDs
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleCalculate(t *testing.T) {
	divisionID, unitIDs := seedPool(t)

	rec := postJSON(t, standingsapi.HandleCalculate,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp []struct {
		Pool      models.Pool       `json:"pool"`
		Standings []models.Standing `json:"standings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("got %d pools, want 1", len(resp))
	}
	if resp[0].Pool.Status != models.PoolStatusCalculated {
		t.Errorf("pool status = %s, want calculated", resp[0].Pool.Status)
	}
	if len(resp[0].Standings) != 3 {
		t.Fatalf("got %d standings, want 3", len(resp[0].Standings))
	}
	top := resp[0].Standings[0]
	if top.UnitID != unitIDs[0] || top.Rank == nil || *top.Rank != 1 {
		t.Errorf("top standing = %+v, want unit %d at rank 1", top, unitIDs[0])
	}
}

func TestHandleCalculateValidation(t *testing.T) {
	rec := postJSON(t, standingsapi.HandleCalculate, `{"divisionId": 0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleOverride(t *testing.T) {
	divisionID, unitIDs := seedPool(t)

	// Override before calculate: no standing rows yet.
	rec := postJSON(t, standingsapi.HandleOverride,
		fmt.Sprintf(`{"unitId": %d, "poolRank": 1}`, unitIDs[2]))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body = %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, standingsapi.HandleCalculate,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("calculate status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, standingsapi.HandleOverride,
		fmt.Sprintf(`{"unitId": %d, "poolRank": 0}`, unitIDs[2]))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero rank status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, standingsapi.HandleOverride,
		fmt.Sprintf(`{"unitId": %d, "poolRank": 1}`, unitIDs[2]))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var standing models.Standing
	if err := json.Unmarshal(rec.Body.Bytes(), &standing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if standing.Rank == nil || *standing.Rank != 1 {
		t.Errorf("overridden rank = %v, want 1", standing.Rank)
	}
}

func TestHandleFinalizeAndReset(t *testing.T) {
	divisionID, _ := seedPool(t)

	// Finalize before calculate conflicts with the pool state machine.
	rec := postJSON(t, standingsapi.HandleFinalize,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("premature finalize status = %d, want 409; body = %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, standingsapi.HandleCalculate,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("calculate status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, standingsapi.HandleFinalize,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var finalizeResp struct {
		AdvancedCount int64 `json:"advancedCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &finalizeResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if finalizeResp.AdvancedCount != 2 {
		t.Errorf("advancedCount = %d, want 2", finalizeResp.AdvancedCount)
	}

	// Recalculate is locked while finalized.
	rec = postJSON(t, standingsapi.HandleCalculate,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusConflict {
		t.Errorf("calculate on finalized status = %d, want 409", rec.Code)
	}

	rec = postJSON(t, standingsapi.HandleReset,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// The lifecycle reopens after reset.
	rec = postJSON(t, standingsapi.HandleCalculate,
		fmt.Sprintf(`{"divisionId": %d}`, divisionID))
	if rec.Code != http.StatusOK {
		t.Errorf("calculate after reset status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
