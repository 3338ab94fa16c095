// ABOUTME: Tests for dashboard and plot persistence
// ABOUTME: Covers plot capacity enforcement, moves between dashboards, and partial updates

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

func TestCreateAndGetDashboard(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	d := &Dashboard{ID: "dash-1", Name: "Sales"}
	if err := store.CreateDashboard(ctx, d); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}

	got, err := store.GetDashboard(ctx, "dash-1")
	if err != nil {
		t.Fatalf("GetDashboard failed: %v", err)
	}
	if got.Name != "Sales" {
		t.Errorf("Name mismatch: got %q", got.Name)
	}
}

func TestGetDashboard_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if _, err := store.GetDashboard(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddPlot_CapacityEnforced(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-1", Name: "Full"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}

	for i := 0; i < MaxPlotsPerDashboard; i++ {
		plot := testPlot(fmt.Sprintf("plot-%d", i), "dash-1")
		if err := store.AddPlot(ctx, plot); err != nil {
			t.Fatalf("AddPlot %d failed: %v", i, err)
		}
	}

	// One more must fail with the capacity error and change nothing.
	err := store.AddPlot(ctx, testPlot("plot-overflow", "dash-1"))
	if err != ErrDashboardFull {
		t.Fatalf("expected ErrDashboardFull, got %v", err)
	}

	plots, err := store.ListPlots(ctx, "dash-1")
	if err != nil {
		t.Fatalf("ListPlots failed: %v", err)
	}
	if len(plots) != MaxPlotsPerDashboard {
		t.Errorf("overflow mutated dashboard: got %d plots", len(plots))
	}
	if _, err := store.GetPlot(ctx, "plot-overflow"); err != ErrNotFound {
		t.Errorf("overflow plot was written: %v", err)
	}
}

func TestAddPlot_DashboardNotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.AddPlot(context.Background(), testPlot("plot-1", "missing"))
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddPlot_DefaultLayout(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-1", Name: "Layout"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	if err := store.AddPlot(ctx, testPlot("plot-1", "dash-1")); err != nil {
		t.Fatalf("AddPlot failed: %v", err)
	}

	got, err := store.GetPlot(ctx, "plot-1")
	if err != nil {
		t.Fatalf("GetPlot failed: %v", err)
	}
	if got.Layout.W != DefaultPlotWidth || got.Layout.H != DefaultPlotHeight {
		t.Errorf("default layout not applied: %+v", got.Layout)
	}
}

func TestUpdatePlot_PartialPatch(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-1", Name: "Patch"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	plot := testPlot("plot-1", "dash-1")
	plot.Title = "before"
	plot.AgentType = "data_analysis"
	if err := store.AddPlot(ctx, plot); err != nil {
		t.Fatalf("AddPlot failed: %v", err)
	}

	title := "after"
	updated, err := store.UpdatePlot(ctx, "plot-1", PlotPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdatePlot failed: %v", err)
	}

	if updated.Title != "after" {
		t.Errorf("title not updated: got %q", updated.Title)
	}
	// Unspecified fields are retained
	if string(updated.ChartSpec) != string(plot.ChartSpec) {
		t.Errorf("chart spec changed unexpectedly: %s", updated.ChartSpec)
	}
	if updated.AgentType != "data_analysis" {
		t.Errorf("agent type changed unexpectedly: %q", updated.AgentType)
	}
	if updated.DashboardID != "dash-1" {
		t.Errorf("dashboard changed unexpectedly: %q", updated.DashboardID)
	}
}

func TestUpdatePlot_MoveBetweenDashboards(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-a", Name: "A"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-b", Name: "B"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	if err := store.AddPlot(ctx, testPlot("plot-1", "dash-b")); err != nil {
		t.Fatalf("AddPlot failed: %v", err)
	}

	dest := "dash-a"
	updated, err := store.UpdatePlot(ctx, "plot-1", PlotPatch{DashboardID: &dest})
	if err != nil {
		t.Fatalf("UpdatePlot move failed: %v", err)
	}
	if updated.DashboardID != "dash-a" {
		t.Errorf("plot not moved: %q", updated.DashboardID)
	}

	aPlots, _ := store.ListPlots(ctx, "dash-a")
	bPlots, _ := store.ListPlots(ctx, "dash-b")
	if len(aPlots) != 1 || len(bPlots) != 0 {
		t.Errorf("move left counts a=%d b=%d", len(aPlots), len(bPlots))
	}
}

func TestUpdatePlot_MoveToFullDashboardFails(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-a", Name: "A"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-b", Name: "B"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}

	// Fill destination to capacity
	for i := 0; i < MaxPlotsPerDashboard; i++ {
		if err := store.AddPlot(ctx, testPlot(fmt.Sprintf("a-%d", i), "dash-a")); err != nil {
			t.Fatalf("AddPlot failed: %v", err)
		}
	}
	if err := store.AddPlot(ctx, testPlot("plot-b", "dash-b")); err != nil {
		t.Fatalf("AddPlot failed: %v", err)
	}

	dest := "dash-a"
	_, err := store.UpdatePlot(ctx, "plot-b", PlotPatch{DashboardID: &dest})
	if err != ErrDashboardFull {
		t.Fatalf("expected ErrDashboardFull, got %v", err)
	}

	// The plot must remain in its source dashboard, unchanged.
	got, err := store.GetPlot(ctx, "plot-b")
	if err != nil {
		t.Fatalf("GetPlot failed: %v", err)
	}
	if got.DashboardID != "dash-b" {
		t.Errorf("failed move still changed dashboard: %q", got.DashboardID)
	}
}

func TestListDashboards_CountsAndOrder(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-1", Name: "One"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-2", Name: "Two"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.AddPlot(ctx, testPlot(fmt.Sprintf("p-%d", i), "dash-1")); err != nil {
			t.Fatalf("AddPlot failed: %v", err)
		}
	}

	summaries, err := store.ListDashboards(ctx)
	if err != nil {
		t.Fatalf("ListDashboards failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 dashboards, got %d", len(summaries))
	}

	counts := map[string]int{}
	for _, sm := range summaries {
		counts[sm.ID] = sm.PlotCount
	}
	if counts["dash-1"] != 3 {
		t.Errorf("dash-1 count: got %d, want 3", counts["dash-1"])
	}
	if counts["dash-2"] != 0 {
		t.Errorf("dash-2 count: got %d, want 0", counts["dash-2"])
	}
}

func TestDeleteDashboard_UnpinsPlots(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-1", Name: "Gone"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	if err := store.AddPlot(ctx, testPlot("plot-1", "dash-1")); err != nil {
		t.Fatalf("AddPlot failed: %v", err)
	}

	if err := store.DeleteDashboard(ctx, "dash-1"); err != nil {
		t.Fatalf("DeleteDashboard failed: %v", err)
	}
	if _, err := store.GetDashboard(ctx, "dash-1"); err != ErrNotFound {
		t.Errorf("dashboard still present: %v", err)
	}
	if _, err := store.GetPlot(ctx, "plot-1"); err != ErrNotFound {
		t.Errorf("plot still present after dashboard delete: %v", err)
	}
}

func TestDeletePlot(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateDashboard(ctx, &Dashboard{ID: "dash-1", Name: "D"}); err != nil {
		t.Fatalf("CreateDashboard failed: %v", err)
	}
	if err := store.AddPlot(ctx, testPlot("plot-1", "dash-1")); err != nil {
		t.Fatalf("AddPlot failed: %v", err)
	}

	if err := store.DeletePlot(ctx, "plot-1"); err != nil {
		t.Fatalf("DeletePlot failed: %v", err)
	}
	if err := store.DeletePlot(ctx, "plot-1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func testPlot(id, dashboardID string) *Plot {
	return &Plot{
		ID:          id,
		DashboardID: dashboardID,
		ChartSpec:   json.RawMessage(`{"mark":"bar","data":[1,2,3]}`),
	}
}
