// ABOUTME: HTTP handlers for dashboards and pinned chart plots
// ABOUTME: Capacity violations surface as 409 with the max_plots echo

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/scry-gateway/internal/store"
)

// CreateDashboardRequest is the JSON request body for POST /api/dashboards.
type CreateDashboardRequest struct {
	Name string `json:"name"`
}

// DashboardResponse is the JSON shape of one dashboard.
type DashboardResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PlotCount int    `json:"plot_count"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DashboardListResponse is the JSON response for GET /api/dashboards.
type DashboardListResponse struct {
	Dashboards []DashboardResponse `json:"dashboards"`
	MaxPlots   int                 `json:"max_plots"`
}

// DashboardDetailResponse is the JSON response for GET /api/dashboards/{id}.
type DashboardDetailResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Plots     []PlotResponse `json:"plots"`
	MaxPlots  int            `json:"max_plots"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// AddPlotRequest is the JSON request body for POST /api/dashboards/{id}/plots.
type AddPlotRequest struct {
	Title          string            `json:"title"`
	ChartSpec      json.RawMessage   `json:"chart_spec"`
	ChartOption    json.RawMessage   `json:"chart_option,omitempty"`
	AgentType      string            `json:"agent_type,omitempty"`
	SourceThreadID string            `json:"source_thread_id,omitempty"`
	Layout         *store.PlotLayout `json:"layout,omitempty"`
}

// UpdatePlotRequest is the JSON request body for PATCH /api/plots/{id}.
// Absent fields are left unchanged; dashboard_id moves the plot.
type UpdatePlotRequest struct {
	DashboardID *string           `json:"dashboard_id,omitempty"`
	Title       *string           `json:"title,omitempty"`
	ChartSpec   json.RawMessage   `json:"chart_spec,omitempty"`
	ChartOption json.RawMessage   `json:"chart_option,omitempty"`
	Layout      *store.PlotLayout `json:"layout,omitempty"`
}

// PlotResponse is the JSON shape of one pinned plot.
type PlotResponse struct {
	ID             string           `json:"id"`
	DashboardID    string           `json:"dashboard_id"`
	Title          string           `json:"title"`
	ChartSpec      json.RawMessage  `json:"chart_spec"`
	ChartOption    json.RawMessage  `json:"chart_option,omitempty"`
	AgentType      string           `json:"agent_type,omitempty"`
	SourceThreadID string           `json:"source_thread_id,omitempty"`
	Layout         store.PlotLayout `json:"layout"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

// handleCreateDashboard handles POST /api/dashboards.
func (g *Gateway) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	var req CreateDashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		g.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	dashboard := &store.Dashboard{
		ID:   uuid.New().String(),
		Name: req.Name,
	}
	if err := g.store.CreateDashboard(r.Context(), dashboard); err != nil {
		g.logger.Error("failed to create dashboard", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	created, err := g.store.GetDashboard(r.Context(), dashboard.ID)
	if err != nil {
		g.logger.Error("failed to read back dashboard", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusCreated, dashboardResponse(created, 0))
}

// handleListDashboards handles GET /api/dashboards.
func (g *Gateway) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	summaries, err := g.store.ListDashboards(r.Context())
	if err != nil {
		g.logger.Error("failed to list dashboards", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := DashboardListResponse{
		Dashboards: make([]DashboardResponse, len(summaries)),
		MaxPlots:   store.MaxPlotsPerDashboard,
	}
	for i, s := range summaries {
		response.Dashboards[i] = dashboardResponse(&s.Dashboard, s.PlotCount)
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleGetDashboard handles GET /api/dashboards/{id}. Returns the dashboard
// with its plots.
func (g *Gateway) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	dashboard, err := g.store.GetDashboard(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "dashboard not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get dashboard", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	plots, err := g.store.ListPlots(r.Context(), id)
	if err != nil {
		g.logger.Error("failed to list plots", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := DashboardDetailResponse{
		ID:        dashboard.ID,
		Name:      dashboard.Name,
		Plots:     make([]PlotResponse, len(plots)),
		MaxPlots:  store.MaxPlotsPerDashboard,
		CreatedAt: dashboard.CreatedAt.Format(time.RFC3339),
		UpdatedAt: dashboard.UpdatedAt.Format(time.RFC3339),
	}
	for i, p := range plots {
		response.Plots[i] = plotResponse(p)
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleDeleteDashboard handles DELETE /api/dashboards/{id}. Pinned plots are
// deleted with the dashboard.
func (g *Gateway) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	err := g.store.DeleteDashboard(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "dashboard not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to delete dashboard", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddPlot handles POST /api/dashboards/{id}/plots.
func (g *Gateway) handleAddPlot(w http.ResponseWriter, r *http.Request) {
	var req AddPlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.ChartSpec) == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "chart_spec is required")
		return
	}

	plot := &store.Plot{
		ID:             uuid.New().String(),
		DashboardID:    r.PathValue("id"),
		Title:          req.Title,
		ChartSpec:      req.ChartSpec,
		ChartOption:    req.ChartOption,
		AgentType:      req.AgentType,
		SourceThreadID: req.SourceThreadID,
	}
	if req.Layout != nil {
		plot.Layout = *req.Layout
	}

	err := g.store.AddPlot(r.Context(), plot)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "dashboard not found")
		return
	}
	if errors.Is(err, store.ErrDashboardFull) {
		g.sendCapacityError(w)
		return
	}
	if err != nil {
		g.logger.Error("failed to add plot", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	created, err := g.store.GetPlot(r.Context(), plot.ID)
	if err != nil {
		g.logger.Error("failed to read back plot", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusCreated, plotResponse(created))
}

// handleUpdatePlot handles PATCH /api/plots/{id}. Moving a plot checks the
// destination dashboard's capacity first; on failure the plot is unchanged.
func (g *Gateway) handleUpdatePlot(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	patch := store.PlotPatch{
		DashboardID: req.DashboardID,
		Title:       req.Title,
		ChartSpec:   req.ChartSpec,
		ChartOption: req.ChartOption,
		Layout:      req.Layout,
	}

	updated, err := g.store.UpdatePlot(r.Context(), r.PathValue("id"), patch)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "plot not found")
		return
	}
	if errors.Is(err, store.ErrDashboardFull) {
		g.sendCapacityError(w)
		return
	}
	if err != nil {
		g.logger.Error("failed to update plot", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusOK, plotResponse(updated))
}

// handleDeletePlot handles DELETE /api/plots/{id}.
func (g *Gateway) handleDeletePlot(w http.ResponseWriter, r *http.Request) {
	err := g.store.DeletePlot(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "plot not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to delete plot", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendCapacityError writes the 409 response for a full dashboard, echoing the
// plot capacity so clients can render it.
func (g *Gateway) sendCapacityError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	json.NewEncoder(w).Encode(map[string]any{
		"error":     "dashboard is full",
		"max_plots": store.MaxPlotsPerDashboard,
	})
}

func dashboardResponse(d *store.Dashboard, plotCount int) DashboardResponse {
	return DashboardResponse{
		ID:        d.ID,
		Name:      d.Name,
		PlotCount: plotCount,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
}

func plotResponse(p *store.Plot) PlotResponse {
	return PlotResponse{
		ID:             p.ID,
		DashboardID:    p.DashboardID,
		Title:          p.Title,
		ChartSpec:      p.ChartSpec,
		ChartOption:    p.ChartOption,
		AgentType:      p.AgentType,
		SourceThreadID: p.SourceThreadID,
		Layout:         p.Layout,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}
