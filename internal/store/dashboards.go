// ABOUTME: Dashboard and plot persistence with fixed per-dashboard capacity
// ABOUTME: Capacity checks run inside the same transaction as the write so overflow never mutates

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateDashboard creates a new, empty dashboard
func (s *SQLiteStore) CreateDashboard(ctx context.Context, dashboard *Dashboard) error {
	now := time.Now().UTC()
	if dashboard.CreatedAt.IsZero() {
		dashboard.CreatedAt = now
	}
	if dashboard.UpdatedAt.IsZero() {
		dashboard.UpdatedAt = now
	}

	query := `
		INSERT INTO dashboards (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		dashboard.ID,
		dashboard.Name,
		dashboard.CreatedAt.Format(time.RFC3339),
		dashboard.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting dashboard: %w", err)
	}

	s.logger.Debug("created dashboard", "id", dashboard.ID, "name", dashboard.Name)
	return nil
}

// GetDashboard retrieves a dashboard by ID.
// Returns ErrNotFound if the dashboard doesn't exist.
func (s *SQLiteStore) GetDashboard(ctx context.Context, id string) (*Dashboard, error) {
	query := `SELECT id, name, created_at, updated_at FROM dashboards WHERE id = ?`

	var d Dashboard
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Name, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dashboard: %w", err)
	}

	d.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

// ListDashboards returns all dashboards with live plot counts, most recently
// updated first.
func (s *SQLiteStore) ListDashboards(ctx context.Context) ([]*DashboardSummary, error) {
	query := `
		SELECT d.id, d.name, d.created_at, d.updated_at, COUNT(p.id)
		FROM dashboards d
		LEFT JOIN dashboard_plots p ON p.dashboard_id = d.id
		GROUP BY d.id
		ORDER BY d.updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying dashboards: %w", err)
	}
	defer rows.Close()

	var summaries []*DashboardSummary
	for rows.Next() {
		var sm DashboardSummary
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&sm.ID, &sm.Name, &createdAtStr, &updatedAtStr, &sm.PlotCount); err != nil {
			return nil, fmt.Errorf("scanning dashboard row: %w", err)
		}

		sm.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		sm.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		summaries = append(summaries, &sm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dashboard rows: %w", err)
	}

	return summaries, nil
}

// DeleteDashboard removes a dashboard and unpins all of its plots.
// Returns ErrNotFound if the dashboard doesn't exist.
func (s *SQLiteStore) DeleteDashboard(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboard_plots WHERE dashboard_id = ?`, id); err != nil {
		return fmt.Errorf("deleting dashboard plots: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM dashboards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dashboard: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing dashboard delete: %w", err)
	}

	s.logger.Debug("deleted dashboard", "id", id)
	return nil
}

// AddPlot pins a plot to a dashboard. The capacity check and the insert run
// in one transaction: if the dashboard already holds MaxPlotsPerDashboard
// plots the call fails with ErrDashboardFull and nothing is written.
// A zero-value layout gets the default placement.
func (s *SQLiteStore) AddPlot(ctx context.Context, plot *Plot) error {
	if len(plot.ChartSpec) == 0 {
		return fmt.Errorf("adding plot: chart spec is required")
	}

	now := time.Now().UTC()
	if plot.CreatedAt.IsZero() {
		plot.CreatedAt = now
	}
	if plot.UpdatedAt.IsZero() {
		plot.UpdatedAt = now
	}
	if plot.Layout.W == 0 {
		plot.Layout.W = DefaultPlotWidth
	}
	if plot.Layout.H == 0 {
		plot.Layout.H = DefaultPlotHeight
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM dashboards WHERE id = ?`, plot.DashboardID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("querying dashboard: %w", err)
	}

	count, err := countPlots(ctx, tx, plot.DashboardID)
	if err != nil {
		return err
	}
	if count >= MaxPlotsPerDashboard {
		return ErrDashboardFull
	}

	query := `
		INSERT INTO dashboard_plots (id, dashboard_id, title, chart_spec, chart_option, agent_type, source_thread_id,
			layout_x, layout_y, layout_w, layout_h, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		plot.ID,
		plot.DashboardID,
		plot.Title,
		string(plot.ChartSpec),
		nullJSON(plot.ChartOption),
		nullString(plot.AgentType),
		nullString(plot.SourceThreadID),
		plot.Layout.X,
		plot.Layout.Y,
		plot.Layout.W,
		plot.Layout.H,
		plot.CreatedAt.Format(time.RFC3339),
		plot.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting plot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing plot insert: %w", err)
	}

	s.logger.Debug("added plot", "id", plot.ID, "dashboard_id", plot.DashboardID)
	return nil
}

// GetPlot retrieves a plot by ID.
// Returns ErrNotFound if the plot doesn't exist.
func (s *SQLiteStore) GetPlot(ctx context.Context, id string) (*Plot, error) {
	row := s.db.QueryRowContext(ctx, plotSelect+` WHERE id = ?`, id)
	plot, err := scanPlot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying plot: %w", err)
	}
	return plot, nil
}

// ListPlots returns a dashboard's plots in pin order
func (s *SQLiteStore) ListPlots(ctx context.Context, dashboardID string) ([]*Plot, error) {
	rows, err := s.db.QueryContext(ctx, plotSelect+` WHERE dashboard_id = ? ORDER BY created_at ASC, id ASC`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("querying plots: %w", err)
	}
	defer rows.Close()

	var plots []*Plot
	for rows.Next() {
		plot, err := scanPlot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning plot row: %w", err)
		}
		plots = append(plots, plot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plot rows: %w", err)
	}

	return plots, nil
}

// UpdatePlot applies a partial update to a plot; unspecified fields are
// retained. Moving the plot to another dashboard re-runs the capacity check
// against the destination inside the same transaction, so a move that would
// overflow fails with ErrDashboardFull and the plot stays where it was.
// Returns the updated plot.
func (s *SQLiteStore) UpdatePlot(ctx context.Context, id string, patch PlotPatch) (*Plot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, plotSelect+` WHERE id = ?`, id)
	plot, err := scanPlot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying plot: %w", err)
	}

	if patch.DashboardID != nil && *patch.DashboardID != plot.DashboardID {
		dest := *patch.DashboardID
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM dashboards WHERE id = ?`, dest).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("querying destination dashboard: %w", err)
		}
		count, err := countPlots(ctx, tx, dest)
		if err != nil {
			return nil, err
		}
		if count >= MaxPlotsPerDashboard {
			return nil, ErrDashboardFull
		}
		plot.DashboardID = dest
	}

	if patch.Title != nil {
		plot.Title = *patch.Title
	}
	if len(patch.ChartSpec) > 0 {
		plot.ChartSpec = patch.ChartSpec
	}
	if len(patch.ChartOption) > 0 {
		plot.ChartOption = patch.ChartOption
	}
	if patch.Layout != nil {
		plot.Layout = *patch.Layout
	}
	plot.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE dashboard_plots
		SET dashboard_id = ?, title = ?, chart_spec = ?, chart_option = ?,
			layout_x = ?, layout_y = ?, layout_w = ?, layout_h = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = tx.ExecContext(ctx, query,
		plot.DashboardID,
		plot.Title,
		string(plot.ChartSpec),
		nullJSON(plot.ChartOption),
		plot.Layout.X,
		plot.Layout.Y,
		plot.Layout.W,
		plot.Layout.H,
		plot.UpdatedAt.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating plot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing plot update: %w", err)
	}

	s.logger.Debug("updated plot", "id", id, "dashboard_id", plot.DashboardID)
	return plot, nil
}

// DeletePlot unpins a plot.
// Returns ErrNotFound if the plot doesn't exist.
func (s *SQLiteStore) DeletePlot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_plots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting plot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted plot", "id", id)
	return nil
}

const plotSelect = `
	SELECT id, dashboard_id, title, chart_spec, chart_option, agent_type, source_thread_id,
		layout_x, layout_y, layout_w, layout_h, created_at, updated_at
	FROM dashboard_plots
`

// countPlots counts a dashboard's plots inside the given transaction
func countPlots(ctx context.Context, tx *sql.Tx, dashboardID string) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM dashboard_plots WHERE dashboard_id = ?`, dashboardID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting plots: %w", err)
	}
	return count, nil
}

// scanPlot scans one dashboard_plots row via the given scan func
func scanPlot(scan func(dest ...any) error) (*Plot, error) {
	var plot Plot
	var chartSpec string
	var chartOption, agentType, sourceThreadID *string
	var createdAtStr, updatedAtStr string

	if err := scan(
		&plot.ID,
		&plot.DashboardID,
		&plot.Title,
		&chartSpec,
		&chartOption,
		&agentType,
		&sourceThreadID,
		&plot.Layout.X,
		&plot.Layout.Y,
		&plot.Layout.W,
		&plot.Layout.H,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	plot.ChartSpec = json.RawMessage(chartSpec)
	if chartOption != nil {
		plot.ChartOption = json.RawMessage(*chartOption)
	}
	if agentType != nil {
		plot.AgentType = *agentType
	}
	if sourceThreadID != nil {
		plot.SourceThreadID = *sourceThreadID
	}

	var err error
	plot.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	plot.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &plot, nil
}

// nullJSON returns nil for empty JSON payloads, otherwise the raw text
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
