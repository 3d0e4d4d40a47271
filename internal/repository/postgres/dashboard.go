package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

type DashboardStore struct {
	pool *pgxpool.Pool
}

func NewDashboardStore(pool *pgxpool.Pool) *DashboardStore {
	return &DashboardStore{pool: pool}
}

const dashboardColumns = `id, user_id, title, description, widgets, is_public, created_at, updated_at`

func scanDashboard(row pgx.Row) (*models.Dashboard, error) {
	var (
		d       models.Dashboard
		widgets []byte
	)
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Title,
		&d.Description,
		&widgets,
		&d.IsPublic,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(widgets, &d.Widgets); err != nil {
		return nil, fmt.Errorf("decode widgets: %w", err)
	}
	return &d, nil
}

func (s *DashboardStore) Create(ctx context.Context, dashboard models.Dashboard) (*models.Dashboard, error) {
	if dashboard.Widgets == nil {
		dashboard.Widgets = []models.Widget{}
	}
	widgets, err := json.Marshal(dashboard.Widgets)
	if err != nil {
		return nil, fmt.Errorf("encode widgets: %w", err)
	}

	query := `
		INSERT INTO dashboards (id, user_id, title, description, widgets, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING ` + dashboardColumns

	stored, err := scanDashboard(s.pool.QueryRow(ctx, query,
		dashboard.ID, dashboard.UserID, dashboard.Title, dashboard.Description, widgets, dashboard.IsPublic))
	if err != nil {
		return nil, fmt.Errorf("insert dashboard: %w", err)
	}
	return stored, nil
}

func (s *DashboardStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dashboard, error) {
	query := `SELECT ` + dashboardColumns + ` FROM dashboards WHERE id = $1`

	d, err := scanDashboard(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dashboard: %w", err)
	}
	return d, nil
}

func (s *DashboardStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Dashboard, error) {
	query := `
		SELECT ` + dashboardColumns + `
		FROM dashboards
		WHERE user_id = $1
		ORDER BY created_at DESC`
	return s.list(ctx, query, userID)
}

func (s *DashboardStore) ListPublic(ctx context.Context) ([]models.Dashboard, error) {
	query := `
		SELECT ` + dashboardColumns + `
		FROM dashboards
		WHERE is_public = true
		ORDER BY created_at DESC`
	return s.list(ctx, query)
}

func (s *DashboardStore) list(ctx context.Context, query string, args ...any) ([]models.Dashboard, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	defer rows.Close()

	dashboards := make([]models.Dashboard, 0)
	for rows.Next() {
		d, err := scanDashboard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dashboard: %w", err)
		}
		dashboards = append(dashboards, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dashboards: %w", err)
	}
	return dashboards, nil
}

func (s *DashboardStore) Update(ctx context.Context, id uuid.UUID, update repository.DashboardUpdate) (*models.Dashboard, error) {
	var widgets []byte
	if update.Widgets != nil {
		raw, err := json.Marshal(*update.Widgets)
		if err != nil {
			return nil, fmt.Errorf("encode widgets: %w", err)
		}
		widgets = raw
	}

	query := `
		UPDATE dashboards
		SET title       = COALESCE($2, title),
		    description = COALESCE($3, description),
		    widgets     = COALESCE($4, widgets),
		    is_public   = COALESCE($5, is_public),
		    updated_at  = now()
		WHERE id = $1
		RETURNING ` + dashboardColumns

	d, err := scanDashboard(s.pool.QueryRow(ctx, query, id, update.Title, update.Description, widgets, update.IsPublic))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update dashboard: %w", err)
	}
	return d, nil
}

func (s *DashboardStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dashboards WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete dashboard: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
