package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

// DashboardService owns widget-layout CRUD and its ownership rules: reads
// require ownership or the public flag, mutations require ownership.
type DashboardService struct {
	repo   repository.DashboardRepository
	logger *zap.Logger
}

func NewDashboardService(repo repository.DashboardRepository, logger *zap.Logger) *DashboardService {
	return &DashboardService{repo: repo, logger: logger}
}

func (s *DashboardService) Create(ctx context.Context, userID uuid.UUID, title, description string, widgets []models.Widget, isPublic bool) (*models.Dashboard, error) {
	dashboard, err := s.repo.Create(ctx, models.Dashboard{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Widgets:     widgets,
		IsPublic:    isPublic,
	})
	if err != nil {
		return nil, apperr.Internal("failed to create dashboard", err)
	}
	return dashboard, nil
}

func (s *DashboardService) List(ctx context.Context, userID uuid.UUID) ([]models.Dashboard, error) {
	dashboards, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list dashboards", err)
	}
	return dashboards, nil
}

func (s *DashboardService) ListPublic(ctx context.Context) ([]models.Dashboard, error) {
	dashboards, err := s.repo.ListPublic(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list public dashboards", err)
	}
	return dashboards, nil
}

// Get returns a dashboard the caller owns, or any public dashboard.
func (s *DashboardService) Get(ctx context.Context, id, userID uuid.UUID) (*models.Dashboard, error) {
	dashboard, err := s.loadOwned(ctx, id, userID, true)
	if err != nil {
		return nil, err
	}
	return dashboard, nil
}

func (s *DashboardService) Update(ctx context.Context, id, userID uuid.UUID, update repository.DashboardUpdate) (*models.Dashboard, error) {
	if _, err := s.loadOwned(ctx, id, userID, false); err != nil {
		return nil, err
	}
	dashboard, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return nil, apperr.Internal("failed to update dashboard", err)
	}
	if dashboard == nil {
		return nil, apperr.NotFound("dashboard not found")
	}
	return dashboard, nil
}

func (s *DashboardService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, id, userID, false); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperr.Internal("failed to delete dashboard", err)
	}
	if !deleted {
		return apperr.NotFound("dashboard not found")
	}
	return nil
}

func (s *DashboardService) loadOwned(ctx context.Context, id, userID uuid.UUID, allowPublic bool) (*models.Dashboard, error) {
	dashboard, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("failed to get dashboard", err)
	}
	if dashboard == nil {
		return nil, apperr.NotFound("dashboard not found")
	}
	if dashboard.UserID != userID && !(allowPublic && dashboard.IsPublic) {
		return nil, apperr.Forbidden("dashboard belongs to another user")
	}
	return dashboard, nil
}
