package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/middleware"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
	"github.com/avik-b/pulseboard/internal/service"
)

// DashboardHandler covers saved widget-layout CRUD.
type DashboardHandler struct {
	dashboards *service.DashboardService
	logger     *zap.Logger
}

func NewDashboardHandler(dashboards *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, logger: logger}
}

type createDashboardRequest struct {
	Title       string          `json:"title" binding:"required,max=120"`
	Description string          `json:"description"`
	Widgets     []models.Widget `json:"widgets"`
	IsPublic    bool            `json:"isPublic"`
}

type updateDashboardRequest struct {
	Title       *string          `json:"title" binding:"omitempty,max=120"`
	Description *string          `json:"description"`
	Widgets     *[]models.Widget `json:"widgets"`
	IsPublic    *bool            `json:"isPublic"`
}

func (h *DashboardHandler) Create(c *gin.Context) {
	var req createDashboardRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	dashboard, err := h.dashboards.Create(c.Request.Context(), middleware.GetUserID(c),
		req.Title, req.Description, req.Widgets, req.IsPublic)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, dashboard, "dashboard created")
}

func (h *DashboardHandler) List(c *gin.Context) {
	dashboards, err := h.dashboards.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"dashboards": dashboards, "count": len(dashboards)}, "")
}

func (h *DashboardHandler) ListPublic(c *gin.Context) {
	dashboards, err := h.dashboards.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"dashboards": dashboards, "count": len(dashboards)}, "")
}

func (h *DashboardHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("dashboardId"))
	if err != nil {
		respondInvalid(c, h.logger, "invalid dashboard id")
		return
	}

	dashboard, err := h.dashboards.Get(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, dashboard, "")
}

func (h *DashboardHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("dashboardId"))
	if err != nil {
		respondInvalid(c, h.logger, "invalid dashboard id")
		return
	}

	var req updateDashboardRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	dashboard, err := h.dashboards.Update(c.Request.Context(), id, middleware.GetUserID(c), repository.DashboardUpdate{
		Title:       req.Title,
		Description: req.Description,
		Widgets:     req.Widgets,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, dashboard, "dashboard updated")
}

func (h *DashboardHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("dashboardId"))
	if err != nil {
		respondInvalid(c, h.logger, "invalid dashboard id")
		return
	}

	if err := h.dashboards.Delete(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, nil, "dashboard deleted")
}
