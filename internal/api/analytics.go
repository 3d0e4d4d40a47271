package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/middleware"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/service"
)

// AnalyticsHandler covers ingestion, raw queries, per-metric snapshots and
// the aggregated dashboard.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *zap.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

type ingestRequest struct {
	MetricType models.MetricType `json:"metricType" binding:"required"`
	Value      float64           `json:"value"`
	Timestamp  *time.Time        `json:"timestamp"`
	Metadata   map[string]any    `json:"metadata"`
	Tags       []string          `json:"tags"`
}

// Ingest stores one sample attributed to the caller.
func (h *AnalyticsHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	sample, err := h.analytics.Ingest(
		c.Request.Context(),
		middleware.GetUserID(c),
		req.MetricType,
		req.Value,
		req.Timestamp,
		req.Metadata,
		req.Tags,
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, sample, "analytics data saved successfully")
}

// Query returns raw samples newest-first. metricTypes is a comma-separated
// list with OR semantics; timeRange bounds the window; limit caps the rows.
func (h *AnalyticsHandler) Query(c *gin.Context) {
	var metricTypes []models.MetricType
	if raw := c.Query("metricTypes"); raw != "" {
		for _, part := range splitCSV(raw) {
			mt := models.MetricType(part)
			if !mt.Valid() {
				respondInvalid(c, h.logger, "unknown metric type "+part)
				return
			}
			metricTypes = append(metricTypes, mt)
		}
	}

	var timeRange *models.TimeRange
	if raw := c.Query("timeRange"); raw != "" {
		tr, err := models.ParseTimeRange(raw)
		if err != nil {
			respondInvalid(c, h.logger, err.Error())
			return
		}
		timeRange = &tr
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	samples, err := h.analytics.Query(c.Request.Context(), middleware.GetUserID(c), metricTypes, timeRange, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, gin.H{
		"data":  samples,
		"count": len(samples),
		"queryParams": gin.H{
			"metricTypes": metricTypes,
			"timeRange":   timeRange,
			"limit":       limit,
		},
	}, "")
}

// MetricDetails returns the derived snapshot for one metric type.
func (h *AnalyticsHandler) MetricDetails(c *gin.Context) {
	metricType := models.MetricType(c.Param("metricType"))
	if !metricType.Valid() {
		respondInvalid(c, h.logger, "unknown metric type "+c.Param("metricType"))
		return
	}

	timeRange, err := models.ParseTimeRange(c.Query("timeRange"))
	if err != nil {
		respondInvalid(c, h.logger, err.Error())
		return
	}

	snapshot, err := h.analytics.MetricDetails(c.Request.Context(), middleware.GetUserID(c), metricType, timeRange)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, snapshot, "")
}

// Dashboard returns the aggregated view for a user. Callers may only read
// their own dashboard.
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondInvalid(c, h.logger, "invalid user id")
		return
	}
	if userID != middleware.GetUserID(c) {
		respondError(c, h.logger, apperr.Forbidden("dashboard belongs to another user"))
		return
	}

	timeRange, err := models.ParseTimeRange(c.Query("timeRange"))
	if err != nil {
		respondInvalid(c, h.logger, err.Error())
		return
	}

	data, err := h.analytics.Dashboard(c.Request.Context(), userID, timeRange)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, data, "")
}

// Health is an unauthenticated liveness probe for the analytics surface.
func (h *AnalyticsHandler) Health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok", "service": "analytics"}, "")
}
