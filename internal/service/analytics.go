package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/bus"
	"github.com/avik-b/pulseboard/internal/cache"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

const (
	defaultQueryLimit = 100

	// Trend thresholds are strict: exactly ±5% is still stable.
	trendThresholdPct = 5.0

	// Insight thresholds.
	topPerformerPct = 10.0
	declinerPct     = -10.0
	positiveSkew    = 0.7
	negativeSkew    = 0.3
)

// AnalyticsService is the metric store front plus the aggregator. The cache
// is opportunistic: failures are logged and treated as misses, never
// surfaced to callers.
type AnalyticsService struct {
	repo      repository.AnalyticsRepository
	cache     cache.Cache
	cacheTTL  time.Duration
	publisher bus.Publisher
	logger    *zap.Logger

	// now is swappable in tests to pin time-range boundaries.
	now func() time.Time
}

func NewAnalyticsService(
	repo repository.AnalyticsRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	publisher bus.Publisher,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		repo:      repo,
		cache:     c,
		cacheTTL:  cacheTTL,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest appends one immutable sample. The timestamp defaults to now when
// the caller does not supply one. Cached dashboards for the user go stale,
// so they are dropped.
func (s *AnalyticsService) Ingest(
	ctx context.Context,
	userID uuid.UUID,
	metricType models.MetricType,
	value float64,
	timestamp *time.Time,
	metadata map[string]any,
	tags []string,
) (*models.AnalyticsSample, error) {
	if !metricType.Valid() {
		return nil, apperr.Invalid(fmt.Sprintf("unknown metric type %q", metricType))
	}

	ts := s.now()
	if timestamp != nil {
		ts = *timestamp
	}

	sample, err := s.repo.Insert(ctx, models.AnalyticsSample{
		ID:         uuid.New(),
		MetricType: metricType,
		Value:      value,
		UserID:     userID,
		Timestamp:  ts,
		Metadata:   metadata,
		Tags:       tags,
	})
	if err != nil {
		return nil, apperr.Internal("failed to store sample", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(bus.TopicMetricIngested, bus.MetricIngested{
			UserID: userID,
			Sample: *sample,
		}); err != nil {
			s.logger.Warn("failed to publish ingest event", zap.Error(err))
		}
	}
	s.invalidateDashboards(ctx, userID)

	return sample, nil
}

// Query returns samples newest-first, filtered by optional metric-type set
// (OR semantics) and time range, capped at limit (default 100).
func (s *AnalyticsService) Query(
	ctx context.Context,
	userID uuid.UUID,
	metricTypes []models.MetricType,
	timeRange *models.TimeRange,
	limit int,
) ([]models.AnalyticsSample, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	filter := repository.SampleFilter{
		UserID:      userID,
		MetricTypes: metricTypes,
		Limit:       limit,
	}
	if timeRange != nil {
		since := timeRange.Since(s.now())
		filter.Since = &since
	}

	samples, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("failed to query samples", err)
	}
	return samples, nil
}

// MetricDetails derives a snapshot for one metric type: current/previous
// value, percent change, trend and a narrative summary.
func (s *AnalyticsService) MetricDetails(
	ctx context.Context,
	userID uuid.UUID,
	metricType models.MetricType,
	timeRange models.TimeRange,
) (*models.MetricSnapshot, error) {
	since := timeRange.Since(s.now())
	samples, err := s.repo.Query(ctx, repository.SampleFilter{
		UserID:      userID,
		MetricTypes: []models.MetricType{metricType},
		Since:       &since,
	})
	if err != nil {
		return nil, apperr.Internal("failed to query samples", err)
	}

	if len(samples) == 0 {
		return &models.MetricSnapshot{
			MetricType: metricType,
			Trend:      models.TrendStable,
			DataPoints: []models.AnalyticsSample{},
			Summary:    "No data available",
		}, nil
	}

	snapshot := &models.MetricSnapshot{
		MetricType:   metricType,
		CurrentValue: samples[0].Value,
		DataPoints:   samples,
		Trend:        models.TrendStable,
	}
	if len(samples) > 1 {
		previous := samples[1].Value
		snapshot.PreviousValue = &previous
		if previous != 0 {
			change := (snapshot.CurrentValue - previous) / previous * 100
			snapshot.ChangePercentage = &change
		}
	}

	if snapshot.ChangePercentage != nil {
		switch {
		case *snapshot.ChangePercentage > trendThresholdPct:
			snapshot.Trend = models.TrendUp
		case *snapshot.ChangePercentage < -trendThresholdPct:
			snapshot.Trend = models.TrendDown
		}
	}

	snapshot.Summary = metricSummary(metricType, snapshot.CurrentValue, snapshot.ChangePercentage)
	return snapshot, nil
}

// Dashboard composes snapshots across every metric type (declared enum
// order), keeps only those with data, and derives insights. Results are
// cached per user+range for a short TTL.
func (s *AnalyticsService) Dashboard(
	ctx context.Context,
	userID uuid.UUID,
	timeRange models.TimeRange,
) (*models.DashboardData, error) {
	key := dashboardCacheKey(userID, timeRange)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("dashboard cache get failed", zap.Error(err))
		} else if ok {
			var cached models.DashboardData
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
			s.logger.Warn("dropping undecodable dashboard cache entry", zap.String("key", key))
		}
	}

	metrics := make([]models.MetricSnapshot, 0, len(models.AllMetricTypes))
	for _, metricType := range models.AllMetricTypes {
		snapshot, err := s.MetricDetails(ctx, userID, metricType, timeRange)
		if err != nil {
			return nil, err
		}
		if len(snapshot.DataPoints) > 0 {
			metrics = append(metrics, *snapshot)
		}
	}

	data := &models.DashboardData{
		UserID:      userID,
		Metrics:     metrics,
		Insights:    generateInsights(metrics),
		LastUpdated: s.now(),
		TimeRange:   timeRange,
	}

	if s.cache != nil {
		if raw, err := json.Marshal(data); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
				s.logger.Warn("dashboard cache set failed", zap.Error(err))
			}
		}
	}
	return data, nil
}

func (s *AnalyticsService) invalidateDashboards(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	for _, tr := range []models.TimeRange{
		models.RangeHour, models.RangeDay, models.RangeWeek,
		models.RangeMonth, models.RangeQuarter, models.RangeYear,
	} {
		if err := s.cache.Del(ctx, dashboardCacheKey(userID, tr)); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}
}

func dashboardCacheKey(userID uuid.UUID, timeRange models.TimeRange) string {
	return fmt.Sprintf("dashboard:%s:%s", userID, timeRange)
}

// metricSummary builds the narrative sentence for a snapshot.
func metricSummary(metricType models.MetricType, currentValue float64, changePercentage *float64) string {
	name := strings.ToUpper(strings.ReplaceAll(string(metricType), "_", " "))

	if changePercentage == nil {
		return fmt.Sprintf("Current %s: %v", name, formatValue(currentValue))
	}

	direction := "decreased"
	if *changePercentage > 0 {
		direction = "increased"
	}
	return fmt.Sprintf("%s %s by %.1f%% to %v", name, direction, math.Abs(*changePercentage), formatValue(currentValue))
}

// formatValue renders whole-number values without a decimal point, matching
// how clients display them.
func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// generateInsights derives heuristic observations from the snapshots.
// Every rule must tolerate an empty slice: a user with no data gets the
// default message, never a panic.
func generateInsights(metrics []models.MetricSnapshot) []string {
	insights := make([]string, 0, 3)

	if len(metrics) > 0 {
		// Top performer: highest change percentage, first-encountered wins
		// ties (the slice follows metric enum order).
		top := metrics[0]
		for _, m := range metrics[1:] {
			if changeOf(m) > changeOf(top) {
				top = m
			}
		}
		if top.ChangePercentage != nil && *top.ChangePercentage > topPerformerPct {
			insights = append(insights, fmt.Sprintf(
				"%s is performing exceptionally well with %.1f%% growth",
				top.MetricType, *top.ChangePercentage))
		}

		// First decliner in enum order.
		for _, m := range metrics {
			if m.ChangePercentage != nil && *m.ChangePercentage < declinerPct {
				insights = append(insights, fmt.Sprintf(
					"%s needs attention with %.1f%% decline",
					m.MetricType, *m.ChangePercentage))
				break
			}
		}

		// Overall skew among metrics that have a change percentage.
		withChange, positive := 0, 0
		for _, m := range metrics {
			if m.ChangePercentage == nil {
				continue
			}
			withChange++
			if *m.ChangePercentage > 0 {
				positive++
			}
		}
		if withChange > 0 {
			ratio := float64(positive) / float64(withChange)
			if ratio > positiveSkew {
				insights = append(insights, "Most metrics are showing positive trends")
			} else if ratio < negativeSkew {
				insights = append(insights, "Most metrics are declining - review your strategy")
			}
		}
	}

	if len(insights) == 0 {
		insights = append(insights, "Continue monitoring your metrics for insights")
	}
	return insights
}

func changeOf(m models.MetricSnapshot) float64 {
	if m.ChangePercentage == nil {
		return 0
	}
	return *m.ChangePercentage
}
