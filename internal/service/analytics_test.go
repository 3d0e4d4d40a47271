package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/cache"
	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository/memory"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newAnalyticsService(t *testing.T) (*AnalyticsService, *memory.AnalyticsStore) {
	t.Helper()
	repo := memory.NewAnalyticsStore()
	svc := NewAnalyticsService(repo, cache.NewMemory(), time.Minute, nil, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func ingestAt(t *testing.T, svc *AnalyticsService, userID uuid.UUID, mt models.MetricType, value float64, ts time.Time) {
	t.Helper()
	_, err := svc.Ingest(context.Background(), userID, mt, value, &ts, nil, nil)
	require.NoError(t, err)
}

func TestIngestRejectsUnknownMetricType(t *testing.T) {
	svc, _ := newAnalyticsService(t)

	_, err := svc.Ingest(context.Background(), uuid.New(), "pageviews", 1, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestIngestDefaultsTimestamp(t *testing.T) {
	svc, _ := newAnalyticsService(t)

	sample, err := svc.Ingest(context.Background(), uuid.New(), models.MetricRevenue, 42, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, testNow, sample.Timestamp)
}

func TestQueryTimeRangeExcludesOldSamples(t *testing.T) {
	svc, _ := newAnalyticsService(t)
	userID := uuid.New()

	ingestAt(t, svc, userID, models.MetricPageViews, 100, testNow.Add(-2*time.Hour))
	ingestAt(t, svc, userID, models.MetricPageViews, 200, testNow.Add(-30*time.Minute))

	tr := models.RangeHour
	samples, err := svc.Query(context.Background(), userID, nil, &tr, 0)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 200.0, samples[0].Value)
}

func TestMetricDetailsTrend(t *testing.T) {
	tests := []struct {
		name       string
		previous   float64
		current    float64
		wantTrend  models.Trend
		wantChange float64
	}{
		{"sharp rise", 100, 150, models.TrendUp, 50},
		{"sharp drop", 100, 80, models.TrendDown, -20},
		{"small rise is stable", 100, 104, models.TrendStable, 4},
		{"exactly +5% is stable", 100, 105, models.TrendStable, 5},
		{"exactly -5% is stable", 100, 95, models.TrendStable, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAnalyticsService(t)
			userID := uuid.New()

			ingestAt(t, svc, userID, models.MetricPageViews, tt.previous, testNow.Add(-2*time.Minute))
			ingestAt(t, svc, userID, models.MetricPageViews, tt.current, testNow.Add(-time.Minute))

			snapshot, err := svc.MetricDetails(context.Background(), userID, models.MetricPageViews, models.RangeWeek)
			require.NoError(t, err)

			assert.Equal(t, tt.current, snapshot.CurrentValue)
			require.NotNil(t, snapshot.PreviousValue)
			assert.Equal(t, tt.previous, *snapshot.PreviousValue)
			require.NotNil(t, snapshot.ChangePercentage)
			assert.InDelta(t, tt.wantChange, *snapshot.ChangePercentage, 1e-9)
			assert.Equal(t, tt.wantTrend, snapshot.Trend)
		})
	}
}

func TestMetricDetailsNoData(t *testing.T) {
	svc, _ := newAnalyticsService(t)

	snapshot, err := svc.MetricDetails(context.Background(), uuid.New(), models.MetricRevenue, models.RangeWeek)
	require.NoError(t, err)

	assert.Equal(t, 0.0, snapshot.CurrentValue)
	assert.Nil(t, snapshot.PreviousValue)
	assert.Nil(t, snapshot.ChangePercentage)
	assert.Equal(t, models.TrendStable, snapshot.Trend)
	assert.NotNil(t, snapshot.DataPoints)
	assert.Empty(t, snapshot.DataPoints)
	assert.Equal(t, "No data available", snapshot.Summary)
}

func TestMetricDetailsZeroPreviousValue(t *testing.T) {
	svc, _ := newAnalyticsService(t)
	userID := uuid.New()

	ingestAt(t, svc, userID, models.MetricRevenue, 0, testNow.Add(-2*time.Minute))
	ingestAt(t, svc, userID, models.MetricRevenue, 500, testNow.Add(-time.Minute))

	snapshot, err := svc.MetricDetails(context.Background(), userID, models.MetricRevenue, models.RangeWeek)
	require.NoError(t, err)

	// Division by zero is sidestepped: no change percentage, stable trend.
	assert.Nil(t, snapshot.ChangePercentage)
	assert.Equal(t, models.TrendStable, snapshot.Trend)
	assert.Equal(t, "Current REVENUE: 500", snapshot.Summary)
}

func TestMetricDetailsSummaryWording(t *testing.T) {
	svc, _ := newAnalyticsService(t)
	userID := uuid.New()

	ingestAt(t, svc, userID, models.MetricPageViews, 100, testNow.Add(-2*time.Minute))
	ingestAt(t, svc, userID, models.MetricPageViews, 150, testNow.Add(-time.Minute))

	snapshot, err := svc.MetricDetails(context.Background(), userID, models.MetricPageViews, models.RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, "PAGE VIEWS increased by 50.0% to 150", snapshot.Summary)

	ingestAt(t, svc, userID, models.MetricChurnRate, 10, testNow.Add(-2*time.Minute))
	ingestAt(t, svc, userID, models.MetricChurnRate, 8.5, testNow.Add(-time.Minute))

	snapshot, err = svc.MetricDetails(context.Background(), userID, models.MetricChurnRate, models.RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, "CHURN RATE decreased by 15.0% to 8.5", snapshot.Summary)
}

func TestDashboardWithNoData(t *testing.T) {
	svc, _ := newAnalyticsService(t)

	data, err := svc.Dashboard(context.Background(), uuid.New(), models.RangeWeek)
	require.NoError(t, err)

	assert.Empty(t, data.Metrics)
	assert.Equal(t, []string{"Continue monitoring your metrics for insights"}, data.Insights)
	assert.Equal(t, models.RangeWeek, data.TimeRange)
}

func TestDashboardSkipsEmptyMetricsAndKeepsOrder(t *testing.T) {
	svc, _ := newAnalyticsService(t)
	userID := uuid.New()

	// Revenue comes after page_views in the enum; ingest in reverse to prove
	// ordering comes from the enum, not insertion.
	ingestAt(t, svc, userID, models.MetricRevenue, 10, testNow.Add(-time.Minute))
	ingestAt(t, svc, userID, models.MetricPageViews, 20, testNow.Add(-time.Minute))

	data, err := svc.Dashboard(context.Background(), userID, models.RangeWeek)
	require.NoError(t, err)

	require.Len(t, data.Metrics, 2)
	assert.Equal(t, models.MetricPageViews, data.Metrics[0].MetricType)
	assert.Equal(t, models.MetricRevenue, data.Metrics[1].MetricType)
}

func TestDashboardCacheHit(t *testing.T) {
	repo := memory.NewAnalyticsStore()
	svc := NewAnalyticsService(repo, cache.NewMemory(), time.Minute, nil, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	userID := uuid.New()

	ingestAt(t, svc, userID, models.MetricPageViews, 20, testNow.Add(-time.Minute))

	first, err := svc.Dashboard(context.Background(), userID, models.RangeWeek)
	require.NoError(t, err)

	// A write through the repo directly does not invalidate the cache, so the
	// second read must return the cached payload.
	_, err = repo.Insert(context.Background(), models.AnalyticsSample{
		ID:         uuid.New(),
		MetricType: models.MetricRevenue,
		Value:      99,
		UserID:     userID,
		Timestamp:  testNow,
	})
	require.NoError(t, err)

	second, err := svc.Dashboard(context.Background(), userID, models.RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, len(first.Metrics), len(second.Metrics))

	// Ingesting through the service invalidates, so the new metric appears.
	ingestAt(t, svc, userID, models.MetricActiveUsers, 5, testNow.Add(-time.Minute))
	third, err := svc.Dashboard(context.Background(), userID, models.RangeWeek)
	require.NoError(t, err)
	assert.Greater(t, len(third.Metrics), len(first.Metrics))
}

func TestGenerateInsights(t *testing.T) {
	change := func(v float64) *float64 { return &v }

	t.Run("top performer and positive skew", func(t *testing.T) {
		insights := generateInsights([]models.MetricSnapshot{
			{MetricType: models.MetricPageViews, ChangePercentage: change(12)},
			{MetricType: models.MetricRevenue, ChangePercentage: change(3)},
		})
		assert.Contains(t, insights, "page_views is performing exceptionally well with 12.0% growth")
		assert.Contains(t, insights, "Most metrics are showing positive trends")
	})

	t.Run("exactly +10% is not a top performer", func(t *testing.T) {
		insights := generateInsights([]models.MetricSnapshot{
			{MetricType: models.MetricPageViews, ChangePercentage: change(10)},
		})
		assert.NotContains(t, insights, "page_views is performing exceptionally well with 10.0% growth")
	})

	t.Run("first decliner wins", func(t *testing.T) {
		insights := generateInsights([]models.MetricSnapshot{
			{MetricType: models.MetricPageViews, ChangePercentage: change(-15)},
			{MetricType: models.MetricRevenue, ChangePercentage: change(-25)},
		})
		assert.Contains(t, insights, "page_views needs attention with -15.0% decline")
		assert.NotContains(t, insights, "revenue needs attention with -25.0% decline")
	})

	t.Run("negative skew", func(t *testing.T) {
		insights := generateInsights([]models.MetricSnapshot{
			{MetricType: models.MetricPageViews, ChangePercentage: change(-1)},
			{MetricType: models.MetricRevenue, ChangePercentage: change(-2)},
			{MetricType: models.MetricActiveUsers, ChangePercentage: change(-3)},
			{MetricType: models.MetricBounceRate, ChangePercentage: change(1)},
		})
		assert.Contains(t, insights, "Most metrics are declining - review your strategy")
	})

	t.Run("empty input yields default", func(t *testing.T) {
		insights := generateInsights(nil)
		assert.Equal(t, []string{"Continue monitoring your metrics for insights"}, insights)
	})

	t.Run("no change percentages yields default", func(t *testing.T) {
		insights := generateInsights([]models.MetricSnapshot{
			{MetricType: models.MetricPageViews},
			{MetricType: models.MetricRevenue},
		})
		assert.Equal(t, []string{"Continue monitoring your metrics for insights"}, insights)
	})
}
