package models

import (
	"time"

	"github.com/google/uuid"
)

// MetricType is the fixed enumeration of measured quantities.
type MetricType string

const (
	MetricPageViews               MetricType = "page_views"
	MetricConversionRate          MetricType = "conversion_rate"
	MetricRevenue                 MetricType = "revenue"
	MetricActiveUsers             MetricType = "active_users"
	MetricBounceRate              MetricType = "bounce_rate"
	MetricSessionDuration         MetricType = "session_duration"
	MetricClickThroughRate        MetricType = "click_through_rate"
	MetricCustomerAcquisitionCost MetricType = "customer_acquisition_cost"
	MetricLifetimeValue           MetricType = "lifetime_value"
	MetricChurnRate               MetricType = "churn_rate"
)

// AllMetricTypes lists every metric type in declared order. Dashboard
// composition and insight tie-breaking both depend on this order being stable.
var AllMetricTypes = []MetricType{
	MetricPageViews,
	MetricConversionRate,
	MetricRevenue,
	MetricActiveUsers,
	MetricBounceRate,
	MetricSessionDuration,
	MetricClickThroughRate,
	MetricCustomerAcquisitionCost,
	MetricLifetimeValue,
	MetricChurnRate,
}

// Valid reports whether mt is one of the known metric types.
func (mt MetricType) Valid() bool {
	for _, known := range AllMetricTypes {
		if mt == known {
			return true
		}
	}
	return false
}

// MessageType classifies who (or what) produced a chat message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeAI     MessageType = "ai"
	MessageTypeSystem MessageType = "system"
	MessageTypeError  MessageType = "error"
)

// Trend is the three-way classification of a metric's recent change.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// UserPreferences are per-user UI/locale settings. Stored as JSONB.
type UserPreferences struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	Timezone      string `json:"timezone"`
	Language      string `json:"language"`
}

// DefaultPreferences returns the preferences a new account starts with.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Theme:         "light",
		Notifications: true,
		Timezone:      "UTC",
		Language:      "en",
	}
}

// UserStats tracks gameplay counters shown on the leaderboard.
type UserStats struct {
	GamesPlayed  int      `json:"gamesPlayed"`
	GamesWon     int      `json:"gamesWon"`
	Rating       int      `json:"rating"`
	Achievements []string `json:"achievements"`
}

// DefaultStats returns the stats a new account starts with.
func DefaultStats() UserStats {
	return UserStats{Rating: 1000, Achievements: []string{}}
}

// User is the root identity. PasswordHash is excluded from JSON so it can
// never leak through an API projection; the user service additionally strips
// it before returning a user to any caller.
type User struct {
	ID           uuid.UUID       `json:"id"`
	Email        string          `json:"email"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Avatar       string          `json:"avatar,omitempty"`
	Preferences  UserPreferences `json:"preferences"`
	Stats        UserStats       `json:"stats"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// AnalyticsSample is one immutable, time-stamped metric observation.
type AnalyticsSample struct {
	ID         uuid.UUID      `json:"id"`
	MetricType MetricType     `json:"metricType"`
	Value      float64        `json:"value"`
	UserID     uuid.UUID      `json:"userId"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
}

// MetricSnapshot is derived on demand from a sample series, never persisted.
// ChangePercentage is nil when there is no previous sample or the previous
// value is zero.
type MetricSnapshot struct {
	MetricType       MetricType        `json:"metricType"`
	CurrentValue     float64           `json:"currentValue"`
	PreviousValue    *float64          `json:"previousValue,omitempty"`
	ChangePercentage *float64          `json:"changePercentage,omitempty"`
	Trend            Trend             `json:"trend"`
	DataPoints       []AnalyticsSample `json:"dataPoints"`
	Summary          string            `json:"summary"`
}

// DashboardData is the composed per-user analytics payload.
type DashboardData struct {
	UserID      uuid.UUID        `json:"userId"`
	Metrics     []MetricSnapshot `json:"metrics"`
	Insights    []string         `json:"insights"`
	LastUpdated time.Time        `json:"lastUpdated"`
	TimeRange   TimeRange        `json:"timeRange"`
}

// ChatSession is a titled, ordered container of messages between one user
// and the assistant. Sessions are soft-deleted: IsActive flips to false and
// never reverts; messages are retained.
type ChatSession struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
	IsActive     bool      `json:"isActive"`
}

// ChatMessage is immutable after creation and always belongs to exactly one
// session. Conversation order is timestamp order.
type ChatMessage struct {
	ID          uuid.UUID      `json:"id"`
	Message     string         `json:"message"`
	MessageType MessageType    `json:"messageType"`
	UserID      uuid.UUID      `json:"userId"`
	SessionID   uuid.UUID      `json:"sessionId"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// WidgetType enumerates the supported dashboard widget kinds.
type WidgetType string

const (
	WidgetChart  WidgetType = "chart"
	WidgetMetric WidgetType = "metric"
	WidgetTable  WidgetType = "table"
	WidgetText   WidgetType = "text"
)

// WidgetPosition is caller-supplied grid placement, unchecked for overlap.
type WidgetPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Widget is one tile on a user-defined dashboard.
type Widget struct {
	ID       string         `json:"id"`
	Type     WidgetType     `json:"type"`
	Title    string         `json:"title"`
	Config   map[string]any `json:"config"`
	Position WidgetPosition `json:"position"`
}

// Dashboard is a user-defined widget layout, owner-scoped unless public.
type Dashboard struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Widgets     []Widget  `json:"widgets"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
