package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/cache"
	"github.com/avik-b/pulseboard/internal/config"
	"github.com/avik-b/pulseboard/internal/repository/memory"
	"github.com/avik-b/pulseboard/internal/service"
	"github.com/avik-b/pulseboard/internal/ws"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	cfg := &config.Config{
		Port:       "0",
		Env:        "test",
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}

	users := service.NewUserService(memory.NewUserStore(), logger)
	analytics := service.NewAnalyticsService(memory.NewAnalyticsStore(), cache.NewMemory(), time.Minute, nil, logger)
	chat := service.NewChatService(memory.NewChatStore(), nil, logger)
	dashboards := service.NewDashboardService(memory.NewDashboardStore(), logger)

	hub := ws.NewHub(logger)
	gateway := ws.NewGateway(hub, chat, analytics, cfg.JWTSecret, time.Hour, logger)
	t.Cleanup(gateway.Close)

	return Router(cfg, nil, users, analytics, chat, dashboards, gateway, logger)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func registerUser(t *testing.T, r *gin.Engine, email, username string) string {
	t.Helper()
	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    email,
		"username": username,
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Tokens.AccessToken)
	return data.Tokens.AccessToken
}

func TestRegisterLoginProfile(t *testing.T) {
	r := newTestRouter(t)

	registerUser(t, r, "ana@example.com", "ana")

	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ana@example.com",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	rec, env = doJSON(t, r, http.MethodGet, "/api/auth/profile", data.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "ana@example.com", user.Email)

	// The password hash must never appear in any response.
	assert.NotContains(t, string(env.Data), "password")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r := newTestRouter(t)

	registerUser(t, r, "ana@example.com", "ana")

	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "ana@example.com",
		"username": "other",
		"password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "conflict", env.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	r := newTestRouter(t)

	registerUser(t, r, "ana@example.com", "ana")

	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ana@example.com",
		"password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/api/auth/profile", "/api/chat/sessions", "/api/analytics/data"} {
		rec, _ := doJSON(t, r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}

func TestRefreshFlow(t *testing.T) {
	r := newTestRouter(t)

	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "ana@example.com",
		"username": "ana",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	rec, _ = doJSON(t, r, http.MethodPost, "/api/auth/refresh", "", gin.H{
		"refreshToken": data.Tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// An access token is not accepted where a refresh token is expected.
	rec, _ = doJSON(t, r, http.MethodPost, "/api/auth/refresh", "", gin.H{
		"refreshToken": data.Tokens.AccessToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatFlow(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r, "ana@example.com", "ana")

	rec, env := doJSON(t, r, http.MethodPost, "/api/chat/messages", token, gin.H{
		"message": "hello there",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	require.NotEmpty(t, msg.SessionID)

	rec, env = doJSON(t, r, http.MethodGet, "/api/chat/history?sessionId="+msg.SessionID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		Messages []struct {
			Message string `json:"message"`
		} `json:"messages"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Equal(t, 1, history.Count)
	assert.Equal(t, "hello there", history.Messages[0].Message)

	// Deleting someone else's session is forbidden.
	otherToken := registerUser(t, r, "bob@example.com", "bob")
	rec, env = doJSON(t, r, http.MethodPost, "/api/chat/sessions/"+msg.SessionID+"/delete", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Code)

	rec, _ = doJSON(t, r, http.MethodPost, "/api/chat/sessions/"+msg.SessionID+"/delete", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyticsFlow(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r, "ana@example.com", "ana")

	rec, _ := doJSON(t, r, http.MethodPost, "/api/analytics/data", token, gin.H{
		"metricType": "page_views",
		"value":      120,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doJSON(t, r, http.MethodGet, "/api/analytics/data?metricTypes=page_views&timeRange=1d", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Count)

	rec, env = doJSON(t, r, http.MethodPost, "/api/analytics/data", token, gin.H{
		"metricType": "hits",
		"value":      1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid", env.Code)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/analytics/metrics/page_views?timeRange=WEEK", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardOwnerScope(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r, "ana@example.com", "ana")

	rec, env := doJSON(t, r, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))

	rec, _ = doJSON(t, r, http.MethodGet, "/api/analytics/dashboard/"+me.ID+"?timeRange=7d", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user's aggregate is off limits.
	otherToken := registerUser(t, r, "bob@example.com", "bob")
	rec, env = doJSON(t, r, http.MethodGet, "/api/analytics/dashboard/"+me.ID+"?timeRange=7d", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Code)
}

func TestSavedDashboardCRUD(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r, "ana@example.com", "ana")

	rec, env := doJSON(t, r, http.MethodPost, "/api/dashboard", token, gin.H{
		"title":    "Traffic",
		"isPublic": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, _ = doJSON(t, r, http.MethodPatch, "/api/dashboard/"+created.ID, token, gin.H{
		"title": "Traffic 2025",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// A stranger can neither read nor mutate a private dashboard.
	otherToken := registerUser(t, r, "bob@example.com", "bob")
	rec, _ = doJSON(t, r, http.MethodGet, "/api/dashboard/"+created.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = doJSON(t, r, http.MethodDelete, "/api/dashboard/"+created.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Public listing needs no token and excludes the private dashboard.
	rec, env = doJSON(t, r, http.MethodGet, "/api/dashboard/public", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Equal(t, 0, listing.Count)

	rec, _ = doJSON(t, r, http.MethodDelete, "/api/dashboard/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLeaderboardIsPublic(t *testing.T) {
	r := newTestRouter(t)

	anaToken := registerUser(t, r, "ana@example.com", "ana")
	bobToken := registerUser(t, r, "bob@example.com", "bob")

	rec, _ := doJSON(t, r, http.MethodPut, "/api/users/stats", anaToken, gin.H{"rating": 1500})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPut, "/api/users/stats", bobToken, gin.H{"rating": 1200})
	require.Equal(t, http.StatusOK, rec.Code)

	// No token: the leaderboard is readable by anyone.
	rec, env := doJSON(t, r, http.MethodGet, "/api/users/leaderboard?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		Leaderboard []struct {
			Username string `json:"username"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Leaderboard, 2)
	assert.Equal(t, "ana", data.Leaderboard[0].Username)
	assert.Equal(t, "bob", data.Leaderboard[1].Username)
}

func TestUserDeleteSelfOnly(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r, "ana@example.com", "ana")
	otherToken := registerUser(t, r, "bob@example.com", "bob")

	rec, env := doJSON(t, r, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))

	rec, _ = doJSON(t, r, http.MethodDelete, "/api/users/"+me.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doJSON(t, r, http.MethodDelete, "/api/users/"+me.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/health", "/api/analytics/health", "/api/chat/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}
