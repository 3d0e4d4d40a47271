// Package memory holds map-backed implementations of the repository
// interfaces. They keep the same contracts as the Postgres stores (newest-
// first ordering, nil-on-missing lookups, atomic message+counter append) so
// services and the socket gateway can be tested without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]models.User)}
}

func (s *UserStore) Create(_ context.Context, user models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return &user, nil
}

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *UserStore) UpdateProfile(_ context.Context, id uuid.UUID, update repository.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	if update.Username != nil {
		u.Username = *update.Username
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	if update.Preferences != nil {
		u.Preferences = *update.Preferences
	}
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return &u, nil
}

func (s *UserStore) UpdateStats(_ context.Context, id uuid.UUID, update repository.StatsUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	if update.GamesPlayed != nil {
		u.Stats.GamesPlayed = *update.GamesPlayed
	}
	if update.GamesWon != nil {
		u.Stats.GamesWon = *update.GamesWon
	}
	if update.Rating != nil {
		u.Stats.Rating = *update.Rating
	}
	if update.Achievements != nil {
		u.Stats.Achievements = *update.Achievements
	}
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return &u, nil
}

func (s *UserStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	return true, nil
}

func (s *UserStore) Leaderboard(_ context.Context, limit int) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Stats.Rating > users[j].Stats.Rating
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// AnalyticsStore is an in-memory repository.AnalyticsRepository.
type AnalyticsStore struct {
	mu      sync.RWMutex
	samples []models.AnalyticsSample
}

func NewAnalyticsStore() *AnalyticsStore {
	return &AnalyticsStore{}
}

func (s *AnalyticsStore) Insert(_ context.Context, sample models.AnalyticsSample) (*models.AnalyticsSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return &sample, nil
}

func (s *AnalyticsStore) Query(_ context.Context, filter repository.SampleFilter) ([]models.AnalyticsSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]models.AnalyticsSample, 0)
	for _, sample := range s.samples {
		if sample.UserID != filter.UserID {
			continue
		}
		if len(filter.MetricTypes) > 0 && !containsMetric(filter.MetricTypes, sample.MetricType) {
			continue
		}
		if filter.Since != nil && sample.Timestamp.Before(*filter.Since) {
			continue
		}
		matches = append(matches, sample)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func containsMetric(types []models.MetricType, mt models.MetricType) bool {
	for _, t := range types {
		if t == mt {
			return true
		}
	}
	return false
}

// ChatStore is an in-memory repository.ChatRepository.
type ChatStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]models.ChatSession
	messages []models.ChatMessage
}

func NewChatStore() *ChatStore {
	return &ChatStore{sessions: make(map[uuid.UUID]models.ChatSession)}
}

func (s *ChatStore) CreateSession(_ context.Context, session models.ChatSession) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.MessageCount = 0
	session.IsActive = true
	s.sessions[session.ID] = session
	return &session, nil
}

func (s *ChatStore) GetSession(_ context.Context, id uuid.UUID) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return &session, nil
	}
	return nil, nil
}

func (s *ChatStore) AppendMessage(_ context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if session, ok := s.sessions[msg.SessionID]; ok {
		session.MessageCount++
		session.UpdatedAt = time.Now()
		s.sessions[msg.SessionID] = session
	}
	return &msg, nil
}

func (s *ChatStore) ListMessages(_ context.Context, userID uuid.UUID, sessionID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]models.ChatMessage, 0)
	for _, msg := range s.messages {
		if msg.UserID != userID {
			continue
		}
		if sessionID != nil && msg.SessionID != *sessionID {
			continue
		}
		matches = append(matches, msg)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *ChatStore) ListSessions(_ context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]models.ChatSession, 0)
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsActive {
			sessions = append(sessions, session)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *ChatStore) DeactivateSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.IsActive = false
		s.sessions[id] = session
	}
	return nil
}

// DashboardStore is an in-memory repository.DashboardRepository.
type DashboardStore struct {
	mu         sync.RWMutex
	dashboards map[uuid.UUID]models.Dashboard
}

func NewDashboardStore() *DashboardStore {
	return &DashboardStore{dashboards: make(map[uuid.UUID]models.Dashboard)}
}

func (s *DashboardStore) Create(_ context.Context, dashboard models.Dashboard) (*models.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	dashboard.CreatedAt = now
	dashboard.UpdatedAt = now
	if dashboard.Widgets == nil {
		dashboard.Widgets = []models.Widget{}
	}
	s.dashboards[dashboard.ID] = dashboard
	return &dashboard, nil
}

func (s *DashboardStore) GetByID(_ context.Context, id uuid.UUID) (*models.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.dashboards[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (s *DashboardStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(d models.Dashboard) bool { return d.UserID == userID }), nil
}

func (s *DashboardStore) ListPublic(_ context.Context) ([]models.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(d models.Dashboard) bool { return d.IsPublic }), nil
}

func (s *DashboardStore) collect(keep func(models.Dashboard) bool) []models.Dashboard {
	dashboards := make([]models.Dashboard, 0)
	for _, d := range s.dashboards {
		if keep(d) {
			dashboards = append(dashboards, d)
		}
	}
	sort.SliceStable(dashboards, func(i, j int) bool {
		return dashboards[i].CreatedAt.After(dashboards[j].CreatedAt)
	})
	return dashboards
}

func (s *DashboardStore) Update(_ context.Context, id uuid.UUID, update repository.DashboardUpdate) (*models.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dashboards[id]
	if !ok {
		return nil, nil
	}
	if update.Title != nil {
		d.Title = *update.Title
	}
	if update.Description != nil {
		d.Description = *update.Description
	}
	if update.Widgets != nil {
		d.Widgets = *update.Widgets
	}
	if update.IsPublic != nil {
		d.IsPublic = *update.IsPublic
	}
	d.UpdatedAt = time.Now()
	s.dashboards[id] = d
	return &d, nil
}

func (s *DashboardStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dashboards[id]; !ok {
		return false, nil
	}
	delete(s.dashboards, id)
	return true, nil
}
