package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avik-b/pulseboard/internal/apperr"
	"github.com/avik-b/pulseboard/internal/repository"
	"github.com/avik-b/pulseboard/internal/repository/memory"
)

func newDashboardService(t *testing.T) *DashboardService {
	t.Helper()
	return NewDashboardService(memory.NewDashboardStore(), zap.NewNop())
}

func TestDashboardOwnershipRules(t *testing.T) {
	svc := newDashboardService(t)
	owner := uuid.New()
	stranger := uuid.New()

	private, err := svc.Create(context.Background(), owner, "Mine", "", nil, false)
	require.NoError(t, err)
	public, err := svc.Create(context.Background(), owner, "Shared", "", nil, true)
	require.NoError(t, err)

	// Owner reads both; a stranger reads only the public one.
	_, err = svc.Get(context.Background(), private.ID, owner)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), public.ID, stranger)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), private.ID, stranger)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// Public visibility never grants mutation rights.
	title := "hijacked"
	_, err = svc.Update(context.Background(), public.ID, stranger, repository.DashboardUpdate{Title: &title})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	err = svc.Delete(context.Background(), public.ID, stranger)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestDashboardUpdatePartial(t *testing.T) {
	svc := newDashboardService(t)
	owner := uuid.New()

	dashboard, err := svc.Create(context.Background(), owner, "Sales", "Quarterly view", nil, false)
	require.NoError(t, err)

	title := "Sales 2025"
	updated, err := svc.Update(context.Background(), dashboard.ID, owner, repository.DashboardUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Sales 2025", updated.Title)
	assert.Equal(t, "Quarterly view", updated.Description)
	assert.False(t, updated.IsPublic)
}

func TestDashboardNotFound(t *testing.T) {
	svc := newDashboardService(t)

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = svc.Delete(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDashboardListPublic(t *testing.T) {
	svc := newDashboardService(t)

	_, err := svc.Create(context.Background(), uuid.New(), "Private", "", nil, false)
	require.NoError(t, err)
	shared, err := svc.Create(context.Background(), uuid.New(), "Shared", "", nil, true)
	require.NoError(t, err)

	dashboards, err := svc.ListPublic(context.Background())
	require.NoError(t, err)
	require.Len(t, dashboards, 1)
	assert.Equal(t, shared.ID, dashboards[0].ID)
}
