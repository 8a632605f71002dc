package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestSessionRepoCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db, testLogger(t))
	ctx := context.Background()

	sess := &domain.Session{PrincipalID: "user-1", Title: "첫 상담"}
	require.NoError(t, repo.Create(ctx, nil, sess))
	require.NotEqual(t, uuid.Nil, sess.ID)

	got, err := repo.GetByID(ctx, nil, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "첫 상담", got.Title)
}

func TestSessionRepoGetByIDMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db, testLogger(t))

	got, err := repo.GetByID(context.Background(), nil, uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionRepoListByPrincipalOrdersByUpdatedAtDesc(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db, testLogger(t))
	ctx := context.Background()

	s1 := &domain.Session{PrincipalID: "user-1", Title: "older"}
	require.NoError(t, repo.Create(ctx, nil, s1))
	s2 := &domain.Session{PrincipalID: "user-1", Title: "newer"}
	require.NoError(t, repo.Create(ctx, nil, s2))
	require.NoError(t, repo.Touch(ctx, nil, s2.ID))

	out, err := repo.ListByPrincipal(ctx, nil, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, s2.ID, out[0].ID)
}

func TestSessionRepoListByPrincipalRequiresID(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepo(db, testLogger(t))

	_, err := repo.ListByPrincipal(context.Background(), nil, "", 10)
	require.Error(t, err)
}
