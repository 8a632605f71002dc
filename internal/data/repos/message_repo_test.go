package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

func TestMessageRepoCreateAssignsIDs(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepo(db, testLogger(t))
	sessionID := uuid.New()

	rows := []*domain.Message{
		{SessionID: sessionID, Role: domain.RoleUser, Content: "서울대 경영학과 궁금해요"},
		{SessionID: sessionID, Role: domain.RoleAssistant, Content: "안내해 드릴게요"},
	}
	require.NoError(t, repo.Create(context.Background(), nil, rows))
	for _, r := range rows {
		require.NotEqual(t, uuid.Nil, r.ID)
	}
}

func TestMessageRepoListRecentReturnsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepo(db, testLogger(t))
	sessionID := uuid.New()
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, nil, []*domain.Message{{SessionID: sessionID, Role: domain.RoleUser, Content: "first", CreatedAt: base}}))
	require.NoError(t, repo.Create(ctx, nil, []*domain.Message{{SessionID: sessionID, Role: domain.RoleAssistant, Content: "second", CreatedAt: base.Add(time.Millisecond)}}))
	require.NoError(t, repo.Create(ctx, nil, []*domain.Message{{SessionID: sessionID, Role: domain.RoleUser, Content: "third", CreatedAt: base.Add(2 * time.Millisecond)}}))

	out, err := repo.ListRecent(ctx, nil, sessionID, 10)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "first", out[0].Content)
	require.Equal(t, "third", out[2].Content)
}

func TestMessageRepoListRecentRequiresSessionID(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepo(db, testLogger(t))

	_, err := repo.ListRecent(context.Background(), nil, uuid.Nil, 10)
	require.Error(t, err)
}
