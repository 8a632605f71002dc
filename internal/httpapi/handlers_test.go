package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/ctxutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/session"
)

type fakeSessionStore struct {
	sessions []*domain.Session
	messages map[uuid.UUID][]*domain.Message
	renamed  map[uuid.UUID]string
	deleted  map[uuid.UUID]bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{messages: map[uuid.UUID][]*domain.Message{}, renamed: map[uuid.UUID]string{}, deleted: map[uuid.UUID]bool{}}
}

func (s *fakeSessionStore) CreateSession(_ context.Context, principalID, title string) (*domain.Session, error) {
	sess := &domain.Session{ID: uuid.New(), PrincipalID: principalID, Title: title}
	s.sessions = append(s.sessions, sess)
	return sess, nil
}
func (s *fakeSessionStore) GetSession(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return nil, nil
}
func (s *fakeSessionStore) AppendMessages(context.Context, uuid.UUID, ...session.AppendInput) ([]*domain.Message, error) {
	return nil, nil
}
func (s *fakeSessionStore) ListMessages(_ context.Context, id uuid.UUID, _ int) ([]*domain.Message, error) {
	return s.messages[id], nil
}
func (s *fakeSessionStore) RecentContext(context.Context, uuid.UUID) ([]*domain.Message, error) {
	return nil, nil
}
func (s *fakeSessionStore) TouchSession(context.Context, uuid.UUID) error { return nil }
func (s *fakeSessionStore) ListSessions(_ context.Context, principalID string) ([]*domain.Session, error) {
	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.PrincipalID == principalID {
			out = append(out, sess)
		}
	}
	return out, nil
}
func (s *fakeSessionStore) RenameSession(_ context.Context, id uuid.UUID, title string) (*domain.Session, error) {
	s.renamed[id] = title
	return &domain.Session{ID: id, Title: title}, nil
}
func (s *fakeSessionStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	s.deleted[id] = true
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func newTestHandlers(t *testing.T) (*Handlers, *fakeSessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newFakeSessionStore()
	return NewHandlers(nil, store, testLogger(t)), store
}

func TestPostSessionsCreatesWithBoundPrincipal(t *testing.T) {
	h, store := newTestHandlers(t)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(withTestPrincipal(c.Request.Context(), "user-1"))
		c.Next()
	})
	r.POST("/api/sessions", h.PostSessions)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"title":"2026 입시 상담"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.sessions, 1)
	require.Equal(t, "user-1", store.sessions[0].PrincipalID)
}

func TestGetSessionMessagesRejectsInvalidID(t *testing.T) {
	h, _ := newTestHandlers(t)
	r := gin.New()
	r.GET("/api/sessions/:id/messages", h.GetSessionMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchSessionRenamesAndDeleteSessionDeletes(t *testing.T) {
	h, store := newTestHandlers(t)
	id := uuid.New()
	store.sessions = append(store.sessions, &domain.Session{ID: id, PrincipalID: "user-1"})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(withTestPrincipal(c.Request.Context(), "user-1"))
		c.Next()
	})
	r.PATCH("/api/sessions/:id", h.PatchSession)
	r.DELETE("/api/sessions/:id", h.DeleteSession)

	req := httptest.NewRequest(http.MethodPatch, "/api/sessions/"+id.String(), strings.NewReader(`{"title":"새 제목"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "새 제목", store.renamed[id])

	req = httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id.String(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.True(t, store.deleted[id])
}

func TestPatchSessionRejectsCrossPrincipalAccess(t *testing.T) {
	h, store := newTestHandlers(t)
	id := uuid.New()
	store.sessions = append(store.sessions, &domain.Session{ID: id, PrincipalID: "owner"})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(withTestPrincipal(c.Request.Context(), "intruder"))
		c.Next()
	})
	r.PATCH("/api/sessions/:id", h.PatchSession)

	req := httptest.NewRequest(http.MethodPatch, "/api/sessions/"+id.String(), strings.NewReader(`{"title":"탈취 시도"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, store.renamed[id])
}

func withTestPrincipal(ctx context.Context, id string) context.Context {
	return ctxutil.WithPrincipal(ctx, domain.Principal{Kind: domain.PrincipalUser, ID: id})
}
