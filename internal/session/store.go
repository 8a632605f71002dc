// Package session implements C9, the Session & History Store: session and
// message persistence plus a bounded in-memory conversation context cache
// (spec §4.7).
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/data/repos"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

const (
	// contextTurns is N in "recent_context(session_id, n=20)" (spec §4.7).
	contextTurns = 20
	titleMaxRunes = 60
)

type AppendInput struct {
	Role       domain.Role
	Content    string
	Sources    []string
	SourceURLs []string
}

// Store is the operation set the orchestrator and HTTP surface use to drive
// session lifecycle and history (spec §4.7 "Operations").
type Store interface {
	CreateSession(ctx context.Context, principalID, title string) (*domain.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	// AppendMessages writes one user/assistant pair (or a single message)
	// under the session's row lock so created_at stays strictly increasing
	// (spec §4.7 "Ordering").
	AppendMessages(ctx context.Context, sessionID uuid.UUID, msgs ...AppendInput) ([]*domain.Message, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Message, error)
	// RecentContext returns the cached bounded window when warm, otherwise
	// loads it from Postgres and populates the cache (spec §4.7 "Context
	// bound").
	RecentContext(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID) error
	ListSessions(ctx context.Context, principalID string) ([]*domain.Session, error)
	RenameSession(ctx context.Context, id uuid.UUID, title string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

type store struct {
	db       *gorm.DB
	sessions repos.SessionRepo
	messages repos.MessageRepo
	log      *logger.Logger
	cache    *contextCache
}

func NewStore(db *gorm.DB, sessions repos.SessionRepo, messages repos.MessageRepo, log *logger.Logger) Store {
	return &store{
		db:       db,
		sessions: sessions,
		messages: messages,
		log:      log.With("service", "SessionStore"),
		cache:    newContextCache(),
	}
}

func (s *store) CreateSession(ctx context.Context, principalID, title string) (*domain.Session, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, fmt.Errorf("session: missing principal id")
	}
	sess := &domain.Session{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Title:       deriveTitle(title),
	}
	if err := s.sessions.Create(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

func (s *store) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	sess, err := s.sessions.GetByID(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	return sess, nil
}

// AppendMessages takes the session's row lock inside a transaction so
// concurrent turns on the same session serialize (spec §4.7 "single-writer
// per session"), then updates the in-memory window under the per-session
// lock.
func (s *store) AppendMessages(ctx context.Context, sessionID uuid.UUID, msgs ...AppendInput) ([]*domain.Message, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("session: missing session id")
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	var created []*domain.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.sessions.LockByID(ctx, tx, sessionID); err != nil {
			return err
		}
		now := time.Now().UTC()
		rows := make([]*domain.Message, 0, len(msgs))
		for i, m := range msgs {
			rows = append(rows, &domain.Message{
				ID:         uuid.New(),
				SessionID:  sessionID,
				Role:       m.Role,
				Content:    m.Content,
				Sources:    domain.StringSlice(m.Sources),
				SourceURLs: domain.StringSlice(m.SourceURLs),
				CreatedAt:  now.Add(time.Duration(i) * time.Microsecond),
			})
		}
		if err := s.messages.Create(ctx, tx, rows); err != nil {
			return err
		}
		if err := tx.Model(&domain.Session{}).Where("id = ?", sessionID).Update("updated_at", now).Error; err != nil {
			return err
		}
		created = rows
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: append messages: %w", err)
	}

	s.cache.append(sessionID, created, contextTurns)
	return created, nil
}

func (s *store) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Message, error) {
	out, err := s.messages.ListRecent(ctx, nil, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("session: list messages: %w", err)
	}
	return out, nil
}

func (s *store) RecentContext(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("session: missing session id")
	}
	if cached, ok := s.cache.get(sessionID); ok {
		return cached, nil
	}
	loaded, err := s.messages.ListRecent(ctx, nil, sessionID, contextTurns*2)
	if err != nil {
		return nil, fmt.Errorf("session: load recent context: %w", err)
	}
	windowed := boundToPairs(loaded, contextTurns)
	s.cache.set(sessionID, windowed)
	return windowed, nil
}

func (s *store) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.Touch(ctx, nil, sessionID); err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}
	return nil
}

func (s *store) ListSessions(ctx context.Context, principalID string) ([]*domain.Session, error) {
	out, err := s.sessions.ListByPrincipal(ctx, nil, principalID, 0)
	if err != nil {
		return nil, fmt.Errorf("session: list sessions: %w", err)
	}
	return out, nil
}

func (s *store) RenameSession(ctx context.Context, id uuid.UUID, title string) (*domain.Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("session: missing session id")
	}
	if err := s.db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).
		Updates(map[string]interface{}{"title": deriveTitle(title), "updated_at": time.Now().UTC()}).Error; err != nil {
		return nil, fmt.Errorf("session: rename: %w", err)
	}
	return s.sessions.GetByID(ctx, nil, id)
}

func (s *store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("session: missing session id")
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("session_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Where("id = ?", id).Delete(&domain.Session{}).Error
	})
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	s.cache.delete(id)
	return nil
}

// boundToPairs enforces "at most 2N messages, oldest-first, pairs not
// split" (spec §4.7 "Context bound") against a DESC-then-reversed slice
// that may start mid-pair.
func boundToPairs(oldestFirst []*domain.Message, n int) []*domain.Message {
	maxLen := 2 * n
	if len(oldestFirst) > maxLen {
		oldestFirst = oldestFirst[len(oldestFirst)-maxLen:]
	}
	if len(oldestFirst) > 0 && oldestFirst[0].Role == domain.RoleAssistant {
		oldestFirst = oldestFirst[1:]
	}
	if len(oldestFirst) > 0 && oldestFirst[len(oldestFirst)-1].Role == domain.RoleUser {
		oldestFirst = oldestFirst[:len(oldestFirst)-1]
	}
	return oldestFirst
}

func deriveTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	r := []rune(title)
	if len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes])
	}
	return title
}
