package repos

import (
	"fmt"

	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

// MessageRepo persists the per-turn message rows that make up a session's
// transcript (spec §3 Message, §4.3 C9).
type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*domain.Message) error
	// ListRecent returns the most recent limit messages for a session in
	// chronological (oldest-first) order, ready to seed the bounded
	// conversation context window (spec §4.3 "recent_context").
	ListRecent(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*domain.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, rows []*domain.Message) error {
	if len(rows) == 0 {
		return nil
	}
	for _, m := range rows {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	}
	txx := tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(ctx).Create(&rows).Error
}

func (r *messageRepo) ListRecent(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*domain.Message, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session id")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	txx := tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.Message
	if err := txx.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
