package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

// SessionRepo persists the session row that anchors one conversation's
// message history (spec §3 Session, §4.3 C9).
type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, s *domain.Session) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Session, error)
	// LockByID takes a row lock used to serialize concurrent appends to the
	// same session (spec §4.3 "single writer per session").
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Session, error)
	ListByPrincipal(ctx context.Context, tx *gorm.DB, principalID string, limit int) ([]*domain.Session, error)
	Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, s *domain.Session) error {
	if s == nil {
		return fmt.Errorf("missing session")
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	txx := tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing session id")
	}
	txx := tx
	if txx == nil {
		txx = r.db
	}
	var out domain.Session
	if err := txx.WithContext(ctx).Where("id = ?", id).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing session id")
	}
	if tx == nil {
		return nil, fmt.Errorf("LockByID requires tx")
	}
	var out domain.Session
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) ListByPrincipal(ctx context.Context, tx *gorm.DB, principalID string, limit int) ([]*domain.Session, error) {
	if principalID == "" {
		return nil, fmt.Errorf("missing principal id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.Session
	if err := txx.WithContext(ctx).
		Where("principal_id = ?", principalID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing session id")
	}
	txx := tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}
