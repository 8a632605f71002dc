// Package quota implements C10, the Quota Limiter: a per-principal daily
// counter with a race-free atomic increment (spec §4.4).
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Admit(ctx context.Context, p domain.Principal) (Decision, error)
}

type Config struct {
	DailyLimitUser int
	DailyLimitIP   int
	Timezone       *time.Location
	// FailOpenAuthed controls behavior when the counter store is
	// unreachable: authenticated principals default to fail-open,
	// anonymous principals default to fail-closed (spec §4.4 "Failure").
	FailOpenAuthed bool
}

type limiter struct {
	pool *pgxpool.Pool
	log  *logger.Logger
	cfg  Config
}

func New(pool *pgxpool.Pool, log *logger.Logger, cfg Config) Limiter {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &limiter{pool: pool, log: log.With("service", "QuotaLimiter"), cfg: cfg}
}

// Admit increments a principal's daily counter atomically, rejecting the
// call if the pre-increment count already reached the limit. The
// conditional UPDATE combined with the (key, day) unique constraint
// (internal/data/db/migrate.go) is what makes this race-free under
// concurrent callers (spec §4.4 "Algorithm").
func (l *limiter) Admit(ctx context.Context, p domain.Principal) (Decision, error) {
	limit := l.limitFor(p.Kind)
	day := time.Now().In(l.cfg.Timezone).Format("2006-01-02")
	key := quotaKey(p)
	resetAt := dayBoundary(l.cfg.Timezone)

	count, allowed, err := l.incrementIfUnderLimit(ctx, key, day, limit)
	if err != nil {
		return l.onFailure(p, limit, resetAt, err)
	}
	return Decision{Allowed: allowed, Remaining: max0(limit - count), ResetAt: resetAt}, nil
}

// incrementIfUnderLimit performs the upsert in a single round trip: insert
// a fresh counter at 1, or increment the existing row only when it hasn't
// reached the limit yet. The WHERE clause on the conflict target is what
// prevents a racing increment from sneaking the count past limit.
func (l *limiter) incrementIfUnderLimit(ctx context.Context, key, day string, limit int) (count int, allowed bool, err error) {
	const q = `
		INSERT INTO usage_counters (key, day, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (key, day) DO UPDATE
			SET count = usage_counters.count + 1
			WHERE usage_counters.count < $3
		RETURNING count
	`
	row := l.pool.QueryRow(ctx, q, key, day, limit)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The conflicting row exists but was already at the limit, so
			// the conditional UPDATE matched zero rows and RETURNING
			// produced nothing: the count did not change.
			current, readErr := l.readCount(ctx, key, day)
			if readErr != nil {
				return 0, false, readErr
			}
			return current, false, nil
		}
		return 0, false, fmt.Errorf("quota: increment: %w", err)
	}
	return count, count <= limit, nil
}

func (l *limiter) readCount(ctx context.Context, key, day string) (int, error) {
	var count int
	row := l.pool.QueryRow(ctx, `SELECT count FROM usage_counters WHERE key = $1 AND day = $2`, key, day)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("quota: read count: %w", err)
	}
	return count, nil
}

func (l *limiter) onFailure(p domain.Principal, limit int, resetAt time.Time, err error) (Decision, error) {
	failOpen := l.failOpenFor(p.Kind)
	l.log.Warn("quota: counter store unreachable", "principal_kind", string(p.Kind), "fail_open", failOpen, "error", err.Error())
	if !failOpen {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Remaining: limit, ResetAt: resetAt}, nil
}

func (l *limiter) limitFor(kind domain.PrincipalKind) int {
	if kind == domain.PrincipalUser {
		return l.cfg.DailyLimitUser
	}
	return l.cfg.DailyLimitIP
}

func (l *limiter) failOpenFor(kind domain.PrincipalKind) bool {
	if kind == domain.PrincipalUser {
		return l.cfg.FailOpenAuthed
	}
	return false
}

func quotaKey(p domain.Principal) string {
	return string(p.Kind) + ":" + p.ID
}

func dayBoundary(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
