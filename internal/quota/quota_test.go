package quota

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

var errDown = errors.New("connection refused")

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestLimiterLimitForPicksKindSpecificLimit(t *testing.T) {
	l := &limiter{cfg: Config{DailyLimitUser: 50, DailyLimitIP: 10}}
	require.Equal(t, 50, l.limitFor(domain.PrincipalUser))
	require.Equal(t, 10, l.limitFor(domain.PrincipalIP))
}

func TestLimiterFailOpenForDefaultsClosedForAnonymous(t *testing.T) {
	l := &limiter{cfg: Config{FailOpenAuthed: true}}
	require.True(t, l.failOpenFor(domain.PrincipalUser))
	require.False(t, l.failOpenFor(domain.PrincipalIP))
}

func TestQuotaKeyIncludesKindAndID(t *testing.T) {
	got := quotaKey(domain.Principal{Kind: domain.PrincipalIP, ID: "203.0.113.4"})
	require.Equal(t, "ip:203.0.113.4", got)
}

func TestDayBoundaryIsNextMidnightInLocation(t *testing.T) {
	loc := time.UTC
	reset := dayBoundary(loc)
	now := time.Now().In(loc)
	require.True(t, reset.After(now))
	require.True(t, reset.Sub(now) <= 24*time.Hour)
	require.Equal(t, 0, reset.Hour())
	require.Equal(t, 0, reset.Minute())
}

func TestMax0ClampsNegative(t *testing.T) {
	require.Equal(t, 0, max0(-5))
	require.Equal(t, 3, max0(3))
}

func TestOnFailureFailOpenReturnsAllowed(t *testing.T) {
	logg := testLogger(t)
	l := &limiter{log: logg, cfg: Config{DailyLimitUser: 50, FailOpenAuthed: true}}
	dec, err := l.onFailure(domain.Principal{Kind: domain.PrincipalUser, ID: "u1"}, 50, time.Now(), errDown)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	require.Equal(t, 50, dec.Remaining)
}

func TestOnFailureAnonymousFailsClosed(t *testing.T) {
	logg := testLogger(t)
	l := &limiter{log: logg, cfg: Config{DailyLimitIP: 10, FailOpenAuthed: true}}
	dec, err := l.onFailure(domain.Principal{Kind: domain.PrincipalIP, ID: "1.2.3.4"}, 10, time.Now(), errDown)
	require.NoError(t, err)
	require.False(t, dec.Allowed)
}
