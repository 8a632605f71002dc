package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/agent/router"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/agent/synthesizer"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/docstore"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/quota"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/session"
)

type fakeQuota struct{ decision quota.Decision }

func (q *fakeQuota) Admit(context.Context, domain.Principal) (quota.Decision, error) {
	return q.decision, nil
}

type fakeSessions struct {
	session *domain.Session
	history []*domain.Message
	created []session.AppendInput
}

func (s *fakeSessions) CreateSession(_ context.Context, principalID, title string) (*domain.Session, error) {
	return &domain.Session{ID: uuid.New(), PrincipalID: principalID, Title: title}, nil
}
func (s *fakeSessions) GetSession(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	if s.session != nil && s.session.ID == id {
		return s.session, nil
	}
	return nil, nil
}
func (s *fakeSessions) AppendMessages(_ context.Context, _ uuid.UUID, msgs ...session.AppendInput) ([]*domain.Message, error) {
	s.created = append(s.created, msgs...)
	return nil, nil
}
func (s *fakeSessions) ListMessages(context.Context, uuid.UUID, int) ([]*domain.Message, error) {
	return nil, nil
}
func (s *fakeSessions) RecentContext(context.Context, uuid.UUID) ([]*domain.Message, error) {
	return s.history, nil
}
func (s *fakeSessions) TouchSession(context.Context, uuid.UUID) error { return nil }
func (s *fakeSessions) ListSessions(context.Context, string) ([]*domain.Session, error) {
	return nil, nil
}
func (s *fakeSessions) RenameSession(context.Context, uuid.UUID, string) (*domain.Session, error) {
	return nil, nil
}
func (s *fakeSessions) DeleteSession(context.Context, uuid.UUID) error { return nil }

type fakeRouter struct{ plan router.Plan }

func (r *fakeRouter) Plan(context.Context, router.Params) (router.Plan, error) {
	return r.plan, nil
}

type fakeDocs struct{}

func (fakeDocs) QueryChunks(context.Context, []float32, int, string) ([]docstore.ChunkMatch, error) {
	return nil, nil
}
func (fakeDocs) QueryDocuments(context.Context, []float32, int, string) ([]docstore.DocumentSimilarity, error) {
	return nil, nil
}
func (fakeDocs) DocumentsByIDs(context.Context, []float32, []string) ([]docstore.DocumentSimilarity, error) {
	return nil, nil
}
func (fakeDocs) DocumentByID(context.Context, string) (domain.DocumentMetadata, error) {
	return domain.DocumentMetadata{}, nil
}

type fakeGateway struct{}

func (fakeGateway) GenerateText(context.Context, string, string) (string, error)   { return "", nil }
func (fakeGateway) GenerateJSON(context.Context, string, string, interface{}) error { return nil }
func (fakeGateway) StreamText(context.Context, string, string, func(string)) (string, error) {
	return "", nil
}
func (fakeGateway) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }

type fakeSynth struct {
	result synthesizer.Result
	deltas []string
}

func (f *fakeSynth) Stream(_ context.Context, _ synthesizer.Params, onDelta func(string)) (synthesizer.Result, error) {
	for _, d := range f.deltas {
		onDelta(d)
	}
	return f.result, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestRunTurnDeniedByQuotaEmitsOnlyError(t *testing.T) {
	o := New(
		&fakeQuota{decision: quota.Decision{Allowed: false}},
		&fakeSessions{}, &fakeRouter{}, fakeDocs{}, fakeGateway{}, nil, &fakeSynth{}, nil,
		6000, 0.3846, testLogger(t),
	)

	events := collect(o.RunTurn(context.Background(), TurnInput{Principal: domain.Principal{Kind: domain.PrincipalUser, ID: "u1"}, Utterance: "hi"}))

	require.Len(t, events, 1)
	require.Equal(t, EventError, events[0].Type)
}

func TestRunTurnEmitsExpectedEventSequence(t *testing.T) {
	sessions := &fakeSessions{}
	synth := &fakeSynth{result: synthesizer.Result{Text: "hello"}, deltas: []string{"he", "llo"}}
	o := New(
		&fakeQuota{decision: quota.Decision{Allowed: true, Remaining: 5}},
		sessions,
		&fakeRouter{plan: router.Plan{}},
		fakeDocs{}, fakeGateway{}, nil, synth, nil,
		6000, 0.3846, testLogger(t),
	)

	events := collect(o.RunTurn(context.Background(), TurnInput{Principal: domain.Principal{Kind: domain.PrincipalUser, ID: "u1"}, Utterance: "질문"}))

	require.True(t, len(events) >= 5)
	require.Equal(t, EventStatus, events[0].Type)
	require.Equal(t, "router", events[0].Step)
	require.Equal(t, EventStatus, events[1].Type)
	require.Equal(t, "functions", events[1].Step)
	require.Equal(t, EventStatus, events[2].Type)
	require.Equal(t, "synthesizer", events[2].Step)
	require.Equal(t, EventChunk, events[3].Type)
	require.Equal(t, EventChunk, events[4].Type)
	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Type)

	require.Eventually(t, func() bool { return len(sessions.created) == 2 }, time.Second, time.Millisecond)
}

func TestRunTurnUnknownSessionIDEmitsError(t *testing.T) {
	o := New(
		&fakeQuota{decision: quota.Decision{Allowed: true}},
		&fakeSessions{}, &fakeRouter{}, fakeDocs{}, fakeGateway{}, nil, &fakeSynth{}, nil,
		6000, 0.3846, testLogger(t),
	)
	missing := uuid.New()

	events := collect(o.RunTurn(context.Background(), TurnInput{
		Principal: domain.Principal{Kind: domain.PrincipalUser, ID: "u1"},
		SessionID: &missing,
		Utterance: "hi",
	}))

	require.Len(t, events, 1)
	require.Equal(t, EventError, events[0].Type)
}

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}
