package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

func msg(role domain.Role, content string) *domain.Message {
	return &domain.Message{ID: uuid.New(), Role: role, Content: content}
}

func TestBoundToPairsKeepsAtMost2N(t *testing.T) {
	var msgs []*domain.Message
	for i := 0; i < 50; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, msg(role, "turn"))
	}
	out := boundToPairs(msgs, 20)
	require.Len(t, out, 40)
}

func TestBoundToPairsDropsLeadingAssistantAfterTruncation(t *testing.T) {
	// A window starting with a dangling assistant reply (its user turn was
	// truncated off) must drop that assistant message.
	msgs := []*domain.Message{
		msg(domain.RoleAssistant, "dangling reply"),
		msg(domain.RoleUser, "q1"),
		msg(domain.RoleAssistant, "a1"),
	}
	out := boundToPairs(msgs, 20)
	require.Len(t, out, 2)
	require.Equal(t, "q1", out[0].Content)
}

func TestBoundToPairsDropsTrailingUserWithoutReply(t *testing.T) {
	msgs := []*domain.Message{
		msg(domain.RoleUser, "q1"),
		msg(domain.RoleAssistant, "a1"),
		msg(domain.RoleUser, "q2 with no reply yet"),
	}
	out := boundToPairs(msgs, 20)
	require.Len(t, out, 2)
	require.Equal(t, "a1", out[len(out)-1].Content)
}

func TestContextCacheGetMissUntilSet(t *testing.T) {
	c := newContextCache()
	id := uuid.New()

	_, ok := c.get(id)
	require.False(t, ok)

	c.set(id, []*domain.Message{msg(domain.RoleUser, "hi")})
	got, ok := c.get(id)
	require.True(t, ok)
	require.Len(t, got, 1)
}

func TestContextCacheAppendTruncatesWindow(t *testing.T) {
	c := newContextCache()
	id := uuid.New()
	c.set(id, nil)

	for i := 0; i < 25; i++ {
		c.append(id, []*domain.Message{
			msg(domain.RoleUser, "q"),
			msg(domain.RoleAssistant, "a"),
		}, 20)
	}
	got, ok := c.get(id)
	require.True(t, ok)
	require.LessOrEqual(t, len(got), 40)
}

func TestContextCacheIsolatedPerSession(t *testing.T) {
	c := newContextCache()
	a, b := uuid.New(), uuid.New()
	c.set(a, []*domain.Message{msg(domain.RoleUser, "from a")})
	c.set(b, []*domain.Message{msg(domain.RoleUser, "from b")})

	gotA, _ := c.get(a)
	gotB, _ := c.get(b)
	require.Equal(t, "from a", gotA[0].Content)
	require.Equal(t, "from b", gotB[0].Content)
}

func TestContextCacheDelete(t *testing.T) {
	c := newContextCache()
	id := uuid.New()
	c.set(id, []*domain.Message{msg(domain.RoleUser, "hi")})
	c.delete(id)

	_, ok := c.get(id)
	require.False(t, ok)
}
