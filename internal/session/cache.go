package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

// contextCache is the ConversationContext cache: one lock per session so a
// turn on session A never blocks a turn on session B (spec §4.4
// "ConversationContext cache: per-session, protected by a per-session
// lock").
type contextCache struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
}

type sessionEntry struct {
	mu       sync.Mutex
	messages []*domain.Message
	warm     bool
}

func newContextCache() *contextCache {
	return &contextCache{sessions: make(map[uuid.UUID]*sessionEntry)}
}

func (c *contextCache) entry(id uuid.UUID) *sessionEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.sessions[id]
	if !ok {
		e = &sessionEntry{}
		c.sessions[id] = e
	}
	return e
}

func (c *contextCache) get(id uuid.UUID) ([]*domain.Message, bool) {
	e := c.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.warm {
		return nil, false
	}
	out := make([]*domain.Message, len(e.messages))
	copy(out, e.messages)
	return out, true
}

func (c *contextCache) set(id uuid.UUID, messages []*domain.Message) {
	e := c.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = messages
	e.warm = true
}

func (c *contextCache) append(id uuid.UUID, newMessages []*domain.Message, n int) {
	e := c.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, newMessages...)
	e.messages = boundToPairs(e.messages, n)
	e.warm = true
}

func (c *contextCache) delete(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}
