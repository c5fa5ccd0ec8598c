package contextopt

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain/conversation"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// summaryMinMessages is the history length that triggers summary
// regeneration.
const summaryMinMessages = 5

// topicsPerMessage bounds how many topics one message contributes.
const topicsPerMessage = 3

// Snapshot is a read-only copy of one conversation's memory.
type Snapshot struct {
	ID       string                 `json:"id"`
	UserID   string                 `json:"userId"`
	AgentID  string                 `json:"agentId"`
	Messages []conversation.Message `json:"messages"`
	Summary  string                 `json:"summary,omitempty"`
	Topics   []string               `json:"keyTopics"`
	Entities map[string]int         `json:"entities"`
	// ContextWindow is the message ring capacity the conversation was
	// created with.
	ContextWindow int       `json:"contextWindow"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

type memoryEntry struct {
	mu   sync.Mutex
	conv *conversation.Conversation
}

// memoryStore holds the per-conversation memory map. Mutation is serialized
// per conversation id; different ids never contend beyond the map lookup.
type memoryStore struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	memorySize  int
	idleTimeout time.Duration
	logger      *zap.Logger

	now func() time.Time
}

func newMemoryStore(memorySize int, idleTimeout time.Duration, logger *zap.Logger) *memoryStore {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &memoryStore{
		entries:     make(map[string]*memoryEntry),
		memorySize:  memorySize,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// entry returns the entry for id, creating the conversation lazily.
func (m *memoryStore) entry(id, userID, agentID string) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		e = &memoryEntry{conv: conversation.New(id, userID, agentID, m.memorySize)}
		m.entries[id] = e
		metrics.ConversationsActive.Set(float64(len(m.entries)))
	}
	return e
}

// addMessage appends a turn and refreshes topics, entities, and (once the
// history is long enough) the rolling summary.
func (m *memoryStore) addMessage(id, userID, agentID string, msg conversation.Message) {
	e := m.entry(id, userID, agentID)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := m.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	e.conv.Append(msg, now)
	e.conv.MergeTopics(text.TopTerms(msg.Content, topicsPerMessage), now)
	e.conv.MergeEntities(text.Entities(msg.Content), now)

	if e.conv.Len() >= summaryMinMessages {
		e.conv.SetSummary(summarize(e.conv), now)
	}
}

// snapshot returns a copy of the conversation's memory.
func (m *memoryStore) snapshot(id string) (Snapshot, bool) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		ID:            e.conv.ID(),
		UserID:        e.conv.UserID(),
		AgentID:       e.conv.AgentID(),
		Messages:      e.conv.Messages(),
		Summary:       e.conv.Summary(),
		Topics:        e.conv.Topics(),
		Entities:      e.conv.Entities(),
		ContextWindow: e.conv.MemorySize(),
		LastUpdated:   e.conv.LastUpdated(),
	}, true
}

// drop evicts a conversation. Returns false when it was not held.
func (m *memoryStore) drop(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return false
	}
	delete(m.entries, id)
	metrics.ConversationsActive.Set(float64(len(m.entries)))
	return true
}

// startSweep evicts stale conversations until ctx is done.
func (m *memoryStore) startSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *memoryStore) sweep() {
	now := m.now()

	m.mu.Lock()
	candidates := make(map[string]*memoryEntry, len(m.entries))
	for id, e := range m.entries {
		candidates[id] = e
	}
	m.mu.Unlock()

	// The idle check needs the entry lock: writers mutate the conversation
	// under it. Entries are re-checked for membership before eviction since
	// the map is unlocked in between.
	evicted := 0
	for id, e := range candidates {
		e.mu.Lock()
		idle := e.conv.IdleSince(now, m.idleTimeout)
		e.mu.Unlock()
		if !idle {
			continue
		}

		m.mu.Lock()
		if cur, ok := m.entries[id]; ok && cur == e {
			delete(m.entries, id)
			evicted++
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	metrics.ConversationsActive.Set(float64(len(m.entries)))
	m.mu.Unlock()

	if evicted > 0 {
		m.logger.Debug("Evicted idle conversations", zap.Int("count", evicted))
	}
}

// summarize builds a short natural-language summary from the rolling topics
// and the most recent user turns. Caller holds the entry lock.
func summarize(c *conversation.Conversation) string {
	var b strings.Builder

	if topics := c.Topics(); len(topics) > 0 {
		b.WriteString("Discussion about ")
		b.WriteString(strings.Join(topics, ", "))
		b.WriteString(".")
	}

	messages := c.Messages()
	recent := 0
	for i := len(messages) - 1; i >= 0 && recent < 2; i-- {
		if messages[i].Role != conversation.RoleUser {
			continue
		}
		if sentences := text.Sentences(messages[i].Content); len(sentences) > 0 {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString("Recently asked: ")
			b.WriteString(sentences[0])
			recent++
		}
	}
	return b.String()
}
