package conversation

import (
	"sort"
	"time"
)

const (
	// DefaultMemorySize bounds the per-conversation message ring.
	DefaultMemorySize = 10
	// MaxTopics bounds the rolling topic set.
	MaxTopics = 10
	// MaxEntities bounds the rolling entity set.
	MaxEntities = 20
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a user message.
	RoleUser Role = "user"
	// RoleAssistant marks an assistant message.
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-conversation memory aggregate: a bounded ring of
// recent messages, a rolling topic/entity set, and a regenerated summary.
// The context optimizer is the sole owner; all mutation goes through it.
type Conversation struct {
	id          string
	userID      string
	agentID     string
	messages    []Message
	memorySize  int
	summary     string
	topics      []string
	entities    map[string]int
	lastUpdated time.Time
}

// New creates an empty conversation. memorySize <= 0 falls back to the default.
func New(id, userID, agentID string, memorySize int) *Conversation {
	if memorySize <= 0 {
		memorySize = DefaultMemorySize
	}
	return &Conversation{
		id:         id,
		userID:     userID,
		agentID:    agentID,
		memorySize: memorySize,
		entities:   make(map[string]int),
	}
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string { return c.id }

// UserID returns the owning user identifier.
func (c *Conversation) UserID() string { return c.userID }

// AgentID returns the owning agent identifier.
func (c *Conversation) AgentID() string { return c.agentID }

// Messages returns a copy of the retained messages, oldest first.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Summary returns the rolling natural-language summary.
func (c *Conversation) Summary() string { return c.summary }

// Topics returns a copy of the rolling topic set, newest last.
func (c *Conversation) Topics() []string {
	out := make([]string, len(c.topics))
	copy(out, c.topics)
	return out
}

// Entities returns a copy of the entity mention counts.
func (c *Conversation) Entities() map[string]int {
	out := make(map[string]int, len(c.entities))
	for k, v := range c.entities {
		out[k] = v
	}
	return out
}

// LastUpdated returns the time of the last mutation.
func (c *Conversation) LastUpdated() time.Time { return c.lastUpdated }

// MemorySize returns the message ring capacity.
func (c *Conversation) MemorySize() int { return c.memorySize }

// Len returns the number of retained messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Append adds a message, evicting the oldest once the ring is full.
func (c *Conversation) Append(m Message, now time.Time) {
	c.messages = append(c.messages, m)
	if len(c.messages) > c.memorySize {
		c.messages = c.messages[len(c.messages)-c.memorySize:]
	}
	c.lastUpdated = now
}

// SetSummary replaces the rolling summary.
func (c *Conversation) SetSummary(s string, now time.Time) {
	c.summary = s
	c.lastUpdated = now
}

// MergeTopics appends new topics, dropping the oldest beyond the cap.
// Already-known topics are refreshed to the newest position.
func (c *Conversation) MergeTopics(topics []string, now time.Time) {
	for _, t := range topics {
		if t == "" {
			continue
		}
		for i, existing := range c.topics {
			if existing == t {
				c.topics = append(c.topics[:i], c.topics[i+1:]...)
				break
			}
		}
		c.topics = append(c.topics, t)
	}
	if len(c.topics) > MaxTopics {
		c.topics = c.topics[len(c.topics)-MaxTopics:]
	}
	c.lastUpdated = now
}

// MergeEntities increments mention counts and trims to the cap, keeping the
// most frequently mentioned entities.
func (c *Conversation) MergeEntities(entities []string, now time.Time) {
	for _, e := range entities {
		if e != "" {
			c.entities[e]++
		}
	}
	if len(c.entities) > MaxEntities {
		type pair struct {
			name  string
			count int
		}
		pairs := make([]pair, 0, len(c.entities))
		for k, v := range c.entities {
			pairs = append(pairs, pair{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].count != pairs[j].count {
				return pairs[i].count > pairs[j].count
			}
			return pairs[i].name < pairs[j].name
		})
		kept := make(map[string]int, MaxEntities)
		for _, p := range pairs[:MaxEntities] {
			kept[p.name] = p.count
		}
		c.entities = kept
	}
	c.lastUpdated = now
}

// IdleSince reports whether the conversation has seen no update within d.
func (c *Conversation) IdleSince(now time.Time, d time.Duration) bool {
	return now.Sub(c.lastUpdated) > d
}
