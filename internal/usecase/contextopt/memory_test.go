package contextopt

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain/conversation"
)

func userMsg(content string) conversation.Message {
	return conversation.Message{Role: conversation.RoleUser, Content: content}
}

func TestMemoryRingKeepsLastMessages(t *testing.T) {
	m := newMemoryStore(10, time.Hour, zap.NewNop())

	for i := 1; i <= 15; i++ {
		m.addMessage("conv-1", "u1", "a1", userMsg(fmt.Sprintf("message number %d", i)))
	}

	snap, ok := m.snapshot("conv-1")
	if !ok {
		t.Fatal("conversation must exist")
	}
	if len(snap.Messages) != 10 {
		t.Fatalf("retained %d messages, want 10", len(snap.Messages))
	}
	if snap.Messages[0].Content != "message number 6" {
		t.Errorf("oldest retained = %q, want message number 6", snap.Messages[0].Content)
	}
	if snap.Messages[9].Content != "message number 15" {
		t.Errorf("newest retained = %q, want message number 15", snap.Messages[9].Content)
	}
	if snap.ContextWindow != 10 {
		t.Errorf("ContextWindow = %d, want the configured ring capacity", snap.ContextWindow)
	}
}

func TestMemorySummaryAfterMinHistory(t *testing.T) {
	m := newMemoryStore(10, time.Hour, zap.NewNop())

	for i := 0; i < 4; i++ {
		m.addMessage("conv-1", "u1", "a1", userMsg("Tuning cache eviction policies."))
	}
	snap, _ := m.snapshot("conv-1")
	if snap.Summary != "" {
		t.Errorf("summary = %q, want empty before min history", snap.Summary)
	}

	m.addMessage("conv-1", "u1", "a1", userMsg("How does ttl interact with eviction?"))
	snap, _ = m.snapshot("conv-1")
	if snap.Summary == "" {
		t.Error("summary must be generated once history reaches the minimum")
	}
}

func TestMemoryLazyCreationAndDrop(t *testing.T) {
	m := newMemoryStore(10, time.Hour, zap.NewNop())

	if _, ok := m.snapshot("ghost"); ok {
		t.Fatal("unknown conversation must not exist")
	}
	if m.drop("ghost") {
		t.Fatal("dropping an unknown conversation must report false")
	}

	m.addMessage("conv-1", "u1", "a1", userMsg("hello there"))
	if _, ok := m.snapshot("conv-1"); !ok {
		t.Fatal("conversation must be created lazily on first message")
	}
	if !m.drop("conv-1") {
		t.Fatal("drop must succeed for a held conversation")
	}
	if _, ok := m.snapshot("conv-1"); ok {
		t.Fatal("dropped conversation must be gone")
	}
}

func TestMemorySweepEvictsIdle(t *testing.T) {
	m := newMemoryStore(10, 30*time.Minute, zap.NewNop())
	base := time.Now()
	m.now = func() time.Time { return base }

	m.addMessage("stale", "u1", "a1", userMsg("old talk"))

	base = base.Add(20 * time.Minute)
	m.addMessage("fresh", "u2", "a1", userMsg("new talk"))

	base = base.Add(15 * time.Minute)
	m.sweep()

	if _, ok := m.snapshot("stale"); ok {
		t.Error("stale conversation must be evicted after the idle timeout")
	}
	if _, ok := m.snapshot("fresh"); !ok {
		t.Error("fresh conversation must survive the sweep")
	}
}

func TestMemorySweepConcurrentWithWrites(t *testing.T) {
	m := newMemoryStore(10, time.Nanosecond, zap.NewNop())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 64; i++ {
				id := fmt.Sprintf("conv-%d", (w*64+i)%32)
				m.addMessage(id, "u1", "a1", userMsg("concurrent turn"))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			m.sweep()
		}
	}()
	wg.Wait()

	// A conversation touched after the last sweep must still be readable.
	m.addMessage("conv-final", "u1", "a1", userMsg("after the sweeps"))
	if _, ok := m.snapshot("conv-final"); !ok {
		t.Fatal("conversation written after sweeping must exist")
	}
}

func TestMemoryConcurrentSameConversation(t *testing.T) {
	m := newMemoryStore(10, time.Hour, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.addMessage("conv-1", "u1", "a1", userMsg(fmt.Sprintf("turn %d", n)))
		}(i)
	}
	wg.Wait()

	snap, _ := m.snapshot("conv-1")
	if len(snap.Messages) != 10 {
		t.Errorf("retained %d messages, want exactly the ring bound 10", len(snap.Messages))
	}
}
