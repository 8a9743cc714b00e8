package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory capability for tests and the -fake dev mode. Chats
// and per-chat failures are scripted up front; link events are emitted
// manually (tests) or automatically shortly after Start (dev mode).
type Fake struct {
	mu         sync.Mutex
	chats      []Chat
	messages   map[string][]Message
	failList   bool
	failFetch  map[string]bool
	failClear  map[string]bool
	failDelete map[string]bool
	events     chan Event
	autoLink   bool
	torndown   bool
}

func NewFake() *Fake {
	return &Fake{
		messages:   make(map[string][]Message),
		failFetch:  make(map[string]bool),
		failClear:  make(map[string]bool),
		failDelete: make(map[string]bool),
		events:     make(chan Event, 8),
	}
}

// NewDemo returns a pre-linked fake seeded with sample chats. The namespace
// is ignored; demo state is not persisted.
func NewDemo(namespace string) Capability {
	f := NewFake()
	f.autoLink = true
	now := time.Now()
	f.AddChat(Chat{ID: "demo-family", Name: "Family", IsGroup: true},
		MessagesAt(now.Add(-2*time.Hour), 12)...)
	f.AddChat(Chat{ID: "demo-alice", Name: "Alice"},
		MessagesAt(now.Add(-30*24*time.Hour), 5)...)
	f.AddChat(Chat{ID: "demo-bob", Name: "Bob"},
		MessagesAt(now.Add(-time.Hour), 3)...)
	f.AddChat(Chat{ID: "demo-empty", Name: "New contact"})
	return f
}

// MessagesAt builds n messages whose most recent one carries ts.
func MessagesAt(ts time.Time, n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{
			ID:        fmt.Sprintf("m-%d", i),
			Timestamp: ts.Add(-time.Duration(n-1-i) * time.Minute),
		}
	}
	return msgs
}

// AddChat registers a chat with its messages, most recent last.
func (f *Fake) AddChat(chat Chat, msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chat)
	f.messages[chat.ID] = msgs
}

func (f *Fake) FailList()               { f.mu.Lock(); f.failList = true; f.mu.Unlock() }
func (f *Fake) FailFetch(chatID string) { f.mu.Lock(); f.failFetch[chatID] = true; f.mu.Unlock() }
func (f *Fake) FailClear(chatID string) { f.mu.Lock(); f.failClear[chatID] = true; f.mu.Unlock() }
func (f *Fake) FailDelete(chatID string) {
	f.mu.Lock()
	f.failDelete[chatID] = true
	f.mu.Unlock()
}

func (f *Fake) EmitQR(code string)   { f.events <- Event{Kind: EventQR, Code: code} }
func (f *Fake) EmitReady()           { f.events <- Event{Kind: EventReady} }
func (f *Fake) EmitFailed(err error) { f.events <- Event{Kind: EventFailed, Err: err} }

func (f *Fake) Start(ctx context.Context) error {
	if f.autoLink {
		go func() {
			f.EmitQR("demo-link-challenge")
			time.Sleep(500 * time.Millisecond)
			f.EmitReady()
		}()
	}
	return nil
}

func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Chats(ctx context.Context) ([]Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, fmt.Errorf("chat listing unavailable")
	}
	out := make([]Chat, len(f.chats))
	copy(out, f.chats)
	return out, nil
}

func (f *Fake) Messages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch[chatID] {
		return nil, fmt.Errorf("fetch messages for %s failed", chatID)
	}
	msgs := f.messages[chatID]
	if limit < len(msgs) {
		// Most recent messages win, matching platform fetch semantics.
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *Fake) ClearMessages(ctx context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClear[chatID] {
		return fmt.Errorf("clear %s failed", chatID)
	}
	f.messages[chatID] = nil
	return nil
}

func (f *Fake) DeleteChat(ctx context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[chatID] {
		return fmt.Errorf("delete %s failed", chatID)
	}
	for i, c := range f.chats {
		if c.ID == chatID {
			f.chats = append(f.chats[:i], f.chats[i+1:]...)
			break
		}
	}
	delete(f.messages, chatID)
	return nil
}

func (f *Fake) Teardown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torndown = true
	return nil
}

// TornDown reports whether Teardown ran, for lifecycle tests.
func (f *Fake) TornDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.torndown
}
