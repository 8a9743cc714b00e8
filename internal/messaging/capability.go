package messaging

import (
	"context"
	"time"
)

// EventKind identifies a linking event emitted by a capability.
type EventKind int

const (
	// EventQR carries a fresh link challenge. May fire more than once; each
	// challenge supersedes the previous one.
	EventQR EventKind = iota
	// EventReady signals the account is linked and the feed is usable.
	EventReady
	// EventFailed signals linking failed permanently for this instance.
	EventFailed
)

// Event is one asynchronous state change during account linking.
type Event struct {
	Kind EventKind
	Code string // QR challenge payload, set for EventQR
	Err  error  // set for EventFailed
}

// Chat is one addressable conversation on the messaging platform.
type Chat struct {
	ID      string
	Name    string
	IsGroup bool
}

// Message carries only what cleanup needs: existence and recency.
type Message struct {
	ID        string
	Timestamp time.Time
}

// Capability is one messaging-account instance, exclusively owned by a
// single session. Start begins the link handshake; progress arrives on
// Events. The feed methods are only meaningful after EventReady.
type Capability interface {
	Start(ctx context.Context) error
	Events() <-chan Event

	Chats(ctx context.Context) ([]Chat, error)
	// Messages returns up to limit of the chat's most recent messages in
	// chronological order, oldest first.
	Messages(ctx context.Context, chatID string, limit int) ([]Message, error)
	ClearMessages(ctx context.Context, chatID string) error
	DeleteChat(ctx context.Context, chatID string) error

	// Teardown releases the instance and its stored link state.
	Teardown(ctx context.Context) error
}

// Factory creates a capability scoped to a session's storage namespace.
type Factory func(namespace string) Capability
