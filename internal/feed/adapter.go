package feed

import (
	"context"
	"time"

	"github.com/chatsweep/chatsweep/internal/logger"
	"github.com/chatsweep/chatsweep/internal/messaging"
)

// Adapter wraps a session's messaging capability with uniform failure
// handling: every call degrades to an empty result instead of surfacing an
// error, so one chat's trouble never aborts a cleanup batch.
type Adapter struct {
	cap messaging.Capability
}

func New(cap messaging.Capability) *Adapter {
	return &Adapter{cap: cap}
}

// Conversations returns the current chat list, or an empty list if the
// capability cannot produce one.
func (a *Adapter) Conversations(ctx context.Context) []messaging.Chat {
	chats, err := a.cap.Chats(ctx)
	if err != nil {
		logger.Warn("list chats failed", "error", err)
		return nil
	}
	return chats
}

// CountRecent returns how many of the chat's most recent messages exist,
// bounded by limit. Fetch failures count as zero.
func (a *Adapter) CountRecent(ctx context.Context, chatID string, limit int) int {
	msgs, err := a.cap.Messages(ctx, chatID, limit)
	if err != nil {
		logger.Warn("fetch messages failed", "chat", chatID, "error", err)
		return 0
	}
	return len(msgs)
}

// LastActivity probes the chat's single most recent message and returns its
// timestamp. ok is false when the chat has no messages or the probe fails.
func (a *Adapter) LastActivity(ctx context.Context, chatID string) (time.Time, bool) {
	msgs, err := a.cap.Messages(ctx, chatID, 1)
	if err != nil {
		logger.Warn("recency probe failed", "chat", chatID, "error", err)
		return time.Time{}, false
	}
	if len(msgs) == 0 {
		return time.Time{}, false
	}
	return msgs[len(msgs)-1].Timestamp, true
}

// Purge clears the chat's messages then deletes the chat. Returns whether
// both steps succeeded. Failures are absorbed here so callers see a plain
// boolean per item.
func (a *Adapter) Purge(ctx context.Context, chatID string) bool {
	if err := a.cap.ClearMessages(ctx, chatID); err != nil {
		logger.Debug("clear messages failed", "chat", chatID, "error", err)
		return false
	}
	if err := a.cap.DeleteChat(ctx, chatID); err != nil {
		logger.Debug("delete chat failed", "chat", chatID, "error", err)
		return false
	}
	return true
}
