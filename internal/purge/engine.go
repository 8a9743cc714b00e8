package purge

import (
	"context"
	"time"

	"github.com/chatsweep/chatsweep/internal/feed"
	"github.com/chatsweep/chatsweep/internal/history"
	"github.com/chatsweep/chatsweep/internal/logger"
)

// Fixed action labels recorded in history and shown in the panel.
const (
	ActionCleanAll      = "Clean all chats"
	ActionCleanInactive = "Clean inactive chats"
	ActionDeleteGroups  = "Delete group chats"
)

const (
	// retentionWindow is how long a chat may sit idle before the inactive
	// policy selects it. Strictly older than this wins.
	retentionWindow = 8 * 24 * time.Hour

	// bulkLimit approximates "all messages" for typical chat sizes without
	// unbounded fetches. The recency probe uses limit 1 instead.
	bulkLimit = 1000
)

// Result is the aggregate outcome of one policy run. TotalMessages counts
// every candidate's messages; DeletedMessages counts only candidates whose
// purge succeeded. The gap between the two is the visible partial failure.
type Result struct {
	Action          string
	TotalMessages   int
	DeletedMessages int
}

// Engine runs the three deletion policies for one session's feed and
// records each run in the ledger.
type Engine struct {
	feed      *feed.Adapter
	ledger    *history.Store
	sessionID string
	now       func() time.Time
}

func NewEngine(f *feed.Adapter, ledger *history.Store, sessionID string) *Engine {
	return &Engine{feed: f, ledger: ledger, sessionID: sessionID, now: time.Now}
}

// CleanAll purges every conversation.
func (e *Engine) CleanAll(ctx context.Context) Result {
	res := Result{Action: ActionCleanAll}
	for _, chat := range e.feed.Conversations(ctx) {
		count := e.feed.CountRecent(ctx, chat.ID, bulkLimit)
		res.TotalMessages += count
		if e.feed.Purge(ctx, chat.ID) {
			res.DeletedMessages += count
		}
	}
	e.record(res)
	return res
}

// CleanInactive purges conversations whose most recent message is strictly
// older than the retention window at the instant the run started. Chats
// with no messages at all cannot be judged inactive and are skipped.
func (e *Engine) CleanInactive(ctx context.Context) Result {
	res := Result{Action: ActionCleanInactive}
	cutoff := e.now().Add(-retentionWindow)
	for _, chat := range e.feed.Conversations(ctx) {
		last, ok := e.feed.LastActivity(ctx, chat.ID)
		if !ok || !last.Before(cutoff) {
			continue
		}
		count := e.feed.CountRecent(ctx, chat.ID, bulkLimit)
		res.TotalMessages += count
		if e.feed.Purge(ctx, chat.ID) {
			res.DeletedMessages += count
		}
	}
	e.record(res)
	return res
}

// CleanGroups purges every group conversation.
func (e *Engine) CleanGroups(ctx context.Context) Result {
	res := Result{Action: ActionDeleteGroups}
	for _, chat := range e.feed.Conversations(ctx) {
		if !chat.IsGroup {
			continue
		}
		count := e.feed.CountRecent(ctx, chat.ID, bulkLimit)
		res.TotalMessages += count
		if e.feed.Purge(ctx, chat.ID) {
			res.DeletedMessages += count
		}
	}
	e.record(res)
	return res
}

// record appends the finished run to the ledger. Only complete aggregates
// ever reach the ledger; an append failure loses the record but not the run.
func (e *Engine) record(res Result) {
	rec := history.Record{
		Date:            e.now().UTC().Format(time.RFC3339),
		Action:          res.Action,
		TotalMessages:   res.TotalMessages,
		DeletedMessages: res.DeletedMessages,
	}
	if err := e.ledger.Append(e.sessionID, rec); err != nil {
		logger.Error("record cleanup run", "session", e.sessionID, "action", res.Action, "error", err)
	}
}
