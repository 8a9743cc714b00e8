package purge

import (
	"context"
	"testing"
	"time"

	"github.com/chatsweep/chatsweep/internal/feed"
	"github.com/chatsweep/chatsweep/internal/history"
	"github.com/chatsweep/chatsweep/internal/messaging"
)

func testEngine(t *testing.T, fake *messaging.Fake, now time.Time) (*Engine, *history.Store) {
	t.Helper()
	ledger, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	e := NewEngine(feed.New(fake), ledger, "test-session")
	e.now = func() time.Time { return now }
	return e, ledger
}

// scenarioFake builds the three-chat account: A is a busy group with 10
// messages, B went quiet 10 days ago with 5 messages, C chatted yesterday
// with 2 messages.
func scenarioFake(now time.Time) *messaging.Fake {
	f := messaging.NewFake()
	f.AddChat(messaging.Chat{ID: "a", Name: "Group A", IsGroup: true},
		messaging.MessagesAt(now.Add(-2*time.Hour), 10)...)
	f.AddChat(messaging.Chat{ID: "b", Name: "B"},
		messaging.MessagesAt(now.Add(-10*24*time.Hour), 5)...)
	f.AddChat(messaging.Chat{ID: "c", Name: "C"},
		messaging.MessagesAt(now.Add(-24*time.Hour), 2)...)
	return f
}

func TestCleanAll(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e, _ := testEngine(t, scenarioFake(now), now)

	res := e.CleanAll(context.Background())
	if res.Action != ActionCleanAll {
		t.Errorf("action = %q", res.Action)
	}
	if res.TotalMessages != 17 || res.DeletedMessages != 17 {
		t.Errorf("got %d/%d, want 17/17", res.TotalMessages, res.DeletedMessages)
	}
}

func TestCleanGroups(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e, _ := testEngine(t, scenarioFake(now), now)

	res := e.CleanGroups(context.Background())
	if res.TotalMessages != 10 || res.DeletedMessages != 10 {
		t.Errorf("got %d/%d, want 10/10", res.TotalMessages, res.DeletedMessages)
	}
}

func TestCleanInactive(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e, _ := testEngine(t, scenarioFake(now), now)

	// Only B is stale: C is a day old, A is hours old.
	res := e.CleanInactive(context.Background())
	if res.TotalMessages != 5 || res.DeletedMessages != 5 {
		t.Errorf("got %d/%d, want 5/5", res.TotalMessages, res.DeletedMessages)
	}
}

func TestCleanInactivePurgeFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fake := scenarioFake(now)
	fake.FailDelete("b")
	e, _ := testEngine(t, fake, now)

	res := e.CleanInactive(context.Background())
	if res.TotalMessages != 5 || res.DeletedMessages != 0 {
		t.Errorf("got %d/%d, want 5/0", res.TotalMessages, res.DeletedMessages)
	}
	if res.DeletedMessages > res.TotalMessages {
		t.Error("deleted exceeds total")
	}
}

func TestCleanInactiveRetentionBoundary(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fake := messaging.NewFake()
	fake.AddChat(messaging.Chat{ID: "exact"},
		messaging.MessagesAt(now.Add(-retentionWindow), 1)...)
	fake.AddChat(messaging.Chat{ID: "older"},
		messaging.MessagesAt(now.Add(-retentionWindow-time.Millisecond), 1)...)
	e, _ := testEngine(t, fake, now)

	res := e.CleanInactive(context.Background())
	// Strictly-older comparator: exactly 8 days stays, 1ms past goes.
	if res.TotalMessages != 1 || res.DeletedMessages != 1 {
		t.Errorf("got %d/%d, want 1/1", res.TotalMessages, res.DeletedMessages)
	}
	chats, _ := fake.Chats(context.Background())
	if len(chats) != 1 || chats[0].ID != "exact" {
		t.Errorf("surviving chats = %+v, want only 'exact'", chats)
	}
}

func TestCleanInactiveSkipsEmptyChats(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fake := messaging.NewFake()
	fake.AddChat(messaging.Chat{ID: "empty-old"})
	e, _ := testEngine(t, fake, now)

	res := e.CleanInactive(context.Background())
	if res.TotalMessages != 0 || res.DeletedMessages != 0 {
		t.Errorf("got %d/%d, want 0/0", res.TotalMessages, res.DeletedMessages)
	}
	chats, _ := fake.Chats(context.Background())
	if len(chats) != 1 {
		t.Error("empty chat must never be purged by the inactive policy")
	}
}

func TestCleanGroupsIgnoresNonGroups(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fake := messaging.NewFake()
	fake.AddChat(messaging.Chat{ID: "dm"}, messaging.MessagesAt(now, 7)...)
	e, _ := testEngine(t, fake, now)

	res := e.CleanGroups(context.Background())
	if res.TotalMessages != 0 || res.DeletedMessages != 0 {
		t.Errorf("got %d/%d, want 0/0", res.TotalMessages, res.DeletedMessages)
	}
}

func TestCleanAllPartialFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fake := scenarioFake(now)
	fake.FailClear("a")
	e, _ := testEngine(t, fake, now)

	res := e.CleanAll(context.Background())
	if res.TotalMessages != 17 || res.DeletedMessages != 7 {
		t.Errorf("got %d/%d, want 17/7", res.TotalMessages, res.DeletedMessages)
	}
}

func TestListFailureDegradesToEmptyRun(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fake := scenarioFake(now)
	fake.FailList()
	e, ledger := testEngine(t, fake, now)

	res := e.CleanAll(context.Background())
	if res.TotalMessages != 0 || res.DeletedMessages != 0 {
		t.Errorf("got %d/%d, want 0/0", res.TotalMessages, res.DeletedMessages)
	}
	// The run still completes and is still recorded.
	records, _ := ledger.ReadAll("test-session")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
}

func TestRunsAppendToLedgerInOrder(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e, ledger := testEngine(t, scenarioFake(now), now)

	e.CleanGroups(context.Background())
	e.CleanInactive(context.Background())
	e.CleanAll(context.Background())

	records, err := ledger.ReadAll("test-session")
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	wantActions := []string{ActionDeleteGroups, ActionCleanInactive, ActionCleanAll}
	for i, r := range records {
		if r.Action != wantActions[i] {
			t.Errorf("record %d action = %q, want %q", i, r.Action, wantActions[i])
		}
		if r.Date != now.UTC().Format(time.RFC3339) {
			t.Errorf("record %d date = %q", i, r.Date)
		}
		if r.DeletedMessages > r.TotalMessages {
			t.Errorf("record %d deleted exceeds total", i)
		}
	}
}
