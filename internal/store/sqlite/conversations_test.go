package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sickleconnect/server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFindOrCreateConversationCanonicalPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ab, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	ba, err := s.FindOrCreateConversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("find or create reversed: %v", err)
	}

	if ab.ID != ba.ID {
		t.Fatalf("pair order must not matter: got ids %d and %d", ab.ID, ba.ID)
	}
	if !ab.HasParticipant("alice") || !ab.HasParticipant("bob") {
		t.Fatalf("unexpected participants: %s/%s", ab.UserLo, ab.UserHi)
	}
	if ab.LastMessage != nil {
		t.Fatal("new conversation must have no last message")
	}
}

func TestAppendMessageUpdatesCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}

	msg, err := s.AppendMessage(ctx, conv.ID, "alice", "hello")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ID == 0 || msg.CreatedAt.IsZero() {
		t.Fatalf("message must carry assigned id and timestamp: %+v", msg)
	}
	if msg.Read {
		t.Fatal("new message must start unread")
	}

	got, err := s.GetConversationByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.LastMessage == nil {
		t.Fatal("last message cache not updated")
	}
	if got.LastMessage.Content != "hello" || got.LastMessage.SenderID != "alice" {
		t.Fatalf("cache mismatch: %+v", got.LastMessage)
	}
	if !got.LastMessage.SentAt.Equal(msg.CreatedAt) {
		t.Fatalf("cache timestamp %v != message timestamp %v", got.LastMessage.SentAt, msg.CreatedAt)
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendMessage(context.Background(), 999, "alice", "hi")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentMessagesWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		if _, err := s.AppendMessage(ctx, conv.ID, "alice", c); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	recent, err := s.RecentMessages(ctx, conv.ID, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(recent))
	}
	// Newest three, oldest-first.
	want := []string{"three", "four", "five"}
	for i, m := range recent {
		if m.Content != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], m.Content)
		}
	}
}

func TestMarkMessagesReadIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, "alice", "from alice"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, "bob", "from bob"); err != nil {
		t.Fatalf("append: %v", err)
	}

	readState := func() map[string]bool {
		msgs, err := s.RecentMessages(ctx, conv.ID, 50)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		state := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			state[m.Content] = m.Read
		}
		return state
	}

	if err := s.MarkMessagesRead(ctx, conv.ID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	first := readState()
	if !first["from alice"] {
		t.Fatal("alice's message should be read after bob's sweep")
	}
	if first["from bob"] {
		t.Fatal("bob's own message must not be marked read")
	}

	// Second application yields the same state.
	if err := s.MarkMessagesRead(ctx, conv.ID, "bob"); err != nil {
		t.Fatalf("mark read twice: %v", err)
	}
	second := readState()
	if second["from alice"] != first["from alice"] || second["from bob"] != first["from bob"] {
		t.Fatalf("mark read is not idempotent: %v then %v", first, second)
	}
}

func TestListConversationsForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withBob, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	withCarol, err := s.FindOrCreateConversation(ctx, "alice", "carol")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	// A conversation alice is not part of.
	if _, err := s.FindOrCreateConversation(ctx, "bob", "carol"); err != nil {
		t.Fatalf("find or create: %v", err)
	}

	if _, err := s.AppendMessage(ctx, withBob.ID, "bob", "hi alice"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendMessage(ctx, withBob.ID, "bob", "are you there"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendMessage(ctx, withCarol.ID, "carol", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, err := s.ListConversationsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}

	// Carol's conversation has the newest message, so it sorts first.
	if list[0].ID != withCarol.ID || list[1].ID != withBob.ID {
		t.Fatalf("unexpected order: %d then %d", list[0].ID, list[1].ID)
	}
	if list[0].UnreadCount != 1 {
		t.Fatalf("expected 1 unread from carol, got %d", list[0].UnreadCount)
	}
	if list[1].UnreadCount != 2 {
		t.Fatalf("expected 2 unread from bob, got %d", list[1].UnreadCount)
	}

	// Reading bob's conversation drops its unread count to zero.
	if err := s.MarkMessagesRead(ctx, withBob.ID, "alice"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	list, err = s.ListConversationsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[1].UnreadCount != 0 {
		t.Fatalf("expected 0 unread after read sweep, got %d", list[1].UnreadCount)
	}
}

func TestDeleteMessagesBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}

	old, err := s.AppendMessage(ctx, conv.ID, "alice", "old")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// Age the first message beyond the cutoff.
	aged := time.Now().UTC().Add(-25 * time.Hour)
	if _, err := s.db.ExecContext(ctx, `UPDATE conversation_messages SET created_at = ? WHERE id = ?`, aged, old.ID); err != nil {
		t.Fatalf("age message: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, "bob", "fresh"); err != nil {
		t.Fatalf("append: %v", err)
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	n, err := s.DeleteMessagesBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted message, got %d", n)
	}

	msgs, err := s.RecentMessages(ctx, conv.ID, 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "fresh" {
		t.Fatalf("expected only the fresh message, got %+v", msgs)
	}
}

func TestConversationShellSurvivesFullExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	msg, err := s.AppendMessage(ctx, conv.ID, "alice", "ephemeral")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	aged := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := s.db.ExecContext(ctx, `UPDATE conversation_messages SET created_at = ? WHERE id = ?`, aged, msg.ID); err != nil {
		t.Fatalf("age message: %v", err)
	}

	if _, err := s.DeleteMessagesBefore(ctx, time.Now().UTC().Add(-24*time.Hour)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	msgs, err := s.RecentMessages(ctx, conv.ID, 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty conversation, got %d messages", len(msgs))
	}

	// The conversation is still there and still listable.
	if _, err := s.GetConversationByID(ctx, conv.ID); err != nil {
		t.Fatalf("conversation shell should survive: %v", err)
	}
	list, err := s.ListConversationsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != conv.ID {
		t.Fatalf("conversation should remain listable, got %d entries", len(list))
	}
}
