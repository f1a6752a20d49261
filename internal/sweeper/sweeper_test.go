package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/store"
	"github.com/sickleconnect/server/internal/store/sqlite"
)

func TestSweepOnceDeletesOnlyExpired(t *testing.T) {
	s, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	conv, err := s.FindOrCreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, "alice", "recent"); err != nil {
		t.Fatalf("append: %v", err)
	}

	logger := zerolog.Nop()
	sw := New(s, time.Hour, 24*time.Hour, &logger)
	sw.SweepOnce(ctx)

	msgs, err := s.RecentMessages(ctx, conv.ID, 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("recent message must survive the sweep, got %d messages", len(msgs))
	}
}

// failingStore counts sweep attempts and always fails.
type failingStore struct {
	store.ConversationStore
	calls atomic.Int64
}

func (f *failingStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.calls.Add(1)
	return 0, errors.New("disk on fire")
}

func TestSweepFailureDoesNotStopNextCycle(t *testing.T) {
	fs := &failingStore{}
	logger := zerolog.Nop()
	sw := New(fs, 10*time.Millisecond, 24*time.Hour, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fs.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not keep running after a failed sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
