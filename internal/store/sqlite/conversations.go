package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sickleconnect/server/internal/store"
)

// canonicalPair orders two identities lexicographically so that the pair
// (a,b) and (b,a) map onto the same conversation row.
func canonicalPair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// FindOrCreateConversation canonicalizes the unordered pair and returns the
// existing conversation or a newly created empty one.
func (s *SQLiteStore) FindOrCreateConversation(ctx context.Context, a, b string) (*store.Conversation, error) {
	lo, hi := canonicalPair(a, b)

	// The UNIQUE(user_lo, user_hi) constraint makes the insert a no-op when
	// the conversation already exists, regardless of argument order.
	insert := `
		INSERT INTO conversations (user_lo, user_hi, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_lo, user_hi) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, lo, hi, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	query := `
		SELECT id, user_lo, user_hi, last_content, last_sender_id, last_at, created_at
		FROM conversations
		WHERE user_lo = ? AND user_hi = ?
	`
	conv, err := s.scanConversation(s.db.QueryRowContext(ctx, query, lo, hi))
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return conv, nil
}

// GetConversationByID retrieves a conversation or store.ErrNotFound.
func (s *SQLiteStore) GetConversationByID(ctx context.Context, id int64) (*store.Conversation, error) {
	query := `
		SELECT id, user_lo, user_hi, last_content, last_sender_id, last_at, created_at
		FROM conversations
		WHERE id = ?
	`
	conv, err := s.scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return conv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanConversation(row rowScanner) (*store.Conversation, error) {
	var (
		conv       store.Conversation
		lastContent sql.NullString
		lastSender sql.NullString
		lastAt     sql.NullTime
	)
	err := row.Scan(&conv.ID, &conv.UserLo, &conv.UserHi, &lastContent, &lastSender, &lastAt, &conv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastAt.Valid {
		conv.LastMessage = &store.LastMessage{
			Content:  lastContent.String,
			SenderID: lastSender.String,
			SentAt:   lastAt.Time,
		}
	}
	return &conv, nil
}

// AppendMessage appends a message and updates the conversation's last-message
// cache atomically. Both change together or neither does.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID int64, senderID, content string) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (conversation_id, sender_id, content, read, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, conversationID, senderID, content, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_content = ?, last_sender_id = ?, last_at = ?
		WHERE id = ?
	`, content, senderID, now, conversationID)
	if err != nil {
		return nil, fmt.Errorf("update last message cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &store.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Read:           false,
		CreatedAt:      now,
	}, nil
}

// RecentMessages returns the newest limit messages in chronological order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Take the newest limit rows, then restore chronological order.
	query := `
		SELECT id, conversation_id, sender_id, content, read, created_at
		FROM (
			SELECT id, conversation_id, sender_id, content, read, created_at
			FROM conversation_messages
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// MarkMessagesRead flips read=true on every message not authored by readerID.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, conversationID int64, readerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversation_messages
		SET read = 1
		WHERE conversation_id = ? AND sender_id <> ? AND read = 0
	`, conversationID, readerID)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// ListConversationsForUser lists conversations with identity as a
// participant, newest activity first, each with its unread count.
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, identity string) ([]*store.ConversationSummary, error) {
	query := `
		SELECT c.id, c.user_lo, c.user_hi, c.last_content, c.last_sender_id, c.last_at, c.created_at,
			(SELECT COUNT(*) FROM conversation_messages m
			 WHERE m.conversation_id = c.id AND m.sender_id <> ? AND m.read = 0) AS unread
		FROM conversations c
		WHERE c.user_lo = ? OR c.user_hi = ?
		ORDER BY c.last_at IS NULL, c.last_at DESC, c.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, identity, identity, identity)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]*store.ConversationSummary, 0)
	for rows.Next() {
		var (
			sum        store.ConversationSummary
			lastContent sql.NullString
			lastSender sql.NullString
			lastAt     sql.NullTime
		)
		if err := rows.Scan(
			&sum.ID, &sum.UserLo, &sum.UserHi,
			&lastContent, &lastSender, &lastAt,
			&sum.CreatedAt, &sum.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if lastAt.Valid {
			sum.LastMessage = &store.LastMessage{
				Content:  lastContent.String,
				SenderID: lastSender.String,
				SentAt:   lastAt.Time,
			}
		}
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

// DeleteMessagesBefore removes all messages older than cutoff, leaving the
// conversation shells intact.
func (s *SQLiteStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_messages WHERE created_at < ?
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
