// Package chat implements the two-party conversation operations the HTTP
// layer drives: open, send, mark read, list. Every mutation commits to the
// store first; the realtime broadcast happens after the commit and its
// failure never propagates back to the caller.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/proto"
	"github.com/sickleconnect/server/internal/store"
)

// MaxMessageLength bounds message content, in runes.
const MaxMessageLength = 1000

// Common errors for conversation operations.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotParticipant       = errors.New("sender is not a participant")
	ErrEmptyContent         = errors.New("message content is required")
	ErrContentTooLong       = errors.New("message content too long")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
)

// Broadcaster pushes envelopes to connected clients.
type Broadcaster interface {
	BroadcastToAll(env proto.Envelope)
	BroadcastToUsers(identities []string, env proto.Envelope)
}

// Service provides conversation business logic.
type Service struct {
	store     store.Store
	broadcast Broadcaster
	log       *zerolog.Logger
}

// New creates a chat service.
func New(st store.Store, broadcast Broadcaster, logger *zerolog.Logger) *Service {
	return &Service{
		store:     st,
		broadcast: broadcast,
		log:       logger,
	}
}

// OpenConversation finds or creates the conversation between userID and
// otherID and returns it together with its recent message window.
func (s *Service) OpenConversation(ctx context.Context, userID, otherID string) (*store.Conversation, []*store.Message, error) {
	if userID == otherID {
		return nil, nil, ErrSelfConversation
	}
	if _, err := s.store.GetUserByID(ctx, otherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	conv, err := s.store.FindOrCreateConversation(ctx, userID, otherID)
	if err != nil {
		return nil, nil, fmt.Errorf("find or create conversation: %w", err)
	}

	messages, err := s.store.RecentMessages(ctx, conv.ID, 50)
	if err != nil {
		return nil, nil, fmt.Errorf("recent messages: %w", err)
	}
	return conv, messages, nil
}

// SendMessage validates, persists and then broadcasts a message to both
// participants. The message is considered sent once it is durably stored.
func (s *Service) SendMessage(ctx context.Context, conversationID int64, senderID, content string) (*store.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrContentTooLong
	}

	conv, err := s.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	msg, err := s.store.AppendMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	senderName := senderID
	if sender, err := s.store.GetUserByID(ctx, senderID); err == nil {
		senderName = sender.FullName
	}

	s.broadcast.BroadcastToUsers(conv.Participants(), proto.Envelope{
		Type: proto.EventNewMessage,
		Data: proto.NewMessageData{
			ChatID:     conv.ID,
			Message:    MessageView(msg),
			SenderName: senderName,
		},
	})

	return msg, nil
}

// MarkRead flips every message in the conversation not authored by readerID
// to read. Idempotent.
func (s *Service) MarkRead(ctx context.Context, conversationID int64, readerID string) error {
	conv, err := s.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(readerID) {
		return ErrNotParticipant
	}

	if err := s.store.MarkMessagesRead(ctx, conversationID, readerID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// ListConversations returns the user's conversation summaries, newest
// activity first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*store.ConversationSummary, error) {
	list, err := s.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return list, nil
}

// MessageView maps a stored message onto its wire shape.
func MessageView(m *store.Message) proto.MessageView {
	return proto.MessageView{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.CreatedAt,
		Read:      m.Read,
	}
}
