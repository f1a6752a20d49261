package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/core"
	"github.com/sickleconnect/server/internal/proto"
	"github.com/sickleconnect/server/internal/service/chat"
	"github.com/sickleconnect/server/internal/store"
)

// ChatHandlers provides HTTP handlers for direct conversations.
type ChatHandlers struct {
	chat     *chat.Service
	store    store.Store
	registry *core.Registry
	log      *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(chatService *chat.Service, st store.Store, registry *core.Registry, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		chat:     chatService,
		store:    st,
		registry: registry,
		log:      logger,
	}
}

// SendMessageRequest represents the message send request body.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChatUserView is a conversation participant in API responses.
type ChatUserView struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Genotype string `json:"genotype,omitempty"`
	Online   bool   `json:"online"`
}

// ConversationView is a conversation summary in API responses.
type ConversationView struct {
	ID          int64            `json:"id"`
	OtherUser   ChatUserView     `json:"other_user"`
	LastMessage *LastMessageView `json:"last_message,omitempty"`
	UnreadCount int              `json:"unread_count"`
	CreatedAt   time.Time        `json:"created_at"`
}

// LastMessageView is the cached latest message of a conversation.
type LastMessageView struct {
	Content    string    `json:"content"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// ListConversations returns the caller's conversations, most recent first.
// GET /api/chat/chats
func (h *ChatHandlers) ListConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	summaries, err := h.chat.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("list conversations failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	views := make([]ConversationView, 0, len(summaries))
	for _, s := range summaries {
		view, err := h.conversationView(c, userID, s)
		if err != nil {
			h.log.Error().Err(err).Int64("conversation_id", s.ID).Msg("build conversation view failed")
			continue
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"chats": views})
}

// OpenConversation finds or creates the conversation with another user and
// returns its recent messages.
// GET /api/chat/with/:userId
func (h *ChatHandlers) OpenConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	conv, messages, err := h.chat.OpenConversation(c.Request.Context(), userID, c.Param("userId"))
	if err != nil {
		h.writeChatError(c, err)
		return
	}

	views := make([]proto.MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, chat.MessageView(m))
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id":  conv.ID,
		"messages": views,
	})
}

// SendMessage appends a message to a conversation.
// POST /api/chat/:chatId/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), chatID, userID, req.Content)
	if err != nil {
		h.writeChatError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": chat.MessageView(msg)})
}

// MarkRead marks the other participant's messages as read.
// PUT /api/chat/:chatId/read
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat id"})
		return
	}

	if err := h.chat.MarkRead(c.Request.Context(), chatID, userID); err != nil {
		h.writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

// ListUsers returns all other users annotated with their online state.
// GET /api/chat/users
func (h *ChatHandlers) ListUsers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.store.ListUsers(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	views := make([]ChatUserView, 0, len(users))
	for _, u := range users {
		views = append(views, ChatUserView{
			ID:       u.ID,
			FullName: u.FullName,
			Role:     u.Role,
			Genotype: u.Genotype,
			Online:   h.registry.IsOnline(u.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

func (h *ChatHandlers) conversationView(c *gin.Context, userID string, s *store.ConversationSummary) (ConversationView, error) {
	otherID := s.Other(userID)
	other, err := h.store.GetUserByID(c.Request.Context(), otherID)
	if err != nil {
		return ConversationView{}, err
	}

	view := ConversationView{
		ID: s.ID,
		OtherUser: ChatUserView{
			ID:       other.ID,
			FullName: other.FullName,
			Role:     other.Role,
			Genotype: other.Genotype,
			Online:   h.registry.IsOnline(other.ID),
		},
		UnreadCount: s.UnreadCount,
		CreatedAt:   s.CreatedAt,
	}
	if s.LastMessage != nil {
		last := &LastMessageView{
			Content:  s.LastMessage.Content,
			SenderID: s.LastMessage.SenderID,
			SentAt:   s.LastMessage.SentAt,
		}
		if s.LastMessage.SenderID == userID {
			last.SenderName = "You"
		} else {
			last.SenderName = other.FullName
		}
		view.LastMessage = last
	}
	return view, nil
}

func (h *ChatHandlers) writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound), errors.Is(err, chat.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, chat.ErrContentTooLong),
		errors.Is(err, chat.ErrSelfConversation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Msg("chat operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
