package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a community member.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         string // "patient" or "doctor"
	Genotype     string // empty for doctors
	AvatarURL    string
	CreatedAt    time.Time
}

// Post represents a feed post.
type Post struct {
	ID            string
	UserID        string
	Content       string
	ImageURL      string
	LikesCount    int
	CommentsCount int
	IsLiked       bool // whether the viewing user liked it; query-dependent
	CreatedAt     time.Time
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// Conversation is the two-party message thread. The participant pair is
// stored canonically (lexicographic lo/hi) and immutable after creation.
type Conversation struct {
	ID          int64
	UserLo      string
	UserHi      string
	LastMessage *LastMessage // nil until the first message
	CreatedAt   time.Time
}

// Participants returns both participant identities.
func (c *Conversation) Participants() []string {
	return []string{c.UserLo, c.UserHi}
}

// HasParticipant reports whether identity belongs to the conversation.
func (c *Conversation) HasParticipant(identity string) bool {
	return identity == c.UserLo || identity == c.UserHi
}

// Other returns the participant that is not identity.
func (c *Conversation) Other(identity string) string {
	if identity == c.UserLo {
		return c.UserHi
	}
	return c.UserLo
}

// LastMessage is the denormalized cache used for conversation-list rendering.
type LastMessage struct {
	Content  string
	SenderID string
	SentAt   time.Time
}

// Message belongs to exactly one conversation.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       string
	Content        string
	Read           bool
	CreatedAt      time.Time
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation
	UnreadCount int
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser persists a user; the caller assigns the id.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by id.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers lists all users except the given one, ordered by name.
	ListUsers(ctx context.Context, exceptID string) ([]*User, error)
}

// PostStore handles feed persistence.
type PostStore interface {
	// CreatePost persists a post; the caller assigns the id.
	CreatePost(ctx context.Context, post *Post) error

	// GetPostByID retrieves a post with its like/comment counts.
	// viewerID controls the IsLiked annotation and may be empty.
	GetPostByID(ctx context.Context, id, viewerID string) (*Post, error)

	// ListPosts lists all posts newest-first with counts and the viewer's
	// like annotation.
	ListPosts(ctx context.Context, viewerID string) ([]*Post, error)

	// DeletePost removes a post together with its likes and comments.
	DeletePost(ctx context.Context, id string) error

	// ToggleLike flips the like edge for (postID, userID) and returns the
	// new state plus the resulting like count.
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, likes int, err error)

	// AddComment persists a comment; the caller assigns the id.
	AddComment(ctx context.Context, comment *Comment) error

	// ListComments lists a post's comments oldest-first.
	ListComments(ctx context.Context, postID string) ([]*Comment, error)
}

// ConversationStore handles the ephemeral two-party message log.
type ConversationStore interface {
	// FindOrCreateConversation canonicalizes the unordered pair and returns
	// the existing conversation or a new empty one. FindOrCreateConversation(a,b)
	// and FindOrCreateConversation(b,a) return the same conversation.
	FindOrCreateConversation(ctx context.Context, a, b string) (*Conversation, error)

	// GetConversationByID retrieves a conversation or ErrNotFound.
	GetConversationByID(ctx context.Context, id int64) (*Conversation, error)

	// AppendMessage appends a message and updates the last-message cache in
	// the same transaction. Returns the stored message with id and timestamp.
	AppendMessage(ctx context.Context, conversationID int64, senderID, content string) (*Message, error)

	// RecentMessages returns the newest limit messages in chronological
	// (oldest-first) order.
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]*Message, error)

	// MarkMessagesRead flips read=true on every message in the conversation
	// not authored by readerID. Idempotent.
	MarkMessagesRead(ctx context.Context, conversationID int64, readerID string) error

	// ListConversationsForUser lists the user's conversations ordered by
	// last-message timestamp descending, each with its unread count.
	ListConversationsForUser(ctx context.Context, identity string) ([]*ConversationSummary, error)

	// DeleteMessagesBefore removes every message older than cutoff across
	// all conversations, leaving conversation shells intact. Returns the
	// number of deleted messages.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	PostStore
	ConversationStore

	// Close closes the underlying database connection.
	Close() error
}
