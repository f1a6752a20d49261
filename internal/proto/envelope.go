package proto

import "time"

// Event types pushed over the realtime channel.
const (
	EventConnectionEstablished = "connection_established"
	EventNewPost               = "new_post"
	EventPostLiked             = "post_liked"
	EventNewComment            = "new_comment"
	EventPostDeleted           = "post_deleted"
	EventNewMessage            = "new_message"
	EventUserOnline            = "user_online"
	EventUserOffline           = "user_offline"
)

// Envelope is the wire unit delivered to connected clients.
// It is built by a handler, serialized once by the broadcaster and discarded.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ConnectionEstablishedData is pushed immediately after the handshake.
type ConnectionEstablishedData struct {
	Message string `json:"message"`
}

// AuthorProfile is the denormalized author info attached to feed payloads.
type AuthorProfile struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Genotype string `json:"genotype,omitempty"`
}

// PostView is the post shape shared by REST responses and broadcast payloads.
type PostView struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Content       string        `json:"content"`
	ImageURL      string        `json:"image_url,omitempty"`
	LikesCount    int           `json:"likes_count"`
	CommentsCount int           `json:"comments_count"`
	IsLiked       bool          `json:"is_liked"`
	CreatedAt     time.Time     `json:"created_at"`
	Profiles      AuthorProfile `json:"profiles"`
}

// NewPostData announces a freshly created post to every client.
type NewPostData struct {
	Post       PostView `json:"post"`
	AuthorName string   `json:"authorName"`
}

// PostLikedData announces a like toggle. IsLiked reflects the new state.
type PostLikedData struct {
	PostID     string `json:"postId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	LikesCount int    `json:"likesCount"`
	IsLiked    bool   `json:"isLiked"`
}

// NewCommentData announces a comment added to a post.
type NewCommentData struct {
	PostID    string    `json:"postId"`
	CommentID string    `json:"commentId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostDeletedData announces that a post was removed by its author.
type PostDeletedData struct {
	PostID string `json:"postId"`
}

// MessageView is the message shape shared by REST responses and broadcasts.
type MessageView struct {
	ID        int64     `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// NewMessageData is delivered to both conversation participants.
type NewMessageData struct {
	ChatID     int64       `json:"chatId"`
	Message    MessageView `json:"message"`
	SenderName string      `json:"senderName"`
}

// PresenceData announces a user going online or offline.
type PresenceData struct {
	UserID string `json:"userId"`
}
