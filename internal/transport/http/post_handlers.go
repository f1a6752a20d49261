package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/proto"
	"github.com/sickleconnect/server/internal/service/feed"
	"github.com/sickleconnect/server/internal/store"
)

// PostHandlers provides HTTP handlers for the community feed.
type PostHandlers struct {
	feed  *feed.Service
	store store.Store
	log   *zerolog.Logger
}

// NewPostHandlers creates a new post handlers instance.
func NewPostHandlers(feedService *feed.Service, st store.Store, logger *zerolog.Logger) *PostHandlers {
	return &PostHandlers{
		feed:  feedService,
		store: st,
		log:   logger,
	}
}

// CreatePostRequest represents the post creation request body.
type CreatePostRequest struct {
	Content  string `json:"content" binding:"required"`
	ImageURL string `json:"image_url"`
}

// AddCommentRequest represents the comment creation request body.
type AddCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListPosts returns the feed, newest first.
// GET /api/posts
func (h *PostHandlers) ListPosts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	posts, err := h.feed.ListPosts(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("list posts failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	authors, err := h.authorIndex(c)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	views := make([]proto.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, feed.PostView(p, authors[p.UserID]))
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

// CreatePost creates a new feed post.
// POST /api/posts
func (h *PostHandlers) CreatePost(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	post, err := h.feed.CreatePost(c.Request.Context(), userID, req.Content, req.ImageURL)
	if err != nil {
		h.writeFeedError(c, err)
		return
	}

	author, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("get author failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": feed.PostView(post, author)})
}

// ToggleLike likes or unlikes a post.
// POST /api/posts/:postId/like
func (h *PostHandlers) ToggleLike(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	liked, likes, err := h.feed.ToggleLike(c.Request.Context(), c.Param("postId"), userID)
	if err != nil {
		h.writeFeedError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_liked": liked, "likes_count": likes})
}

// ListComments returns a post's comments, oldest first.
// GET /api/posts/:postId/comments
func (h *PostHandlers) ListComments(c *gin.Context) {
	comments, err := h.feed.ListComments(c.Request.Context(), c.Param("postId"))
	if err != nil {
		h.writeFeedError(c, err)
		return
	}

	authors, err := h.authorIndex(c)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	type commentView struct {
		ID        string    `json:"id"`
		PostID    string    `json:"post_id"`
		UserID    string    `json:"user_id"`
		UserName  string    `json:"user_name"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
	views := make([]commentView, 0, len(comments))
	for _, cm := range comments {
		name := ""
		if author := authors[cm.UserID]; author != nil {
			name = author.FullName
		}
		views = append(views, commentView{
			ID:        cm.ID,
			PostID:    cm.PostID,
			UserID:    cm.UserID,
			UserName:  name,
			Content:   cm.Content,
			CreatedAt: cm.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"comments": views})
}

// AddComment adds a comment to a post.
// POST /api/posts/:postId/comments
func (h *PostHandlers) AddComment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	comment, err := h.feed.AddComment(c.Request.Context(), c.Param("postId"), userID, req.Content)
	if err != nil {
		h.writeFeedError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// DeletePost deletes the caller's own post.
// DELETE /api/posts/:postId
func (h *PostHandlers) DeletePost(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.feed.DeletePost(c.Request.Context(), c.Param("postId"), userID); err != nil {
		h.writeFeedError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// authorIndex loads all users keyed by id for response assembly.
func (h *PostHandlers) authorIndex(c *gin.Context) (map[string]*store.User, error) {
	users, err := h.store.ListUsers(c.Request.Context(), "")
	if err != nil {
		return nil, err
	}
	index := make(map[string]*store.User, len(users))
	for _, u := range users {
		index[u.ID] = u
	}
	return index, nil
}

func (h *PostHandlers) writeFeedError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feed.ErrPostNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, feed.ErrEmptyContent), errors.Is(err, feed.ErrContentTooLong):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, feed.ErrNotAuthor):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Msg("feed operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
