// Package feed implements the post/like/comment operations. Mutations
// persist first and broadcast to every connected client afterwards.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/proto"
	"github.com/sickleconnect/server/internal/service/chat"
	"github.com/sickleconnect/server/internal/store"
)

// Content bounds, in runes.
const (
	MaxPostLength    = 1000
	MaxCommentLength = 500
)

// Common errors for feed operations.
var (
	ErrPostNotFound   = errors.New("post not found")
	ErrEmptyContent   = errors.New("content is required")
	ErrContentTooLong = errors.New("content too long")
	ErrNotAuthor      = errors.New("only the author can delete a post")
)

// Service provides feed business logic.
type Service struct {
	store     store.Store
	broadcast chat.Broadcaster
	log       *zerolog.Logger
}

// New creates a feed service.
func New(st store.Store, broadcast chat.Broadcaster, logger *zerolog.Logger) *Service {
	return &Service{
		store:     st,
		broadcast: broadcast,
		log:       logger,
	}
}

// CreatePost validates and persists a post, then announces it to every
// connected client.
func (s *Service) CreatePost(ctx context.Context, userID, content, imageURL string) (*store.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return nil, ErrContentTooLong
	}

	author, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}

	post := &store.Post{
		ID:       uuid.NewString(),
		UserID:   userID,
		Content:  content,
		ImageURL: imageURL,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.broadcast.BroadcastToAll(proto.Envelope{
		Type: proto.EventNewPost,
		Data: proto.NewPostData{
			Post:       PostView(post, author),
			AuthorName: author.FullName,
		},
	})

	return post, nil
}

// ListPosts returns the feed, newest first, annotated for the viewer.
func (s *Service) ListPosts(ctx context.Context, viewerID string) ([]*store.Post, error) {
	posts, err := s.store.ListPosts(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ToggleLike flips the user's like on the post and announces the new state.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (liked bool, likes int, err error) {
	liked, likes, err = s.store.ToggleLike(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, 0, ErrPostNotFound
		}
		return false, 0, fmt.Errorf("toggle like: %w", err)
	}

	userName := userID
	if user, userErr := s.store.GetUserByID(ctx, userID); userErr == nil {
		userName = user.FullName
	}

	s.broadcast.BroadcastToAll(proto.Envelope{
		Type: proto.EventPostLiked,
		Data: proto.PostLikedData{
			PostID:     postID,
			UserID:     userID,
			UserName:   userName,
			LikesCount: likes,
			IsLiked:    liked,
		},
	})

	return liked, likes, nil
}

// AddComment validates and persists a comment, then announces it.
func (s *Service) AddComment(ctx context.Context, postID, userID, content string) (*store.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, ErrContentTooLong
	}

	if _, err := s.store.GetPostByID(ctx, postID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	comment := &store.Comment{
		ID:      uuid.NewString(),
		PostID:  postID,
		UserID:  userID,
		Content: content,
	}
	if err := s.store.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	userName := userID
	if user, userErr := s.store.GetUserByID(ctx, userID); userErr == nil {
		userName = user.FullName
	}

	s.broadcast.BroadcastToAll(proto.Envelope{
		Type: proto.EventNewComment,
		Data: proto.NewCommentData{
			PostID:    postID,
			CommentID: comment.ID,
			UserID:    userID,
			UserName:  userName,
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		},
	})

	return comment, nil
}

// ListComments returns a post's comments oldest-first.
func (s *Service) ListComments(ctx context.Context, postID string) ([]*store.Comment, error) {
	if _, err := s.store.GetPostByID(ctx, postID, ""); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// DeletePost removes the author's own post and announces the deletion.
func (s *Service) DeletePost(ctx context.Context, postID, userID string) error {
	post, err := s.store.GetPostByID(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("get post: %w", err)
	}
	if post.UserID != userID {
		return ErrNotAuthor
	}

	if err := s.store.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	s.broadcast.BroadcastToAll(proto.Envelope{
		Type: proto.EventPostDeleted,
		Data: proto.PostDeletedData{PostID: postID},
	})

	return nil
}

// PostView maps a stored post and its author onto the wire shape.
func PostView(p *store.Post, author *store.User) proto.PostView {
	view := proto.PostView{
		ID:            p.ID,
		UserID:        p.UserID,
		Content:       p.Content,
		ImageURL:      p.ImageURL,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		IsLiked:       p.IsLiked,
		CreatedAt:     p.CreatedAt,
	}
	if author != nil {
		view.Profiles = proto.AuthorProfile{
			FullName: author.FullName,
			Role:     author.Role,
			Genotype: author.Genotype,
		}
	}
	return view
}
