package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sickleconnect/server/internal/store"
)

const postColumns = `
	p.id, p.user_id, p.content, p.image_url, p.created_at,
	(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS likes_count,
	(SELECT COUNT(*) FROM post_comments c WHERE c.post_id = p.id) AS comments_count,
	EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = ?) AS is_liked
`

// CreatePost persists a post; the caller assigns the id.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *store.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, content, image_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, post.ID, post.UserID, post.Content, post.ImageURL, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPostByID retrieves a post with its counts and the viewer's like state.
func (s *SQLiteStore) GetPostByID(ctx context.Context, id, viewerID string) (*store.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = ?`

	var p store.Post
	err := s.db.QueryRowContext(ctx, query, viewerID, id).Scan(
		&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.CreatedAt,
		&p.LikesCount, &p.CommentsCount, &p.IsLiked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return &p, nil
}

// ListPosts lists all posts newest-first.
func (s *SQLiteStore) ListPosts(ctx context.Context, viewerID string) ([]*store.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p ORDER BY p.created_at DESC, p.id DESC`

	rows, err := s.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*store.Post, 0)
	for rows.Next() {
		var p store.Post
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.CreatedAt,
			&p.LikesCount, &p.CommentsCount, &p.IsLiked,
		); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// DeletePost removes a post together with its likes and comments.
func (s *SQLiteStore) DeletePost(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("delete post likes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_comments WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("delete post comments: %w", err)
	}

	return tx.Commit()
}

// ToggleLike flips the like edge for (postID, userID).
func (s *SQLiteStore) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE id = ?`, postID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, store.ErrNotFound
		}
		return false, 0, fmt.Errorf("query post: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM post_likes WHERE post_id = ? AND user_id = ?
	`, postID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("delete like: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("rows affected: %w", err)
	}

	liked := removed == 0
	if liked {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)
		`, postID, userID, time.Now().UTC())
		if err != nil {
			return false, 0, fmt.Errorf("insert like: %w", err)
		}
	}

	var likes int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id = ?`, postID).Scan(&likes)
	if err != nil {
		return false, 0, fmt.Errorf("count likes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit: %w", err)
	}
	return liked, likes, nil
}

// AddComment persists a comment; the caller assigns the id.
func (s *SQLiteStore) AddComment(ctx context.Context, comment *store.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, comment.ID, comment.PostID, comment.UserID, comment.Content, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListComments lists a post's comments oldest-first.
func (s *SQLiteStore) ListComments(ctx context.Context, postID string) ([]*store.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, content, created_at
		FROM post_comments
		WHERE post_id = ?
		ORDER BY created_at, id
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*store.Comment, 0)
	for rows.Next() {
		var c store.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}
