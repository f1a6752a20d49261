package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sickleconnect/server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	full_name     TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'patient',
	genotype      TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	image_url  TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC);

CREATE TABLE IF NOT EXISTS post_likes (
	post_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS post_comments (
	id         TEXT PRIMARY KEY,
	post_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_post ON post_comments(post_id, created_at);

CREATE TABLE IF NOT EXISTS conversations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_lo        TEXT NOT NULL,
	user_hi        TEXT NOT NULL,
	last_content   TEXT,
	last_sender_id TEXT,
	last_at        DATETIME,
	created_at     DATETIME NOT NULL,
	UNIQUE (user_lo, user_hi)
);

CREATE TABLE IF NOT EXISTS conversation_messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL,
	sender_id       TEXT NOT NULL,
	content         TEXT NOT NULL,
	read            BOOLEAN NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conv_messages ON conversation_messages(conversation_id, id);
CREATE INDEX IF NOT EXISTS idx_conv_messages_created ON conversation_messages(created_at);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath and applies
// the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; this also totally orders
	// writes, which the conversation last-message cache relies on.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser persists a user; the caller assigns the id.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO users (id, full_name, email, password_hash, role, genotype, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.FullName, user.Email, user.PasswordHash,
		user.Role, user.Genotype, user.AvatarURL, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *SQLiteStore) getUser(ctx context.Context, column, value string) (*store.User, error) {
	query := fmt.Sprintf(`
		SELECT id, full_name, email, password_hash, role, genotype, avatar_url, created_at
		FROM users
		WHERE %s = ?
	`, column)

	var u store.User
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&u.ID, &u.FullName, &u.Email, &u.PasswordHash,
		&u.Role, &u.Genotype, &u.AvatarURL, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// ListUsers lists all users except the given one, ordered by name.
func (s *SQLiteStore) ListUsers(ctx context.Context, exceptID string) ([]*store.User, error) {
	query := `
		SELECT id, full_name, email, password_hash, role, genotype, avatar_url, created_at
		FROM users
		WHERE id <> ?
		ORDER BY full_name
	`
	rows, err := s.db.QueryContext(ctx, query, exceptID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var u store.User
		if err := rows.Scan(
			&u.ID, &u.FullName, &u.Email, &u.PasswordHash,
			&u.Role, &u.Genotype, &u.AvatarURL, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
