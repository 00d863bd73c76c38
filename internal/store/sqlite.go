package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avolkov/chatter/internal/domain"
	"github.com/avolkov/chatter/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		profile_pic TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(user_id),
		receiver_id TEXT NOT NULL REFERENCES users(user_id),
		text TEXT,
		image TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, full_name, email, password_hash, profile_pic, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var profilePic interface{}
	if user.ProfilePic != "" {
		profilePic = user.ProfilePic
	}

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.FullName, user.Email, user.PasswordHash,
		profilePic, user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		if shared.IsSQLiteUniqueError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their user ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, full_name, email, password_hash, profile_pic, created_at, updated_at
		FROM users WHERE user_id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT user_id, full_name, email, password_hash, profile_pic, created_at, updated_at
		FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var profilePic sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &user.FullName, &user.Email, &user.PasswordHash,
		&profilePic, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.ProfilePic = profilePic.String
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpdateProfilePic replaces the profile picture URL for a user.
func (s *SQLiteStore) UpdateProfilePic(ctx context.Context, userID string, url string) error {
	query := `UPDATE users SET profile_pic = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, url, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update profile_pic: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// ListUsersExcept retrieves all users except the given one.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, userID string) ([]*domain.User, error) {
	query := `
		SELECT user_id, full_name, email, password_hash, profile_pic, created_at, updated_at
		FROM users WHERE user_id != ? ORDER BY full_name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close users rows", "error", closeErr)
		}
	}()

	var users []*domain.User
	for rows.Next() {
		var user domain.User
		var profilePic sql.NullString
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&user.UserID, &user.FullName, &user.Email, &user.PasswordHash,
			&profilePic, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}

		user.ProfilePic = profilePic.String
		user.CreatedAt = time.Unix(createdAt, 0)
		user.UpdatedAt = time.Unix(updatedAt, 0)
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// CreateMessage inserts a new message record.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors,
// since message inserts race with conversation reads under load.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.createMessageOnce(ctx, msg)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) {
			if i < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
				slog.Debug("CreateMessage failed with SQLITE_BUSY, retrying",
					"message_id", msg.MessageID,
					"attempt", i+1,
					"delay", delay)
				time.Sleep(delay)
				continue
			}
		}

		return fmt.Errorf("failed to insert message %s after %d attempts: %w", msg.MessageID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) createMessageOnce(ctx context.Context, msg *domain.Message) error {
	query := `
	INSERT INTO messages (message_id, sender_id, receiver_id, text, image, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	var text, image interface{}
	if msg.Text != "" {
		text = msg.Text
	}
	if msg.Image != "" {
		image = msg.Image
	}

	// Nanosecond precision keeps conversation order stable for messages
	// created within the same second.
	_, err := s.db.ExecContext(ctx, query,
		msg.MessageID, msg.SenderID, msg.ReceiverID, text, image, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetConversation retrieves all messages between two users ordered by creation time.
func (s *SQLiteStore) GetConversation(ctx context.Context, userID, partnerID string) ([]*domain.Message, error) {
	query := `
		SELECT message_id, sender_id, receiver_id, text, image, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at, message_id`

	rows, err := s.db.QueryContext(ctx, query, userID, partnerID, partnerID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	var msgs []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var text, image sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&msg.MessageID, &msg.SenderID, &msg.ReceiverID, &text, &image, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.Text = text.String
		msg.Image = image.String
		msg.CreatedAt = time.Unix(0, createdAt)
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation: %w", err)
	}

	return msgs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
