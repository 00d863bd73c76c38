// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/avolkov/chatter/internal/domain"
)

// ErrEmailTaken is returned by CreateUser when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Repository defines the interface for persisting user and message data.
type Repository interface {
	// CreateUser inserts a new user record. Returns ErrEmailTaken if the
	// email is already registered.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUserByID retrieves a user by their user ID. Returns nil, nil if
	// no such user exists.
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email. Returns nil, nil if no
	// such user exists.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateProfilePic replaces the profile picture URL for a user.
	UpdateProfilePic(ctx context.Context, userID string, url string) error

	// ListUsersExcept retrieves all users except the given one, for the
	// conversation sidebar.
	ListUsersExcept(ctx context.Context, userID string) ([]*domain.User, error)

	// CreateMessage inserts a new message record.
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// GetConversation retrieves all messages exchanged between two users,
	// in either direction, ordered by creation time.
	GetConversation(ctx context.Context, userID, partnerID string) ([]*domain.Message, error)

	// Ping verifies database connectivity and returns an error if the
	// database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
