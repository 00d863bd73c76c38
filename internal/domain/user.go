// Package domain contains core domain types for the Chatter application.
package domain

import (
	"time"
)

// User represents a registered account. PasswordHash is never serialized.
type User struct {
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePic   string    `json:"profile_pic,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSummary is the wire-safe view of a user returned by the API.
type UserSummary struct {
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profile_pic,omitempty"`
}

// Summary returns the wire-safe view of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		UserID:     u.UserID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}
