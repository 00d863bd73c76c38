package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/avolkov/chatter/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "chatter.db"))
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close error: %v", err)
		}
	})
	return repo
}

func testUser(id, email string) *domain.User {
	now := time.Now()
	return &domain.User{
		UserID:       id,
		FullName:     "Test User " + id,
		Email:        email,
		PasswordHash: "$2a$10$notarealhashnotarealhashnotarealhash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, testUser("u1", "dup@example.com")); err != nil {
		t.Fatalf("first CreateUser error: %v", err)
	}

	err := repo.CreateUser(ctx, testUser("u2", "dup@example.com"))
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// The failed insert must not have created a second record.
	user, err := repo.GetUserByID(ctx, "u2")
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected no record for u2, got %+v", user)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	repo := newTestStore(t)

	user, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}

func TestUpdateProfilePic(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, testUser("u1", "u1@example.com")); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	if err := repo.UpdateProfilePic(ctx, "u1", "https://assets.example.com/u1.png"); err != nil {
		t.Fatalf("UpdateProfilePic error: %v", err)
	}

	user, err := repo.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if user.ProfilePic != "https://assets.example.com/u1.png" {
		t.Errorf("profile pic not persisted, got %q", user.ProfilePic)
	}

	if err := repo.UpdateProfilePic(ctx, "missing", "x"); err == nil {
		t.Error("expected error updating profile pic of unknown user")
	}
}

func TestListUsersExcept(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for _, u := range []*domain.User{
		testUser("u1", "u1@example.com"),
		testUser("u2", "u2@example.com"),
		testUser("u3", "u3@example.com"),
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error: %v", u.UserID, err)
		}
	}

	users, err := repo.ListUsersExcept(ctx, "u2")
	if err != nil {
		t.Fatalf("ListUsersExcept error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.UserID == "u2" {
			t.Errorf("caller u2 must be excluded from the sidebar list")
		}
	}
}

func TestGetConversation_OrderAndDirection(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for _, u := range []*domain.User{
		testUser("u1", "u1@example.com"),
		testUser("u2", "u2@example.com"),
		testUser("u3", "u3@example.com"),
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error: %v", u.UserID, err)
		}
	}

	base := time.Now().Add(-time.Hour)
	msgs := []*domain.Message{
		{MessageID: "m1", SenderID: "u1", ReceiverID: "u2", Text: "hi", CreatedAt: base},
		{MessageID: "m2", SenderID: "u2", ReceiverID: "u1", Text: "hey", CreatedAt: base.Add(time.Second)},
		{MessageID: "m3", SenderID: "u1", ReceiverID: "u3", Text: "other thread", CreatedAt: base.Add(2 * time.Second)},
		{MessageID: "m4", SenderID: "u1", ReceiverID: "u2", Text: "how are you", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, m := range msgs {
		if err := repo.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage(%s) error: %v", m.MessageID, err)
		}
	}

	conv, err := repo.GetConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("GetConversation error: %v", err)
	}

	want := []string{"m1", "m2", "m4"}
	if len(conv) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(conv))
	}
	for i, id := range want {
		if conv[i].MessageID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, conv[i].MessageID)
		}
		if !conv[i].IsBetween("u1", "u2") {
			t.Errorf("message %s does not belong to the u1/u2 conversation", conv[i].MessageID)
		}
	}
}
