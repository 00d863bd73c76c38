// Package auth implements the session service: signup, login, logout,
// profile update, and the authenticated identity check.
package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avolkov/chatter/internal/api"
	"github.com/avolkov/chatter/internal/assets"
	"github.com/avolkov/chatter/internal/domain"
	"github.com/avolkov/chatter/internal/store"
	"github.com/avolkov/chatter/internal/token"
)

const minPasswordLength = 6

// Handler serves the session endpoints.
type Handler struct {
	repo     store.Repository
	uploader assets.Uploader
	secret   []byte
	tokenTTL time.Duration
	isDev    bool
}

// NewHandler creates a new session handler.
func NewHandler(repo store.Repository, uploader assets.Uploader, secret []byte, tokenTTL time.Duration, isDev bool) *Handler {
	return &Handler{
		repo:     repo,
		uploader: uploader,
		secret:   secret,
		tokenTTL: tokenTTL,
		isDev:    isDev,
	}
}

// RegisterRoutes mounts the public and authenticated session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.repo, h.secret))
		r.Put("/profile", h.UpdateProfile)
		r.Get("/check", h.Check)
	})
}

type signupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new account and issues a session cookie.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FullName == "" || req.Email == "" || req.Password == "" {
		api.Error(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		api.Error(w, http.StatusBadRequest, "password must be at least 6 characters long")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		api.Internal(w)
		return
	}

	now := time.Now()
	user := &domain.User{
		UserID:       uuid.NewString(),
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			api.Error(w, http.StatusBadRequest, "user already exists")
			return
		}
		slog.Error("Failed to create user", "error", err)
		api.Internal(w)
		return
	}

	if err := h.issueSession(w, user.UserID); err != nil {
		slog.Error("Failed to issue session", "error", err, "user_id", user.UserID)
		api.Internal(w)
		return
	}

	slog.Info("User registered", "user_id", user.UserID)
	api.JSON(w, http.StatusCreated, user.Summary())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and issues a session cookie. Unknown emails and
// wrong passwords produce the same response so the error kind leaks nothing.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Failed to look up user", "error", err)
		api.Internal(w)
		return
	}
	if user == nil {
		api.Error(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	if err := h.issueSession(w, user.UserID); err != nil {
		slog.Error("Failed to issue session", "error", err, "user_id", user.UserID)
		api.Internal(w)
		return
	}

	api.JSON(w, http.StatusOK, user.Summary())
}

// Logout clears the session cookie. The token itself is not revoked.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, h.isDev)
	api.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type updateProfileRequest struct {
	ProfilePic string `json:"profile_pic"`
}

// UpdateProfile uploads a new profile picture to the asset store and persists
// its URL on the user record.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfilePic == "" {
		api.Error(w, http.StatusBadRequest, "profile picture is required")
		return
	}

	url, err := h.uploader.Upload(r.Context(), req.ProfilePic)
	if err != nil {
		slog.Error("Failed to upload profile picture", "error", err, "user_id", user.UserID)
		api.Internal(w)
		return
	}

	if err := h.repo.UpdateProfilePic(r.Context(), user.UserID, url); err != nil {
		slog.Error("Failed to persist profile picture", "error", err, "user_id", user.UserID)
		api.Internal(w)
		return
	}

	summary := user.Summary()
	summary.ProfilePic = url
	api.JSON(w, http.StatusOK, summary)
}

// Check returns the identity of the authenticated caller.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	api.JSON(w, http.StatusOK, user.Summary())
}

func (h *Handler) issueSession(w http.ResponseWriter, userID string) error {
	t, err := token.Generate(userID, h.secret, h.tokenTTL)
	if err != nil {
		return err
	}
	setSessionCookie(w, t, h.tokenTTL, h.isDev)
	return nil
}
