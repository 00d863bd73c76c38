// Package messages serves the conversation endpoints: the user sidebar, the
// per-partner message history, and message sending with real-time fanout.
package messages

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avolkov/chatter/internal/api"
	"github.com/avolkov/chatter/internal/assets"
	"github.com/avolkov/chatter/internal/auth"
	"github.com/avolkov/chatter/internal/domain"
	"github.com/avolkov/chatter/internal/realtime"
	"github.com/avolkov/chatter/internal/store"
)

// Handler serves the message endpoints.
type Handler struct {
	repo     store.Repository
	uploader assets.Uploader
	hub      *realtime.Hub
}

// NewHandler creates a new message handler.
func NewHandler(repo store.Repository, uploader assets.Uploader, hub *realtime.Hub) *Handler {
	return &Handler{repo: repo, uploader: uploader, hub: hub}
}

// RegisterRoutes mounts the message routes. All of them require a session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages/users", h.ListUsers)
	r.Get("/messages/{userID}", h.GetConversation)
	r.Post("/messages/send/{userID}", h.Send)
}

// ListUsers returns every user except the caller, for the sidebar.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	users, err := h.repo.ListUsersExcept(r.Context(), caller.UserID)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		api.Internal(w)
		return
	}

	summaries := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	api.JSON(w, http.StatusOK, summaries)
}

// GetConversation returns the full message history with the given partner.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	partnerID := chi.URLParam(r, "userID")

	msgs, err := h.repo.GetConversation(r.Context(), caller.UserID, partnerID)
	if err != nil {
		slog.Error("Failed to load conversation", "error", err, "partner_id", partnerID)
		api.Internal(w)
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	api.JSON(w, http.StatusOK, msgs)
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Send persists a new message to the partner and pushes it to the partner's
// live connections as a newMessage event.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	partnerID := chi.URLParam(r, "userID")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" && req.Image == "" {
		api.Error(w, http.StatusBadRequest, "message text or image is required")
		return
	}

	partner, err := h.repo.GetUserByID(r.Context(), partnerID)
	if err != nil {
		slog.Error("Failed to look up partner", "error", err, "partner_id", partnerID)
		api.Internal(w)
		return
	}
	if partner == nil {
		api.Error(w, http.StatusNotFound, "user not found")
		return
	}

	var imageURL string
	if req.Image != "" {
		imageURL, err = h.uploader.Upload(r.Context(), req.Image)
		if err != nil {
			slog.Error("Failed to upload message image", "error", err, "user_id", caller.UserID)
			api.Internal(w)
			return
		}
	}

	msg := &domain.Message{
		MessageID:  uuid.NewString(),
		SenderID:   caller.UserID,
		ReceiverID: partner.UserID,
		Text:       req.Text,
		Image:      imageURL,
		CreatedAt:  time.Now(),
	}

	if err := h.repo.CreateMessage(r.Context(), msg); err != nil {
		slog.Error("Failed to store message", "error", err, "message_id", msg.MessageID)
		api.Internal(w)
		return
	}

	h.hub.SendToUser(r.Context(), partner.UserID, realtime.EventNewMessage, msg)

	api.JSON(w, http.StatusCreated, msg)
}
