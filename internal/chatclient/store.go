package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/avolkov/chatter/internal/domain"
	"github.com/avolkov/chatter/internal/realtime"
)

// ErrNoPartnerSelected is returned by SendMessage when no conversation is
// active. No network call is made in that case.
var ErrNoPartnerSelected = errors.New("no conversation partner selected")

// Service is the slice of the API the conversation store needs.
type Service interface {
	Users(ctx context.Context) ([]domain.UserSummary, error)
	Messages(ctx context.Context, partnerID string) ([]domain.Message, error)
	Send(ctx context.Context, partnerID string, payload SendPayload) (*domain.Message, error)
}

// Notifier surfaces transient, user-visible failures (the toast equivalent).
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// Notify calls the function.
func (f NotifierFunc) Notify(message string) { f(message) }

func logNotifier(message string) { slog.Warn("Chat notification", "message", message) }

// Store holds the client-side conversation state: the user list, the selected
// partner, and the message history of the active conversation. All mutations
// go through its methods; completion writes are guarded by a request
// generation so a stale fetch can never clobber a newer one.
type Store struct {
	svc      Service
	channel  EventChannel
	notifier Notifier

	mu              sync.Mutex
	users           []domain.UserSummary
	selected        *domain.UserSummary
	messages        []domain.Message
	usersLoading    bool
	messagesLoading bool
	msgGen          uint64
}

// NewStore creates a conversation store. notifier may be nil, in which case
// failures are logged.
func NewStore(svc Service, channel EventChannel, notifier Notifier) *Store {
	if notifier == nil {
		notifier = NotifierFunc(logNotifier)
	}
	return &Store{svc: svc, channel: channel, notifier: notifier}
}

// LoadUsers fetches the sidebar user list. The loading flag is set for the
// duration of the fetch and cleared on every outcome.
func (s *Store) LoadUsers(ctx context.Context) {
	s.mu.Lock()
	s.usersLoading = true
	s.mu.Unlock()

	users, err := s.svc.Users(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersLoading = false
	if err != nil {
		s.notifier.Notify("error fetching users")
		return
	}
	s.users = users
}

// LoadMessages fetches the conversation with the given partner. The result is
// applied only if this is still the newest message request and the partner is
// still the selected one; stale completions are discarded silently.
func (s *Store) LoadMessages(ctx context.Context, partnerID string) {
	s.mu.Lock()
	s.messagesLoading = true
	s.msgGen++
	gen := s.msgGen
	s.mu.Unlock()

	msgs, err := s.svc.Messages(ctx, partnerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.msgGen {
		// A newer request owns the flag and the list now.
		return
	}
	s.messagesLoading = false
	if err != nil {
		s.notifier.Notify("error fetching messages")
		return
	}
	if s.selected == nil || s.selected.UserID != partnerID {
		return
	}
	s.messages = msgs
}

// SendMessage posts the payload to the selected partner and appends the
// server-confirmed message. Without a selected partner it fails immediately
// and touches neither the network nor local state.
func (s *Store) SendMessage(ctx context.Context, payload SendPayload) error {
	s.mu.Lock()
	sel := s.selected
	s.mu.Unlock()
	if sel == nil {
		return ErrNoPartnerSelected
	}

	msg, err := s.svc.Send(ctx, sel.UserID, payload)
	if err != nil {
		s.notifier.Notify("error sending message")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != nil && s.selected.UserID == sel.UserID {
		s.messages = append(s.messages, *msg)
	}
	return nil
}

// Subscribe registers the newMessage handler on the shared channel. It is a
// no-op without a selected partner. Registering again replaces the previous
// handler, so partner switches cannot accumulate handlers.
func (s *Store) Subscribe() {
	s.mu.Lock()
	sel := s.selected
	s.mu.Unlock()
	if sel == nil {
		return
	}

	s.channel.On(realtime.EventNewMessage, func(data json.RawMessage) {
		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Discarding malformed newMessage event", "error", err)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		// Events from anyone but the currently selected partner are
		// discarded silently.
		if s.selected == nil || msg.SenderID != s.selected.UserID {
			return
		}
		s.messages = append(s.messages, msg)
	})
}

// Unsubscribe removes the newMessage handler from the shared channel.
func (s *Store) Unsubscribe() {
	s.channel.Off(realtime.EventNewMessage)
}

// SetSelectedPartner replaces the active conversation partner. It does not
// load messages or resubscribe; callers do that. In-flight message loads for
// the previous partner are invalidated.
func (s *Store) SetSelectedPartner(partner *domain.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = partner
	s.msgGen++
	s.messagesLoading = false
}

// Users returns a copy of the sidebar user list.
func (s *Store) Users() []domain.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserSummary, len(s.users))
	copy(out, s.users)
	return out
}

// Messages returns a copy of the active conversation.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SelectedPartner returns the current conversation partner, or nil.
func (s *Store) SelectedPartner() *domain.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// IsUsersLoading reports whether a user-list fetch is in flight.
func (s *Store) IsUsersLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usersLoading
}

// IsMessagesLoading reports whether a message fetch is in flight.
func (s *Store) IsMessagesLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLoading
}
