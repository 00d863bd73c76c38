package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avolkov/chatter/internal/domain"
	"github.com/avolkov/chatter/internal/store"
)

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) Upload(_ context.Context, _ string) (string, error) {
	return f.url, f.err
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestHandler(t *testing.T) (*Handler, store.Repository, http.Handler) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "chatter.db"))
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	h := NewHandler(repo, &fakeUploader{url: "https://assets.example.com/pic.png"}, testSecret, time.Hour, true)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, repo, r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func signup(t *testing.T, router http.Handler, name, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, "/signup", map[string]string{
		"full_name": name, "email": email, "password": password,
	}, nil)
}

func TestSignup_Success(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := signup(t, router, "Alice Smith", "alice@example.com", "hunter22")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got domain.UserSummary
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.UserID == "" || got.Email != "alice@example.com" || got.FullName != "Alice Smith" {
		t.Errorf("unexpected summary: %+v", got)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response must never carry password material")
	}

	c := sessionCookie(t, w)
	if c == nil || c.Value == "" {
		t.Fatal("expected session cookie to be set")
	}
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Error("session cookie must be SameSite=Strict")
	}
}

func TestSignup_MissingFields(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := signup(t, router, "", "alice@example.com", "hunter22")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSignup_ShortPasswordRejectedBeforeWrite(t *testing.T) {
	_, repo, router := newTestHandler(t)

	w := signup(t, router, "Bob", "bob@example.com", "12345")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	user, err := repo.GetUserByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail error: %v", err)
	}
	if user != nil {
		t.Error("short password must be rejected before any record is written")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	_, _, router := newTestHandler(t)

	if w := signup(t, router, "Alice", "alice@example.com", "hunter22"); w.Code != http.StatusCreated {
		t.Fatalf("first signup failed: %d", w.Code)
	}
	w := signup(t, router, "Mallory", "alice@example.com", "hunter23")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 conflict", w.Code)
	}
}

func TestLogin_Success(t *testing.T) {
	_, _, router := newTestHandler(t)
	signup(t, router, "Alice", "alice@example.com", "hunter22")

	w := doJSON(t, router, http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if c := sessionCookie(t, w); c == nil || c.Value == "" {
		t.Error("login must set the session cookie")
	}
}

func TestLogin_NoCredentialLeak(t *testing.T) {
	_, _, router := newTestHandler(t)
	signup(t, router, "Alice", "alice@example.com", "hunter22")

	wrongPassword := doJSON(t, router, http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}, nil)
	unknownEmail := doJSON(t, router, http.MethodPost, "/login", map[string]string{
		"email": "ghost@example.com", "password": "whatever1",
	}, nil)

	if wrongPassword.Code != http.StatusBadRequest || unknownEmail.Code != http.StatusBadRequest {
		t.Fatalf("expected 400/400, got %d/%d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("error bodies differ: %q vs %q, leaking account existence",
			wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLogout_ExpiresCookie(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := doJSON(t, router, http.MethodPost, "/logout", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	c := sessionCookie(t, w)
	if c == nil {
		t.Fatal("logout must rewrite the session cookie")
	}
	if c.Value != "" {
		t.Errorf("cookie value = %q, want empty", c.Value)
	}
	if !c.Expires.Before(time.Now()) {
		t.Errorf("cookie expiry %v must be in the past", c.Expires)
	}
}

func TestCheck(t *testing.T) {
	_, _, router := newTestHandler(t)
	w := signup(t, router, "Alice", "alice@example.com", "hunter22")
	cookie := sessionCookie(t, w)

	got := doJSON(t, router, http.MethodGet, "/check", nil, []*http.Cookie{cookie})
	if got.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", got.Code, got.Body.String())
	}

	var summary domain.UserSummary
	if err := json.NewDecoder(got.Body).Decode(&summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.Email != "alice@example.com" {
		t.Errorf("unexpected identity: %+v", summary)
	}
}

func TestCheck_Unauthenticated(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := doJSON(t, router, http.MethodGet, "/check", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	bad := doJSON(t, router, http.MethodGet, "/check", nil, []*http.Cookie{
		{Name: SessionCookieName, Value: "not-a-token"},
	})
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("status with garbage token = %d, want 401", bad.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	_, repo, router := newTestHandler(t)
	w := signup(t, router, "Alice", "alice@example.com", "hunter22")
	cookie := sessionCookie(t, w)

	got := doJSON(t, router, http.MethodPut, "/profile", map[string]string{
		"profile_pic": "data:image/png;base64,aGVsbG8=",
	}, []*http.Cookie{cookie})
	if got.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", got.Code, got.Body.String())
	}

	var summary domain.UserSummary
	if err := json.NewDecoder(got.Body).Decode(&summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.ProfilePic != "https://assets.example.com/pic.png" {
		t.Errorf("profile pic = %q", summary.ProfilePic)
	}

	stored, err := repo.GetUserByID(context.Background(), summary.UserID)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if stored.ProfilePic != summary.ProfilePic {
		t.Errorf("stored profile pic = %q, want %q", stored.ProfilePic, summary.ProfilePic)
	}
}

func TestUpdateProfile_MissingImage(t *testing.T) {
	_, _, router := newTestHandler(t)
	w := signup(t, router, "Alice", "alice@example.com", "hunter22")
	cookie := sessionCookie(t, w)

	got := doJSON(t, router, http.MethodPut, "/profile", map[string]string{}, []*http.Cookie{cookie})
	if got.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", got.Code)
	}
}

func TestUpdateProfile_UploadFailure(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.uploader = &fakeUploader{err: errors.New("asset store down")}
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	w := signup(t, r, "Alice", "alice@example.com", "hunter22")
	cookie := sessionCookie(t, w)

	got := doJSON(t, r, http.MethodPut, "/profile", map[string]string{
		"profile_pic": "data:image/png;base64,aGVsbG8=",
	}, []*http.Cookie{cookie})
	if got.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", got.Code)
	}
	if strings.Contains(got.Body.String(), "asset store down") {
		t.Error("internal error detail must not reach the caller")
	}
}
