package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "jwt"

// setSessionCookie attaches the session token to the response. The cookie is
// HttpOnly and SameSite=Strict; Secure is dropped only in development so the
// cookie works over plain http on localhost.
func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   !isDev,
	})
}

// clearSessionCookie replaces the session cookie with an empty value that is
// already expired, so the client discards it. The token itself stays
// cryptographically valid until its natural expiry; there is no server-side
// revocation list.
func clearSessionCookie(w http.ResponseWriter, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   !isDev,
	})
}
