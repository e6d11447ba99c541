package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie. One name, one path, one attribute set:
// SetAuthCookie and ClearAuthCookie must stay mirror images of each other,
// otherwise clearing fails to overwrite what setting produced and the
// browser keeps a live session cookie around.
const CookieName = "auth-token"

// CookieWriter writes and clears the session cookie with consistent
// attributes. Secure is true in production (HTTPS only) and false for
// local development, driven by config.
type CookieWriter struct {
	Secure bool
}

// SetAuthCookie attaches the session token to the response.
//
// HttpOnly keeps the token away from JavaScript (XSS can't read it);
// SameSite=Lax keeps it off cross-site POSTs. Max-Age matches the token's
// own 7-day expiry so the cookie and the token die together.
func (c CookieWriter) SetAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenLifetime / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie overwrites the session cookie with an empty,
// immediately-expired value. Identical name/path/attributes to
// SetAuthCookie — that is what makes the overwrite reliable.
func (c CookieWriter) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest extracts the raw session token from the request cookie.
// Returns ("", false) when the cookie is absent or empty — an anonymous
// request, not an error.
func TokenFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
