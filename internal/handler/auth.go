// Package handler contains the HTTP layer: request parsing, response
// writing, and nothing else. Business rules live in internal/service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/auth"
	"github.com/tasave/tasave-go/internal/service"
)

// AuthHandler manages registration, login, logout, and the current-user
// endpoint. Cookie I/O happens here at the boundary; the service layer
// only sees tokens as strings.
type AuthHandler struct {
	auth    *service.AuthService
	cookies auth.CookieWriter
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, cookies auth.CookieWriter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    authSvc,
		cookies: cookies,
		logger:  logger,
	}
}

// credentials is the request body for register and login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates an account and starts a session.
//
// HTTP: POST /api/auth/register
// 201 on success with the user (password hash excluded by the model's JSON
// tags); 400 for validation failures; 409 when the username is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.auth.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.logError("register failed", err)
		writeError(w, err)
		return
	}

	h.cookies.SetAuthCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"user":    result.User,
	})
}

// HandleLogin verifies credentials and starts a session.
//
// HTTP: POST /api/auth/login
// Every authentication failure is the same 401 with the same message —
// the response must not reveal whether the username exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.auth.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.logError("login failed", err)
		writeError(w, err)
		return
	}

	h.cookies.SetAuthCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    result.User,
	})
}

// HandleLogout ends the session by clearing the cookie.
//
// HTTP: POST /api/auth/logout
// POST, not GET: logout changes state, and GET would be prefetchable.
// Tokens are stateless, so the old token stays technically valid until its
// expiry; without the cookie the browser just stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me (RequireAuth)
// Resolution runs the token through CurrentUser rather than trusting the
// middleware's userID: a token issued before its account was deleted must
// read as unauthenticated here, not as a phantom profile.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.TokenFromRequest(r)

	user, err := h.auth.CurrentUser(r.Context(), token)
	if err != nil {
		h.logError("me lookup failed", err)
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, apperror.Unauthenticated("Not authenticated"))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// roleChange is the request body for role updates.
type roleChange struct {
	Role string `json:"role"`
}

// HandleSetRole moves an account to a different role tier.
//
// HTTP: PUT /api/users/{username}/role (RequireAuth, MANAGE_USERS)
func (h *AuthHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("Not authenticated"))
		return
	}

	var body roleChange
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.auth.SetUserRole(r.Context(), userID, chi.URLParam(r, "username"), body.Role)
	if err != nil {
		h.logError("role change failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Role updated",
		"user":    user,
	})
}

// logError logs infrastructure faults at error level and expected request
// rejections (validation, conflict, bad credentials) at debug, so normal
// traffic doesn't spam the error log.
func (h *AuthHandler) logError(msg string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		h.logger.Debug(msg, slog.String("error", err.Error()))
		return
	}
	h.logger.Error(msg, slog.String("error", err.Error()))
}
