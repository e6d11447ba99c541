// Package service contains the business logic layer.
//
// Handlers parse HTTP and write responses; services validate and enforce
// the rules; repositories do the SQL. Services return apperror values, and
// the handler layer translates them to status codes — nothing here knows
// about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/auth"
	"github.com/tasave/tasave-go/internal/model"
	"github.com/tasave/tasave-go/internal/repository"
)

// Validation constants for registration.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
)

// invalidCredentials is the single message for every login failure mode.
// "User does not exist" and "wrong password" must be indistinguishable to
// the caller, otherwise the login form enumerates usernames.
const invalidCredentials = "Invalid username or password"

// AuthService handles registration, login, identity resolution, and the
// permission choke point.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all dependencies injected.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account and issues a session token.
//
// Rules (validation failures, never server faults):
//   - username: trimmed, 3–50 characters
//   - password: 6–72 characters
//   - username must be free: taken ⇒ apperror.ErrConflict
//
// The duplicate pre-check is advisory; the UNIQUE constraint in the store
// decides races, and the repository reports that as the same Conflict.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "Username and password are required")
	}
	// Length rules count characters, not bytes; the 72 cap below is bcrypt's
	// byte limit and stays in bytes.
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be at least %d characters long", MinUsernameLength))
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be %d characters or less", MaxUsernameLength))
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	if len(password) > 72 {
		return nil, apperror.ValidationFailed("password", "Password must be 72 characters or less")
	}

	// Pre-check for a friendlier conflict error on the common path.
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, apperror.Conflict("username", "Username already exists")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking username %q: %w", username, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues a session token.
//
// Both "no such user" and "wrong password" come back as the same
// apperror.ErrUnauthenticated with the same message.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthenticated(invalidCredentials)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// CurrentUser resolves a raw session token to a user record.
//
// Returns (nil, nil) — anonymous, not an error — when the token is empty,
// invalid, expired, or references a user that no longer exists. The last
// case matters: a stale token from a deleted account must not resolve to a
// phantom identity. Only infrastructure faults return a non-nil error.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", userID, err)
	}

	return user, nil
}

// UserByID returns the user for an already-authenticated request.
//
// Unlike CurrentUser this is called after RequireAuth has validated the
// token, so a missing row means the account was deleted mid-session; that
// surfaces as Unauthenticated, not NotFound.
func (s *AuthService) UserByID(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("Authentication required")
		}
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", userID, err)
	}
	return user, nil
}

// RequirePermission is the single choke point every privileged mutation
// calls before doing work.
//
// userID ≤ 0 (anonymous) ⇒ Unauthenticated. A valid identity whose role is
// not in the action's allow-list ⇒ Forbidden, naming the action and the
// roles that would satisfy it — the caller is known, so there is no
// enumeration risk in being specific.
func (s *AuthService) RequirePermission(ctx context.Context, userID int64, action auth.Action) (*model.User, error) {
	if userID <= 0 {
		return nil, apperror.Unauthenticated("Authentication required")
	}

	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !auth.HasPermission(user.Role, action) {
		s.logger.Warn("permission denied",
			slog.Int64("userID", user.ID),
			slog.String("role", string(user.Role)),
			slog.String("action", string(action)),
		)
		return nil, apperror.InsufficientPermission(string(action), auth.AllowedRoles(action))
	}

	return user, nil
}

// SetUserRole moves another account to a different role tier. Requires
// MANAGE_USERS (admin). Admins cannot change their own role: the system
// must not be left without one by accident.
func (s *AuthService) SetUserRole(ctx context.Context, callerID int64, username, role string) (*model.User, error) {
	caller, err := s.RequirePermission(ctx, callerID, auth.ActionManageUsers)
	if err != nil {
		return nil, err
	}

	if !model.ValidRole(role) {
		return nil, apperror.ValidationFailed("role", "Role must be one of: user, contributor, admin")
	}
	if caller.Username == username {
		return nil, apperror.ValidationFailed("username", "Cannot change your own role")
	}

	user, err := s.users.UpdateRole(ctx, username, model.Role(role))
	if err != nil {
		return nil, err
	}

	s.logger.Info("role updated",
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
		slog.Int64("changedBy", callerID),
	)

	return user, nil
}
