// Package auth provides the session primitives for tasave: JWT issuance and
// validation, bcrypt password hashing, the auth cookie, and the role
// permission table.
//
// SESSION MODEL:
// Sessions are stateless. A signed JWT carries the user's ID as its subject;
// the server stores nothing. Validity is entirely determined by the HMAC
// signature and the expiry claim at verification time. The flip side is that
// there is no server-side revocation: logout only deletes the client's
// cookie, and a stolen token stays valid until it expires (7 days).
//
// The cookie I/O lives in cookie.go, strictly at the HTTP boundary. Token
// signing and verification never touch a request, which keeps them testable
// without a fake HTTP stack.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// TokenLifetime is how long an issued session token stays valid.
// Expiry is enforced lazily at validation time; there is no sweeper.
const TokenLifetime = 7 * 24 * time.Hour

const issuer = "tasave"

// TokenService signs and verifies session tokens.
//
// It holds the HMAC secret used for both operations. The secret is injected
// at construction (from config), never read from the environment here, so
// tests can use a fixed secret.
type TokenService struct {
	secret []byte
	now    func() time.Time // injectable clock for expiry tests
}

// NewTokenService creates a TokenService with the given secret.
// Short secrets are refused outright: HS256 with a guessable key means
// anyone can mint a session for any user ID.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. The user ID travels in the registered "sub"
// claim, formatted as a decimal integer.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given user ID.
//
// Claims: sub = userID, iat = now, exp = now + 7 days, iss = "tasave",
// jti = a fresh xid. The jti is not checked anywhere today; it exists so a
// revocation denylist could be added later without changing the format.
func (s *TokenService) Generate(userID int64) (string, error) {
	return s.generateAt(userID, s.now(), TokenLifetime)
}

// GenerateWithDuration creates a token with a custom lifetime. Used by tests
// to produce already-expired tokens (negative d).
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, error) {
	return s.generateAt(userID, s.now(), d)
}

func (s *TokenService) generateAt(userID int64, now time.Time, d time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("auth: user ID must be positive, got %d", userID)
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
			ID:        xid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token and returns the user ID it
// asserts.
//
// CONTRACT: any failure — bad signature, wrong algorithm, malformed string,
// expired, missing or non-numeric subject — comes back as a plain error.
// Callers MUST treat that identically to "no token" (an anonymous request),
// never as a server fault. Nothing in this method is worth a 500.
func (s *TokenService) Validate(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject anything not HMAC-signed (algorithm confusion guard).
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("auth: token expired")
		}
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: token subject is not a user ID")
	}

	return userID, nil
}
