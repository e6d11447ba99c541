// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the user's permission tier. The three tiers form a hierarchy
// (user < contributor < admin), but authorization is decided by per-action
// allow-lists (see internal/auth), not by comparing tiers.
type Role string

const (
	RoleUser        Role = "user"
	RoleContributor Role = "contributor"
	RoleAdmin       Role = "admin"
)

// ParseRole coerces a stored role string to a valid Role.
//
// Rows written before the role column existed have an empty role; they are
// treated as plain users. The coercion happens here, at the data boundary,
// so call sites never see an unset role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleContributor:
		return RoleContributor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// ValidRole reports whether s names one of the three tiers exactly. Unlike
// ParseRole it never coerces; role changes must not turn a typo into "user".
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleUser, RoleContributor, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered account.
//
// PasswordHash is the bcrypt hash of the user's password. The plaintext is
// never stored or logged; the hash is excluded from JSON so it can never
// leak through an API response.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password"`
	Role         Role      `json:"role"      db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
