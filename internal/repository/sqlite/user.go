package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/model"
	"github.com/tasave/tasave-go/internal/repository"
)

// UserDB is the users-table view of the database.
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new user and fills in ID and timestamps.
//
// The UNIQUE constraint on username is the last line of defence against
// duplicate registration: the service pre-checks, but two concurrent
// registrations of the same name can both pass the pre-check, and exactly
// one of them must lose here. The constraint violation is surfaced as an
// apperror.ErrConflict so handlers report it as 409, not 500.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, password, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", "Username already exists")
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by their ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT id, username, password, role, created_at, updated_at
		 FROM users WHERE id = ?`, id, strconv.FormatInt(id, 10))
}

// GetByUsername retrieves a user by exact username.
// Returns apperror.ErrNotFound if no user exists with that name.
func (db *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT id, username, password, role, created_at, updated_at
		 FROM users WHERE username = ?`, username, username)
}

// UpdateRole sets the role of the named user and returns the updated row.
// Returns apperror.ErrNotFound if no user has that name.
func (db *UserDB) UpdateRole(ctx context.Context, username string, role model.Role) (*model.User, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE username = ?`,
		string(role), time.Now(), username,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating role for %q: %w", username, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking role update for %q: %w", username, err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("user", username)
	}

	return db.GetByUsername(ctx, username)
}

func (db *UserDB) getUser(ctx context.Context, query string, arg any, label string) (*model.User, error) {
	var (
		u    model.User
		role string
	)

	err := db.conn.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", label, err)
	}

	// Legacy rows may carry an empty or unknown role string.
	u.Role = model.ParseRole(role)
	return &u, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite exposes the SQLite error text, not a typed
// error, so string matching is the available tool.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
