// Package repository defines the storage interfaces the service layer
// programs against. The sqlite subpackage implements them; tests use
// in-memory fakes.
package repository

import (
	"context"

	"github.com/tasave/tasave-go/internal/catalog"
	"github.com/tasave/tasave-go/internal/model"
)

// UserRepository reads and writes user accounts.
//
// The auth layer only ever reads by ID or by username equality. The store
// enforces username uniqueness; Create surfaces a duplicate as an
// apperror.ErrConflict even when the service pre-check raced.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateRole(ctx context.Context, username string, role model.Role) (*model.User, error)
}

// MachineRepository reads and writes catalog entries.
//
// ListViewRows materializes the per-request catalog projection: every
// machine joined with the given user's favorite/todo flags and the
// aggregate review stats. userID 0 means anonymous (flags all false).
type MachineRepository interface {
	Create(ctx context.Context, machine *model.Machine) error
	GetByID(ctx context.Context, id int64) (*model.Machine, error)
	Delete(ctx context.Context, id int64) error
	ListViewRows(ctx context.Context, userID int64) ([]catalog.ViewRow, error)
	GetViewRow(ctx context.Context, id, userID int64) (*catalog.ViewRow, error)
}

// ReviewRepository stores star ratings. One review per (user, machine):
// Upsert updates in place when the pair already has a row.
type ReviewRepository interface {
	Upsert(ctx context.Context, review *model.Review) error
	GetByID(ctx context.Context, id int64) (*model.Review, error)
	Delete(ctx context.Context, id int64) error
	ListForMachine(ctx context.Context, machineID int64) ([]model.Review, error)
}

// RelationKind distinguishes the two user↔machine flag tables.
type RelationKind string

const (
	RelationFavorite RelationKind = "favorite"
	RelationTodo     RelationKind = "todo"
)

// RelationRepository toggles the favorite/todo membership rows.
// Toggle inserts when absent and deletes when present, returning the new
// membership state.
type RelationRepository interface {
	Toggle(ctx context.Context, kind RelationKind, userID, machineID int64) (active bool, err error)
}
