package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tasave/tasave-go/internal/repository"
)

// RelationDB is the favorites/todos view of the database.
type RelationDB struct {
	conn *sql.DB
}

// compile-time check that *RelationDB implements repository.RelationRepository
var _ repository.RelationRepository = (*RelationDB)(nil)

// relationTable maps the kind to its table name. Both tables have the same
// shape; only the name differs. Never interpolate anything user-supplied
// here — the kind comes from the two package constants.
func relationTable(kind repository.RelationKind) (string, error) {
	switch kind {
	case repository.RelationFavorite:
		return "favorites", nil
	case repository.RelationTodo:
		return "todos", nil
	default:
		return "", fmt.Errorf("sqlite: unknown relation kind %q", kind)
	}
}

// Toggle flips the (user, machine) membership in the favorites or todos
// table: delete the row if present, insert it if absent. Returns the new
// state (true = row now exists).
//
// The DELETE-first form makes the toggle idempotent under retries: if the
// row exists the delete wins, otherwise the insert runs. The UNIQUE
// constraint keeps a concurrent double-insert from producing two rows.
func (db *RelationDB) Toggle(ctx context.Context, kind repository.RelationKind, userID, machineID int64) (bool, error) {
	table, err := relationTable(kind)
	if err != nil {
		return false, err
	}

	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE user_id = ? AND machine_id = ?`, table),
		userID, machineID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing %s (user=%d machine=%d): %w", kind, userID, machineID, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking %s toggle: %w", kind, err)
	}
	if deleted > 0 {
		return false, nil
	}

	now := time.Now()
	_, err = db.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id, machine_id, created_at, updated_at) VALUES (?, ?, ?, ?)`, table),
		userID, machineID, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent toggle inserted first; the row exists, which is
			// the state this call was converging to anyway.
			return true, nil
		}
		return false, fmt.Errorf("sqlite: adding %s (user=%d machine=%d): %w", kind, userID, machineID, err)
	}

	return true, nil
}
