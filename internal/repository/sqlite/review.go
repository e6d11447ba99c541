package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/model"
	"github.com/tasave/tasave-go/internal/repository"
)

// ReviewDB is the reviews-table view of the database.
type ReviewDB struct {
	conn *sql.DB
}

// compile-time check that *ReviewDB implements repository.ReviewRepository
var _ repository.ReviewRepository = (*ReviewDB)(nil)

// Upsert saves a review, updating in place when the (user, machine) pair
// already has one. ON CONFLICT targets the UNIQUE(user_id, machine_id)
// constraint, so one statement covers both the first review and a
// re-review — no check-then-insert race.
func (db *ReviewDB) Upsert(ctx context.Context, review *model.Review) error {
	now := time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO reviews (user_id, machine_id, rating, text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, machine_id)
		 DO UPDATE SET rating = excluded.rating, text = excluded.text, updated_at = excluded.updated_at`,
		review.UserID,
		review.MachineID,
		review.Rating,
		review.Text,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting review (user=%d machine=%d): %w",
			review.UserID, review.MachineID, err)
	}

	// Read the canonical row back so the caller gets the ID and the
	// original created_at on the update path.
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, rating, text, created_at, updated_at
		 FROM reviews WHERE user_id = ? AND machine_id = ?`,
		review.UserID, review.MachineID,
	).Scan(&review.ID, &review.Rating, &review.Text, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: reading back review (user=%d machine=%d): %w",
			review.UserID, review.MachineID, err)
	}

	return nil
}

// GetByID retrieves a review by its ID.
// Returns apperror.ErrNotFound if no review exists with that ID.
func (db *ReviewDB) GetByID(ctx context.Context, id int64) (*model.Review, error) {
	var r model.Review

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, machine_id, rating, text, created_at, updated_at
		 FROM reviews WHERE id = ?`, id,
	).Scan(&r.ID, &r.UserID, &r.MachineID, &r.Rating, &r.Text, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("review", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting review %d: %w", id, err)
	}

	return &r, nil
}

// Delete removes a review by its ID.
// Returns apperror.ErrNotFound if no review exists with that ID.
func (db *ReviewDB) Delete(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting review %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking review delete: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("review", strconv.FormatInt(id, 10))
	}
	return nil
}

// ListForMachine returns a machine's reviews, newest first, each joined
// with the reviewer's username for display.
func (db *ReviewDB) ListForMachine(ctx context.Context, machineID int64) ([]model.Review, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.user_id, r.machine_id, r.rating, r.text, r.created_at, r.updated_at, u.username
		 FROM reviews r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.machine_id = ?
		 ORDER BY r.created_at DESC, r.id DESC`,
		machineID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reviews for machine %d: %w", machineID, err)
	}
	defer rows.Close()

	out := []model.Review{}
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.UserID, &r.MachineID, &r.Rating, &r.Text,
			&r.CreatedAt, &r.UpdatedAt, &r.Username); err != nil {
			return nil, fmt.Errorf("sqlite: scanning review row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating review rows: %w", err)
	}

	return out, nil
}
