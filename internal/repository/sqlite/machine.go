package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/catalog"
	"github.com/tasave/tasave-go/internal/model"
	"github.com/tasave/tasave-go/internal/repository"
)

// MachineDB is the machines-table view of the database, including the
// catalog projection joins.
type MachineDB struct {
	conn *sql.DB
}

// compile-time check that *MachineDB implements repository.MachineRepository
var _ repository.MachineRepository = (*MachineDB)(nil)

// Create inserts a new machine and fills in ID and timestamps.
func (db *MachineDB) Create(ctx context.Context, m *model.Machine) error {
	now := time.Now()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO machines
		 (name, description, difficulty, image, download_link, creation_date, author, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name,
		m.Description,
		string(m.Difficulty),
		m.Image,
		m.DownloadLink,
		m.CreationDate,
		m.Author,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting machine %q: %w", m.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new machine id: %w", err)
	}

	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetByID retrieves a machine by its ID.
// Returns apperror.ErrNotFound if no machine exists with that ID.
func (db *MachineDB) GetByID(ctx context.Context, id int64) (*model.Machine, error) {
	var (
		m    model.Machine
		diff string
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, difficulty, image, download_link, creation_date, author, created_at, updated_at
		 FROM machines WHERE id = ?`, id,
	).Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&diff,
		&m.Image,
		&m.DownloadLink,
		&m.CreationDate,
		&m.Author,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("machine", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting machine %d: %w", id, err)
	}

	m.Difficulty = model.Difficulty(diff)
	return &m, nil
}

// Delete removes a machine. The reviews/favorites/todos cascades clean up
// the dependent rows.
func (db *MachineDB) Delete(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM machines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting machine %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking machine delete: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("machine", strconv.FormatInt(id, 10))
	}
	return nil
}

// viewRowQuery is the catalog projection: every machine LEFT JOINed with
// the requesting user's favorite and todo rows, plus aggregate review
// count and mean rating (0 when unreviewed). userID 0 (anonymous) joins
// nothing, so the flags come back false.
const viewRowQuery = `
	SELECT m.id, m.name, m.description, m.difficulty, m.image,
	       m.download_link, m.creation_date, m.author, m.created_at, m.updated_at,
	       f.id IS NOT NULL AS is_favorited,
	       t.id IS NOT NULL AS is_in_todo,
	       COUNT(r.id) AS review_count,
	       COALESCE(AVG(r.rating), 0) AS average_rating
	FROM machines m
	LEFT JOIN favorites f ON f.machine_id = m.id AND f.user_id = ?
	LEFT JOIN todos t     ON t.machine_id = m.id AND t.user_id = ?
	LEFT JOIN reviews r   ON r.machine_id = m.id`

// ListViewRows returns the full catalog as view rows for the given user,
// in ascending creation order. The catalog package handles any further
// filtering, sorting, and pagination in memory.
func (db *MachineDB) ListViewRows(ctx context.Context, userID int64) ([]catalog.ViewRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		viewRowQuery+`
		GROUP BY m.id, f.id, t.id
		ORDER BY m.created_at, m.id`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing catalog rows: %w", err)
	}
	defer rows.Close()

	out := []catalog.ViewRow{}
	for rows.Next() {
		row, err := scanViewRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning catalog row: %w", err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating catalog rows: %w", err)
	}

	return out, nil
}

// GetViewRow returns the view row for a single machine.
// Returns apperror.ErrNotFound if the machine does not exist.
func (db *MachineDB) GetViewRow(ctx context.Context, id, userID int64) (*catalog.ViewRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		viewRowQuery+`
		WHERE m.id = ?
		GROUP BY m.id, f.id, t.id`,
		userID, userID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting catalog row %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("sqlite: getting catalog row %d: %w", id, err)
		}
		return nil, apperror.NotFound("machine", strconv.FormatInt(id, 10))
	}

	row, err := scanViewRow(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning catalog row %d: %w", id, err)
	}
	return row, nil
}

func scanViewRow(rows *sql.Rows) (*catalog.ViewRow, error) {
	var (
		row  catalog.ViewRow
		diff string
	)

	err := rows.Scan(
		&row.Machine.ID,
		&row.Machine.Name,
		&row.Machine.Description,
		&diff,
		&row.Machine.Image,
		&row.Machine.DownloadLink,
		&row.Machine.CreationDate,
		&row.Machine.Author,
		&row.Machine.CreatedAt,
		&row.Machine.UpdatedAt,
		&row.IsFavorited,
		&row.IsInTodo,
		&row.ReviewCount,
		&row.AverageRating,
	)
	if err != nil {
		return nil, err
	}

	row.Machine.Difficulty = model.Difficulty(diff)
	return &row, nil
}
