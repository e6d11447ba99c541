package model

import "time"

// Review is a star rating with optional text, one per (user, machine).
// Re-reviewing a machine updates the existing row instead of adding one.
type Review struct {
	ID        int64     `json:"id"        db:"id"`
	UserID    int64     `json:"userId"    db:"user_id"`
	MachineID int64     `json:"machineId" db:"machine_id"`
	Rating    int       `json:"rating"    db:"rating"` // 1..5
	Text      string    `json:"text"      db:"text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Username is the reviewer's name, populated by queries that join the
	// users table (the machine detail page). Not a column on reviews.
	Username string `json:"username,omitempty" db:"-"`
}
