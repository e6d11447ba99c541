package model

import "time"

// Difficulty is one of the four tiers a machine can be rated at.
type Difficulty string

const (
	DifficultyVeryEasy Difficulty = "very_easy"
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
)

// ValidDifficulty reports whether s is one of the four known tiers.
func ValidDifficulty(s string) bool {
	switch Difficulty(s) {
	case DifficultyVeryEasy, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Machine is a single training-machine record in the catalog.
//
// Description, Image, DownloadLink, CreationDate and Author come from the
// uploader and may be empty. CreationDate is a display string (e.g.
// "2024-03-01") chosen by the author, distinct from the CreatedAt row
// timestamp.
type Machine struct {
	ID           int64      `json:"id"           db:"id"`
	Name         string     `json:"name"         db:"name"`
	Description  string     `json:"description"  db:"description"`
	Difficulty   Difficulty `json:"difficulty"   db:"difficulty"`
	Image        string     `json:"image"        db:"image"`
	DownloadLink string     `json:"downloadLink" db:"download_link"`
	CreationDate string     `json:"creationDate" db:"creation_date"`
	Author       string     `json:"author"       db:"author"`
	CreatedAt    time.Time  `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt"    db:"updated_at"`
}
