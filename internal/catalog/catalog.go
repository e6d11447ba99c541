// Package catalog implements the pure view transform for the machine
// catalog: search filtering, single-key sorting, and fixed-size pagination.
//
// Everything here operates on rows already fetched from the database and
// never touches an external resource, so nothing in this package returns an
// error: out-of-range inputs degrade to empty results. Inputs are never
// mutated — FilterAndSort returns a fresh slice and is idempotent.
package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/tasave/tasave-go/internal/model"
)

// MachinesPerPage is the fixed page size for the catalog.
const MachinesPerPage = 12

// ViewRow is a per-request projection of a machine enriched with the
// requesting user's relationship flags and aggregate review stats.
// It is never persisted; anonymous requests get false flags.
type ViewRow struct {
	Machine       model.Machine `json:"machine"`
	IsFavorited   bool          `json:"isFavorited"`
	IsInTodo      bool          `json:"isInTodo"`
	ReviewCount   int           `json:"reviewCount"`
	AverageRating float64       `json:"averageRating"` // 0 when unreviewed
}

// SortKey selects the ordering applied after filtering.
type SortKey string

const (
	SortNewest       SortKey = "newest"
	SortOldest       SortKey = "oldest"
	SortTopRated     SortKey = "top_rated"
	SortMostReviewed SortKey = "most_reviewed"
	SortAlphabetical SortKey = "alphabetical"
)

// DifficultyAll disables difficulty filtering.
const DifficultyAll = "all"

// Criteria holds the active filters and sort for a catalog request.
// Zero values mean "no search, any difficulty, original order".
type Criteria struct {
	Search     string
	Difficulty string // "all" (or empty) or one of the four tiers
	Sort       SortKey
}

// FilterAndSort applies the criteria to rows and returns a new slice.
//
// Filtering is an AND of the active predicates, in order:
//  1. Search: case-insensitive substring match on name OR description.
//     A row with an empty description can still match on name.
//  2. Difficulty: exact tier match, unless "all"/empty.
//
// Sorting is stable, so rows that compare equal keep their filtered order.
// An unrecognized sort key leaves the filtered order untouched.
func FilterAndSort(rows []ViewRow, c Criteria) []ViewRow {
	out := make([]ViewRow, 0, len(rows))

	term := strings.ToLower(strings.TrimSpace(c.Search))
	for _, row := range rows {
		if term != "" {
			nameHit := strings.Contains(strings.ToLower(row.Machine.Name), term)
			descHit := row.Machine.Description != "" &&
				strings.Contains(strings.ToLower(row.Machine.Description), term)
			if !nameHit && !descHit {
				continue
			}
		}
		if c.Difficulty != "" && c.Difficulty != DifficultyAll &&
			string(row.Machine.Difficulty) != c.Difficulty {
			continue
		}
		out = append(out, row)
	}

	switch c.Sort {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Machine.CreatedAt.After(out[j].Machine.CreatedAt)
		})
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Machine.CreatedAt.Before(out[j].Machine.CreatedAt)
		})
	case SortTopRated:
		// Mean rating descending; equal means fall back to review count
		// descending, then to the stable filtered order.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].AverageRating != out[j].AverageRating {
				return out[i].AverageRating > out[j].AverageRating
			}
			return out[i].ReviewCount > out[j].ReviewCount
		})
	case SortMostReviewed:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ReviewCount > out[j].ReviewCount
		})
	case SortAlphabetical:
		// Case-aware lexicographic: plain byte-wise string comparison,
		// not a case-folded collation.
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Machine.Name < out[j].Machine.Name
		})
	}

	return out
}

// Page is one page of catalog results plus the page count for the full set.
type Page struct {
	Rows       []ViewRow `json:"rows"`
	TotalPages int       `json:"totalPages"`
}

// Paginate slices rows into 1-indexed pages of pageSize.
//
// TotalPages is ceil(len(rows)/pageSize), which is 0 for an empty input.
// A page number past the end returns an empty page, never an error; page
// numbers below 1 are treated as 1.
func Paginate(rows []ViewRow, pageSize, page int) Page {
	if pageSize <= 0 {
		pageSize = MachinesPerPage
	}
	if page < 1 {
		page = 1
	}

	totalPages := int(math.Ceil(float64(len(rows)) / float64(pageSize)))

	start := (page - 1) * pageSize
	if start >= len(rows) {
		return Page{Rows: []ViewRow{}, TotalPages: totalPages}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}

	// Copy the window so the page does not alias the caller's backing array.
	pageRows := make([]ViewRow, end-start)
	copy(pageRows, rows[start:end])

	return Page{Rows: pageRows, TotalPages: totalPages}
}
