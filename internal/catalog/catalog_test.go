package catalog

import (
	"testing"
	"time"

	"github.com/tasave/tasave-go/internal/model"
)

// sampleRows returns a small catalog in insertion order. Names and stats
// are chosen so every sort key produces a distinct order.
func sampleRows() []ViewRow {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []ViewRow{
		{
			Machine: model.Machine{
				ID: 1, Name: "Trust", Description: "A beginner box about weak credentials",
				Difficulty: model.DifficultyVeryEasy, CreatedAt: base,
			},
			ReviewCount: 4, AverageRating: 4.5,
		},
		{
			Machine: model.Machine{
				ID: 2, Name: "Insanity", Description: "Hard privilege escalation chain",
				Difficulty: model.DifficultyHard, CreatedAt: base.Add(48 * time.Hour),
			},
			ReviewCount: 10, AverageRating: 4.5,
		},
		{
			Machine: model.Machine{
				ID: 3, Name: "Walking Dead", Description: "",
				Difficulty: model.DifficultyEasy, CreatedAt: base.Add(24 * time.Hour),
			},
			ReviewCount: 1, AverageRating: 2.0,
		},
		{
			Machine: model.Machine{
				ID: 4, Name: "Unrecover", Description: "Forensics with an insane twist",
				Difficulty: model.DifficultyMedium, CreatedAt: base.Add(72 * time.Hour),
			},
			ReviewCount: 0, AverageRating: 0,
		},
	}
}

func ids(rows []ViewRow) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.Machine.ID
	}
	return out
}

func assertOrder(t *testing.T, rows []ViewRow, want ...int64) {
	t.Helper()
	got := ids(rows)
	if len(got) != len(want) {
		t.Fatalf("row count = %d, want %d (got IDs %v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row order = %v, want %v", got, want)
		}
	}
}

// =========================================================================
// FILTER TESTS
// =========================================================================

func TestFilterAndSort_NoCriteria_KeepsOriginalOrder(t *testing.T) {
	rows := sampleRows()

	got := FilterAndSort(rows, Criteria{})

	assertOrder(t, got, 1, 2, 3, 4)
}

func TestFilterAndSort_SearchIsCaseInsensitive(t *testing.T) {
	rows := sampleRows()

	// "insan" matches "Insanity" (name) and "Unrecover" (description says
	// "insane"). Matching must ignore case on both fields.
	got := FilterAndSort(rows, Criteria{Search: "INSAN"})

	assertOrder(t, got, 2, 4)
}

func TestFilterAndSort_SearchMatchesNameOrDescription(t *testing.T) {
	rows := sampleRows()

	// "credentials" only appears in Trust's description.
	got := FilterAndSort(rows, Criteria{Search: "credentials"})
	assertOrder(t, got, 1)

	// "walking" only appears in a name; that row has an empty description
	// and must still match.
	got = FilterAndSort(rows, Criteria{Search: "walking"})
	assertOrder(t, got, 3)
}

func TestFilterAndSort_SearchNoMatches(t *testing.T) {
	got := FilterAndSort(sampleRows(), Criteria{Search: "no-such-machine"})
	if len(got) != 0 {
		t.Errorf("expected empty result, got IDs %v", ids(got))
	}
}

func TestFilterAndSort_DifficultyFilter(t *testing.T) {
	rows := sampleRows()

	got := FilterAndSort(rows, Criteria{Difficulty: "hard"})
	assertOrder(t, got, 2)

	// "all" and empty string both disable the filter.
	assertOrder(t, FilterAndSort(rows, Criteria{Difficulty: DifficultyAll}), 1, 2, 3, 4)
	assertOrder(t, FilterAndSort(rows, Criteria{Difficulty: ""}), 1, 2, 3, 4)
}

func TestFilterAndSort_SearchAndDifficultyCombine(t *testing.T) {
	rows := sampleRows()

	// "insan" alone matches 2 and 4; difficulty narrows it to 4.
	got := FilterAndSort(rows, Criteria{Search: "insan", Difficulty: "medium"})
	assertOrder(t, got, 4)
}

// =========================================================================
// SORT TESTS
// =========================================================================

func TestFilterAndSort_Newest(t *testing.T) {
	got := FilterAndSort(sampleRows(), Criteria{Sort: SortNewest})
	assertOrder(t, got, 4, 2, 3, 1)
}

func TestFilterAndSort_Oldest(t *testing.T) {
	got := FilterAndSort(sampleRows(), Criteria{Sort: SortOldest})
	assertOrder(t, got, 1, 3, 2, 4)
}

func TestFilterAndSort_TopRated_TieBrokenByReviewCount(t *testing.T) {
	// Trust and Insanity share a 4.5 average; Insanity has more reviews so
	// it ranks first.
	got := FilterAndSort(sampleRows(), Criteria{Sort: SortTopRated})
	assertOrder(t, got, 2, 1, 3, 4)
}

func TestFilterAndSort_MostReviewed(t *testing.T) {
	got := FilterAndSort(sampleRows(), Criteria{Sort: SortMostReviewed})
	assertOrder(t, got, 2, 1, 3, 4)
}

func TestFilterAndSort_Alphabetical(t *testing.T) {
	got := FilterAndSort(sampleRows(), Criteria{Sort: SortAlphabetical})
	assertOrder(t, got, 2, 1, 4, 3)
}

func TestFilterAndSort_UnknownSortKeptAsFiltered(t *testing.T) {
	got := FilterAndSort(sampleRows(), Criteria{Sort: SortKey("bogus")})
	assertOrder(t, got, 1, 2, 3, 4)
}

func TestFilterAndSort_DoesNotMutateInput(t *testing.T) {
	rows := sampleRows()

	FilterAndSort(rows, Criteria{Search: "insan", Sort: SortAlphabetical})

	// The caller's slice must keep its original order after any call.
	assertOrder(t, rows, 1, 2, 3, 4)
}

func TestFilterAndSort_Idempotent(t *testing.T) {
	c := Criteria{Difficulty: "easy", Sort: SortNewest}

	once := FilterAndSort(sampleRows(), c)
	twice := FilterAndSort(once, c)

	assertOrder(t, twice, ids(once)...)
}

// =========================================================================
// PAGINATION TESTS
// =========================================================================

func manyRows(n int) []ViewRow {
	rows := make([]ViewRow, n)
	for i := range rows {
		rows[i].Machine.ID = int64(i + 1)
	}
	return rows
}

func TestPaginate_FirstPage(t *testing.T) {
	page := Paginate(manyRows(13), MachinesPerPage, 1)

	if len(page.Rows) != 12 {
		t.Errorf("len(Rows) = %d, want 12", len(page.Rows))
	}
	if page.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", page.TotalPages)
	}
	if page.Rows[0].Machine.ID != 1 {
		t.Errorf("first row ID = %d, want 1", page.Rows[0].Machine.ID)
	}
}

func TestPaginate_LastPartialPage(t *testing.T) {
	page := Paginate(manyRows(13), MachinesPerPage, 2)

	if len(page.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(page.Rows))
	}
	if page.Rows[0].Machine.ID != 13 {
		t.Errorf("row ID = %d, want 13", page.Rows[0].Machine.ID)
	}
}

func TestPaginate_PageBeyondRange(t *testing.T) {
	page := Paginate(manyRows(5), MachinesPerPage, 99)

	if len(page.Rows) != 0 {
		t.Errorf("len(Rows) = %d, want 0", len(page.Rows))
	}
	if page.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", page.TotalPages)
	}
}

func TestPaginate_PageBelowOneClampsToFirst(t *testing.T) {
	for _, p := range []int{0, -3} {
		page := Paginate(manyRows(3), MachinesPerPage, p)
		if len(page.Rows) != 3 || page.Rows[0].Machine.ID != 1 {
			t.Errorf("page=%d: got IDs %v, want the first page", p, ids(page.Rows))
		}
	}
}

func TestPaginate_EmptyInput(t *testing.T) {
	page := Paginate(nil, MachinesPerPage, 1)

	if len(page.Rows) != 0 {
		t.Errorf("len(Rows) = %d, want 0", len(page.Rows))
	}
	if page.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", page.TotalPages)
	}
}

func TestPaginate_ExactMultiple(t *testing.T) {
	page := Paginate(manyRows(24), MachinesPerPage, 2)

	if page.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", page.TotalPages)
	}
	if len(page.Rows) != 12 {
		t.Errorf("len(Rows) = %d, want 12", len(page.Rows))
	}
	if page.Rows[11].Machine.ID != 24 {
		t.Errorf("last row ID = %d, want 24", page.Rows[11].Machine.ID)
	}
}
