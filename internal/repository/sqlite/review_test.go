package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/model"
)

// reviewFixture creates a user and a machine to hang reviews off.
func reviewFixture(t *testing.T) (*DB, *model.User, *model.Machine) {
	t.Helper()
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "reviewer", model.RoleUser)
	machine := createTestMachine(t, db.Machines(), "Reviewable", model.DifficultyMedium)
	return db, user, machine
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestReviewUpsert_Insert(t *testing.T) {
	db, user, machine := reviewFixture(t)

	review := &model.Review{
		UserID:    user.ID,
		MachineID: machine.ID,
		Rating:    4,
		Text:      "solid box",
	}
	if err := db.Reviews().Upsert(context.Background(), review); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if review.ID == 0 {
		t.Error("Upsert() did not set review.ID")
	}
	if review.CreatedAt.IsZero() {
		t.Error("Upsert() did not set review.CreatedAt")
	}
}

func TestReviewUpsert_SecondReviewUpdatesInPlace(t *testing.T) {
	db, user, machine := reviewFixture(t)
	ctx := context.Background()

	first := &model.Review{UserID: user.ID, MachineID: machine.ID, Rating: 2, Text: "meh"}
	if err := db.Reviews().Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() first: %v", err)
	}

	second := &model.Review{UserID: user.ID, MachineID: machine.ID, Rating: 5, Text: "grew on me"}
	if err := db.Reviews().Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() second: %v", err)
	}

	// Same (user, machine) pair — same row, same ID, updated fields.
	if second.ID != first.ID {
		t.Errorf("Upsert() created a new row: id %d, want %d", second.ID, first.ID)
	}

	reviews, err := db.Reviews().ListForMachine(ctx, machine.ID)
	if err != nil {
		t.Fatalf("ListForMachine() error = %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("review count = %d, want 1 (one review per user per machine)", len(reviews))
	}
	if reviews[0].Rating != 5 || reviews[0].Text != "grew on me" {
		t.Errorf("review = %d/%q, want 5/grew on me", reviews[0].Rating, reviews[0].Text)
	}
}

func TestReviewUpsert_PreservesCreatedAt(t *testing.T) {
	db, user, machine := reviewFixture(t)
	ctx := context.Background()

	first := &model.Review{UserID: user.ID, MachineID: machine.ID, Rating: 3}
	if err := db.Reviews().Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() first: %v", err)
	}
	original := first.CreatedAt

	second := &model.Review{UserID: user.ID, MachineID: machine.ID, Rating: 4}
	if err := db.Reviews().Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() second: %v", err)
	}

	if !second.CreatedAt.Equal(original) {
		t.Errorf("Upsert() changed CreatedAt: got %v, want %v", second.CreatedAt, original)
	}
}

// =========================================================================
// GET / DELETE TESTS
// =========================================================================

func TestReviewGetByID(t *testing.T) {
	db, user, machine := reviewFixture(t)
	ctx := context.Background()

	review := &model.Review{UserID: user.ID, MachineID: machine.ID, Rating: 1, Text: "broken VM"}
	if err := db.Reviews().Upsert(ctx, review); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	found, err := db.Reviews().GetByID(ctx, review.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.UserID != user.ID || found.MachineID != machine.ID || found.Rating != 1 {
		t.Errorf("GetByID() = %+v, want the stored review", found)
	}
}

func TestReviewGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Reviews().GetByID(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestReviewDelete(t *testing.T) {
	db, user, machine := reviewFixture(t)
	ctx := context.Background()

	review := &model.Review{UserID: user.ID, MachineID: machine.ID, Rating: 3}
	if err := db.Reviews().Upsert(ctx, review); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := db.Reviews().Delete(ctx, review.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Reviews().GetByID(ctx, review.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestReviewListForMachine_JoinsUsernamesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := createTestUser(t, db.Users(), "alice", model.RoleUser)
	bob := createTestUser(t, db.Users(), "bob", model.RoleUser)
	machine := createTestMachine(t, db.Machines(), "Popular", model.DifficultyHard)

	if err := db.Reviews().Upsert(ctx, &model.Review{UserID: alice.ID, MachineID: machine.ID, Rating: 5}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := db.Reviews().Upsert(ctx, &model.Review{UserID: bob.ID, MachineID: machine.ID, Rating: 2}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reviews, err := db.Reviews().ListForMachine(ctx, machine.ID)
	if err != nil {
		t.Fatalf("ListForMachine() error = %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("review count = %d, want 2", len(reviews))
	}

	// Identical created_at timestamps fall back to id DESC, so bob's
	// later review still comes first.
	if reviews[0].Username != "bob" || reviews[1].Username != "alice" {
		t.Errorf("usernames = %q, %q; want bob, alice",
			reviews[0].Username, reviews[1].Username)
	}
}

func TestReviewListForMachine_Empty(t *testing.T) {
	db := newTestDB(t)
	machine := createTestMachine(t, db.Machines(), "Quiet", model.DifficultyEasy)

	reviews, err := db.Reviews().ListForMachine(context.Background(), machine.ID)
	if err != nil {
		t.Fatalf("ListForMachine() error = %v", err)
	}
	if len(reviews) != 0 {
		t.Errorf("review count = %d, want 0", len(reviews))
	}
}
