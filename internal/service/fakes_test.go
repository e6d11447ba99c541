package service

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/auth"
	"github.com/tasave/tasave-go/internal/catalog"
	"github.com/tasave/tasave-go/internal/model"
	"github.com/tasave/tasave-go/internal/repository"
)

// In-memory fakes for the repository interfaces. Hand-written instead of a
// mock framework so each test reads as plain Go — what the fake stores is
// exactly what the test can assert on.

// =========================================================================
// fakeUserRepo
// =========================================================================

type fakeUserRepo struct {
	users  map[int64]*model.User
	byName map[string]*model.User
	nextID int64

	// set to a non-nil error to simulate a database failure
	getErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[int64]*model.User),
		byName: make(map[string]*model.User),
		nextID: 1,
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if _, taken := f.byName[user.Username]; taken {
		return apperror.Conflict("username", "Username already exists")
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	f.byName[user.Username] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	return u, nil
}

func (f *fakeUserRepo) UpdateRole(ctx context.Context, username string, role model.Role) (*model.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	return u, nil
}

// addUser seeds the fake with a user of the given role and returns it.
func (f *fakeUserRepo) addUser(t *testing.T, username string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "irrelevant", Role: role}
	if err := f.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding fake user %q: %v", username, err)
	}
	return u
}

// =========================================================================
// fakeMachineRepo
// =========================================================================

type fakeMachineRepo struct {
	machines map[int64]*model.Machine
	nextID   int64
	// per-user relation flags, mirrored by fakeRelationRepo
	favorites map[[2]int64]bool
	todos     map[[2]int64]bool
	// review stats per machine for view rows
	reviewCount map[int64]int
	avgRating   map[int64]float64

	listErr error
}

func newFakeMachineRepo() *fakeMachineRepo {
	return &fakeMachineRepo{
		machines:    make(map[int64]*model.Machine),
		nextID:      1,
		favorites:   make(map[[2]int64]bool),
		todos:       make(map[[2]int64]bool),
		reviewCount: make(map[int64]int),
		avgRating:   make(map[int64]float64),
	}
}

func (f *fakeMachineRepo) Create(ctx context.Context, m *model.Machine) error {
	m.ID = f.nextID
	f.nextID++
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	copied := *m
	f.machines[m.ID] = &copied
	return nil
}

func (f *fakeMachineRepo) GetByID(ctx context.Context, id int64) (*model.Machine, error) {
	m, ok := f.machines[id]
	if !ok {
		return nil, apperror.NotFound("machine", strconv.FormatInt(id, 10))
	}
	return m, nil
}

func (f *fakeMachineRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.machines[id]; !ok {
		return apperror.NotFound("machine", strconv.FormatInt(id, 10))
	}
	delete(f.machines, id)
	return nil
}

func (f *fakeMachineRepo) viewRow(m *model.Machine, userID int64) catalog.ViewRow {
	return catalog.ViewRow{
		Machine:       *m,
		IsFavorited:   f.favorites[[2]int64{userID, m.ID}],
		IsInTodo:      f.todos[[2]int64{userID, m.ID}],
		ReviewCount:   f.reviewCount[m.ID],
		AverageRating: f.avgRating[m.ID],
	}
}

func (f *fakeMachineRepo) ListViewRows(ctx context.Context, userID int64) ([]catalog.ViewRow, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []catalog.ViewRow{}
	for id := int64(1); id < f.nextID; id++ {
		if m, ok := f.machines[id]; ok {
			out = append(out, f.viewRow(m, userID))
		}
	}
	return out, nil
}

func (f *fakeMachineRepo) GetViewRow(ctx context.Context, id, userID int64) (*catalog.ViewRow, error) {
	m, ok := f.machines[id]
	if !ok {
		return nil, apperror.NotFound("machine", strconv.FormatInt(id, 10))
	}
	row := f.viewRow(m, userID)
	return &row, nil
}

// addMachine seeds the fake with a minimal valid machine.
func (f *fakeMachineRepo) addMachine(t *testing.T, name string, diff model.Difficulty) *model.Machine {
	t.Helper()
	m := &model.Machine{Name: name, Difficulty: diff, DownloadLink: "https://example.com/m.ova"}
	if err := f.Create(context.Background(), m); err != nil {
		t.Fatalf("seeding fake machine %q: %v", name, err)
	}
	return m
}

// =========================================================================
// fakeReviewRepo
// =========================================================================

type fakeReviewRepo struct {
	reviews map[int64]*model.Review
	nextID  int64
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{reviews: make(map[int64]*model.Review), nextID: 1}
}

func (f *fakeReviewRepo) Upsert(ctx context.Context, review *model.Review) error {
	for _, r := range f.reviews {
		if r.UserID == review.UserID && r.MachineID == review.MachineID {
			r.Rating = review.Rating
			r.Text = review.Text
			r.UpdatedAt = time.Now()
			*review = *r
			return nil
		}
	}
	review.ID = f.nextID
	f.nextID++
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	copied := *review
	f.reviews[review.ID] = &copied
	return nil
}

func (f *fakeReviewRepo) GetByID(ctx context.Context, id int64) (*model.Review, error) {
	r, ok := f.reviews[id]
	if !ok {
		return nil, apperror.NotFound("review", strconv.FormatInt(id, 10))
	}
	return r, nil
}

func (f *fakeReviewRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.reviews[id]; !ok {
		return apperror.NotFound("review", strconv.FormatInt(id, 10))
	}
	delete(f.reviews, id)
	return nil
}

func (f *fakeReviewRepo) ListForMachine(ctx context.Context, machineID int64) ([]model.Review, error) {
	out := []model.Review{}
	for _, r := range f.reviews {
		if r.MachineID == machineID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// =========================================================================
// fakeRelationRepo
// =========================================================================

// fakeRelationRepo writes through to the machine fake's flag maps so view
// rows reflect toggles, the way the SQL joins do.
type fakeRelationRepo struct {
	machines *fakeMachineRepo
}

func (f *fakeRelationRepo) Toggle(ctx context.Context, kind repository.RelationKind, userID, machineID int64) (bool, error) {
	var flags map[[2]int64]bool
	switch kind {
	case repository.RelationFavorite:
		flags = f.machines.favorites
	case repository.RelationTodo:
		flags = f.machines.todos
	default:
		return false, apperror.ValidationFailed("kind", "unknown relation kind")
	}
	key := [2]int64{userID, machineID}
	if flags[key] {
		delete(flags, key)
		return false, nil
	}
	flags[key] = true
	return true, nil
}

// =========================================================================
// SERVICE CONSTRUCTORS FOR TESTS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAuthService returns an AuthService wired with the fake user repo.
// Bcrypt cost 4 keeps each hash in the microsecond range.
func newTestAuthService(t *testing.T, users *fakeUserRepo) *AuthService {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(users, tokens, auth.NewPasswordServiceForTest(4), testLogger())
}

// machineFixture wires a MachineService over fresh fakes and returns the
// pieces tests poke at.
func machineFixture(t *testing.T) (*MachineService, *fakeUserRepo, *fakeMachineRepo, *fakeReviewRepo) {
	t.Helper()

	users := newFakeUserRepo()
	machines := newFakeMachineRepo()
	reviews := newFakeReviewRepo()
	relations := &fakeRelationRepo{machines: machines}

	authz := newTestAuthService(t, users)
	svc := NewMachineService(machines, reviews, relations, authz, testLogger())
	return svc, users, machines, reviews
}
