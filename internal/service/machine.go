package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/auth"
	"github.com/tasave/tasave-go/internal/catalog"
	"github.com/tasave/tasave-go/internal/model"
	"github.com/tasave/tasave-go/internal/repository"
)

// Validation constants for machine uploads.
const (
	MaxMachineNameLength = 100
	MaxDescriptionLength = 10000
)

// MachineService handles the catalog: browsing, uploads, favorites, todos,
// and reviews. Privileged operations go through authz.RequirePermission
// before touching the store.
type MachineService struct {
	machines  repository.MachineRepository
	reviews   repository.ReviewRepository
	relations repository.RelationRepository
	authz     *AuthService
	logger    *slog.Logger
}

// NewMachineService creates a MachineService with all dependencies injected.
func NewMachineService(
	machines repository.MachineRepository,
	reviews repository.ReviewRepository,
	relations repository.RelationRepository,
	authz *AuthService,
	logger *slog.Logger,
) *MachineService {
	return &MachineService{
		machines:  machines,
		reviews:   reviews,
		relations: relations,
		authz:     authz,
		logger:    logger,
	}
}

// Browse returns one page of the catalog for the given user (0 =
// anonymous), after applying the search/difficulty/sort criteria.
// The heavy lifting is the catalog package's pure transform; this method
// just fetches the rows and picks the page size.
func (s *MachineService) Browse(ctx context.Context, userID int64, criteria catalog.Criteria, page int) (catalog.Page, error) {
	rows, err := s.machines.ListViewRows(ctx, userID)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("service/machine: listing catalog: %w", err)
	}

	filtered := catalog.FilterAndSort(rows, criteria)
	return catalog.Paginate(filtered, catalog.MachinesPerPage, page), nil
}

// MachineDetail is the machine page payload: the view row plus the
// machine's reviews with reviewer usernames.
type MachineDetail struct {
	catalog.ViewRow
	Reviews []model.Review `json:"reviews"`
}

// Get returns the detail view of one machine.
// Returns apperror.ErrNotFound if the machine doesn't exist.
func (s *MachineService) Get(ctx context.Context, id, userID int64) (*MachineDetail, error) {
	row, err := s.machines.GetViewRow(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	reviews, err := s.reviews.ListForMachine(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/machine: listing reviews for machine %d: %w", id, err)
	}

	return &MachineDetail{ViewRow: *row, Reviews: reviews}, nil
}

// UploadInput carries a new machine submission.
type UploadInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Difficulty   string `json:"difficulty"`
	Image        string `json:"image"`
	DownloadLink string `json:"downloadLink"`
	CreationDate string `json:"creationDate"`
}

// Upload creates a new catalog entry.
//
// Requires UPLOAD_MACHINE (contributor or admin). Name, difficulty, and
// download link are mandatory; both URLs must parse. The author field is
// stamped with the uploader's username, and the creation date defaults to
// today when the uploader leaves it blank.
func (s *MachineService) Upload(ctx context.Context, userID int64, in UploadInput) (*model.Machine, error) {
	user, err := s.authz.RequirePermission(ctx, userID, auth.ActionUploadMachine)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Name, difficulty, and download link are required")
	}
	if len(name) > MaxMachineNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("Machine name must be %d characters or less", MaxMachineNameLength))
	}
	if !model.ValidDifficulty(in.Difficulty) {
		return nil, apperror.ValidationFailed("difficulty",
			"Invalid difficulty. Must be: very_easy, easy, medium, or hard")
	}

	downloadLink := strings.TrimSpace(in.DownloadLink)
	if downloadLink == "" {
		return nil, apperror.ValidationFailed("downloadLink", "Name, difficulty, and download link are required")
	}
	if !validURL(downloadLink) {
		return nil, apperror.ValidationFailed("downloadLink", "Invalid download link URL")
	}

	image := strings.TrimSpace(in.Image)
	if image != "" && !validURL(image) {
		return nil, apperror.ValidationFailed("image", "Invalid image URL")
	}

	description := strings.TrimSpace(in.Description)
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("Description must be %d characters or less", MaxDescriptionLength))
	}

	creationDate := strings.TrimSpace(in.CreationDate)
	if creationDate == "" {
		creationDate = time.Now().Format("2006-01-02")
	}

	machine := &model.Machine{
		Name:         name,
		Description:  description,
		Difficulty:   model.Difficulty(in.Difficulty),
		Image:        image,
		DownloadLink: downloadLink,
		CreationDate: creationDate,
		Author:       user.Username,
	}
	if err := s.machines.Create(ctx, machine); err != nil {
		return nil, fmt.Errorf("service/machine: creating machine %q: %w", name, err)
	}

	s.logger.Info("machine uploaded",
		slog.Int64("machineID", machine.ID),
		slog.String("name", machine.Name),
		slog.String("author", machine.Author),
	)

	return machine, nil
}

// Delete removes a machine from the catalog. Requires DELETE_MACHINE
// (admin only). Dependent reviews/favorites/todos go with it.
func (s *MachineService) Delete(ctx context.Context, userID, machineID int64) error {
	if _, err := s.authz.RequirePermission(ctx, userID, auth.ActionDeleteMachine); err != nil {
		return err
	}

	if err := s.machines.Delete(ctx, machineID); err != nil {
		return err
	}

	s.logger.Info("machine deleted",
		slog.Int64("machineID", machineID),
		slog.Int64("by", userID),
	)
	return nil
}

// ToggleFavorite flips the caller's favorite flag on a machine and returns
// the new state. The machine must exist.
func (s *MachineService) ToggleFavorite(ctx context.Context, userID, machineID int64) (bool, error) {
	return s.toggle(ctx, repository.RelationFavorite, userID, machineID)
}

// ToggleTodo flips the caller's todo flag on a machine and returns the new
// state. The machine must exist.
func (s *MachineService) ToggleTodo(ctx context.Context, userID, machineID int64) (bool, error) {
	return s.toggle(ctx, repository.RelationTodo, userID, machineID)
}

func (s *MachineService) toggle(ctx context.Context, kind repository.RelationKind, userID, machineID int64) (bool, error) {
	if userID <= 0 {
		return false, apperror.Unauthenticated("Authentication required")
	}

	// A valid token can outlive its account. Resolve the caller before
	// writing so a stale token reads as unauthenticated, not as a foreign
	// key fault.
	if _, err := s.authz.UserByID(ctx, userID); err != nil {
		return false, err
	}

	// Confirm the machine exists so toggling a bogus ID is a 404, not a
	// silently-satisfied foreign key error.
	if _, err := s.machines.GetByID(ctx, machineID); err != nil {
		return false, err
	}

	active, err := s.relations.Toggle(ctx, kind, userID, machineID)
	if err != nil {
		return false, fmt.Errorf("service/machine: toggling %s: %w", kind, err)
	}
	return active, nil
}

// Review saves the caller's star rating (1–5) and optional text for a
// machine. A second review from the same user replaces the first.
func (s *MachineService) Review(ctx context.Context, userID, machineID int64, rating int, text string) (*model.Review, error) {
	if userID <= 0 {
		return nil, apperror.Unauthenticated("Authentication required")
	}
	if rating < 1 || rating > 5 {
		return nil, apperror.ValidationFailed("rating", "Rating must be between 1 and 5")
	}

	// Resolve the caller: a token for a deleted account must not reach
	// the write.
	if _, err := s.authz.UserByID(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.machines.GetByID(ctx, machineID); err != nil {
		return nil, err
	}

	review := &model.Review{
		UserID:    userID,
		MachineID: machineID,
		Rating:    rating,
		Text:      strings.TrimSpace(text),
	}
	if err := s.reviews.Upsert(ctx, review); err != nil {
		return nil, fmt.Errorf("service/machine: saving review: %w", err)
	}

	s.logger.Info("review saved",
		slog.Int64("machineID", machineID),
		slog.Int64("userID", userID),
		slog.Int("rating", rating),
	)

	return review, nil
}

// DeleteReview removes a review. Users delete their own; deleting someone
// else's requires MODERATE_REVIEWS (admin).
func (s *MachineService) DeleteReview(ctx context.Context, userID, reviewID int64) error {
	if userID <= 0 {
		return apperror.Unauthenticated("Authentication required")
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}

	if review.UserID != userID {
		if _, err := s.authz.RequirePermission(ctx, userID, auth.ActionModerateReviews); err != nil {
			return err
		}
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return err
	}

	s.logger.Info("review deleted",
		slog.Int64("reviewID", reviewID),
		slog.Int64("by", userID),
	)
	return nil
}

// Favorites returns the caller's favorited machines as view rows.
func (s *MachineService) Favorites(ctx context.Context, userID int64) ([]catalog.ViewRow, error) {
	return s.relationRows(ctx, userID, func(r catalog.ViewRow) bool { return r.IsFavorited })
}

// Todos returns the caller's todo-listed machines as view rows.
func (s *MachineService) Todos(ctx context.Context, userID int64) ([]catalog.ViewRow, error) {
	return s.relationRows(ctx, userID, func(r catalog.ViewRow) bool { return r.IsInTodo })
}

func (s *MachineService) relationRows(ctx context.Context, userID int64, keep func(catalog.ViewRow) bool) ([]catalog.ViewRow, error) {
	if userID <= 0 {
		return nil, apperror.Unauthenticated("Authentication required")
	}

	rows, err := s.machines.ListViewRows(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/machine: listing catalog: %w", err)
	}

	out := []catalog.ViewRow{}
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// validURL accepts absolute http(s) URLs only. url.Parse is permissive
// enough that "not-a-url" passes, so the scheme/host check does the work.
func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
