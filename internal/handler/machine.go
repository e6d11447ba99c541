package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tasave/tasave-go/internal/apperror"
	"github.com/tasave/tasave-go/internal/auth"
	"github.com/tasave/tasave-go/internal/catalog"
	"github.com/tasave/tasave-go/internal/service"
)

// MachineHandler serves the catalog endpoints: browsing, uploads,
// favorites, todos, and reviews.
type MachineHandler struct {
	machines *service.MachineService
	logger   *slog.Logger
}

// NewMachineHandler creates a MachineHandler.
func NewMachineHandler(machines *service.MachineService, logger *slog.Logger) *MachineHandler {
	return &MachineHandler{
		machines: machines,
		logger:   logger,
	}
}

// HandleList returns one page of the catalog.
//
// HTTP: GET /api/machines?search=&difficulty=&sort=&page= (OptionalAuth)
// Anonymous callers get the catalog with favorite/todo flags false; an
// out-of-range page is an empty page, not an error.
func (h *MachineHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	q := r.URL.Query()
	criteria := catalog.Criteria{
		Search:     q.Get("search"),
		Difficulty: q.Get("difficulty"),
		Sort:       catalog.SortKey(q.Get("sort")),
	}

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	result, err := h.machines.Browse(r.Context(), userID, criteria, page)
	if err != nil {
		h.logger.Error("catalog browse failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGet returns the detail view of one machine, reviews included.
//
// HTTP: GET /api/machines/{id} (OptionalAuth)
func (h *MachineHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	detail, err := h.machines.Get(r.Context(), id, userID)
	if err != nil {
		h.logServiceError("machine get failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// HandleUpload creates a new catalog entry.
//
// HTTP: POST /api/machines (RequireAuth)
// 403 with the required roles when the caller is a plain user.
func (h *MachineHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in service.UploadInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	machine, err := h.machines.Upload(r.Context(), userID, in)
	if err != nil {
		h.logServiceError("machine upload failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Machine uploaded successfully",
		"machine": machine,
	})
}

// HandleDelete removes a machine (admin only).
//
// HTTP: DELETE /api/machines/{id} (RequireAuth)
func (h *MachineHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.machines.Delete(r.Context(), userID, id); err != nil {
		h.logServiceError("machine delete failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Machine deleted"})
}

// HandleToggleFavorite flips the caller's favorite flag on a machine.
//
// HTTP: POST /api/machines/{id}/favorite (RequireAuth)
func (h *MachineHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.machines.ToggleFavorite, "favorited")
}

// HandleToggleTodo flips the caller's todo flag on a machine.
//
// HTTP: POST /api/machines/{id}/todo (RequireAuth)
func (h *MachineHandler) HandleToggleTodo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.machines.ToggleTodo, "inTodo")
}

func (h *MachineHandler) toggle(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, userID, machineID int64) (bool, error),
	field string,
) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	active, err := fn(r.Context(), userID, id)
	if err != nil {
		h.logServiceError("toggle failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{field: active})
}

// reviewInput is the request body for submitting a review.
type reviewInput struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// HandleReview saves the caller's review of a machine (insert or replace).
//
// HTTP: PUT /api/machines/{id}/review (RequireAuth)
func (h *MachineHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	var in reviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	review, err := h.machines.Review(r.Context(), userID, id, in.Rating, in.Text)
	if err != nil {
		h.logServiceError("review failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, review)
}

// HandleDeleteReview removes a review: the author's own, or any review for
// an admin.
//
// HTTP: DELETE /api/reviews/{id} (RequireAuth)
func (h *MachineHandler) HandleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.machines.DeleteReview(r.Context(), userID, id); err != nil {
		h.logServiceError("review delete failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Review deleted"})
}

// HandleFavorites returns the caller's favorited machines.
//
// HTTP: GET /api/favorites (RequireAuth)
func (h *MachineHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	h.relationList(w, r, h.machines.Favorites)
}

// HandleTodos returns the caller's todo list.
//
// HTTP: GET /api/todos (RequireAuth)
func (h *MachineHandler) HandleTodos(w http.ResponseWriter, r *http.Request) {
	h.relationList(w, r, h.machines.Todos)
}

func (h *MachineHandler) relationList(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, userID int64) ([]catalog.ViewRow, error),
) {
	userID, _ := auth.UserIDFromContext(r.Context())

	rows, err := fn(r.Context(), userID)
	if err != nil {
		h.logServiceError("relation list failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// pathID parses the {name} URL parameter as a positive integer ID.
// Writes a 404 and returns ok=false when it isn't one — a non-numeric ID
// can't name any resource.
func (h *MachineHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperror.NotFound("resource", raw))
		return 0, false
	}
	return id, true
}

// logServiceError mirrors AuthHandler.logError: expected rejections at
// debug, infrastructure faults at error.
func (h *MachineHandler) logServiceError(msg string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		h.logger.Debug(msg, slog.String("error", err.Error()))
		return
	}
	h.logger.Error(msg, slog.String("error", err.Error()))
}
