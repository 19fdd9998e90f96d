// internal/billing/handler.go
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, log: logger}
}

// Routes mounts the billing query API.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/levels/{id}", h.handleGetLevel)
	r.Get("/levels/pages", h.handleRestrictedPages)
	r.Get("/levels/bound-courses", h.handleBoundCourses)
	r.Get("/users/{userID}/levels", h.handleUserLevels)
	r.Get("/orders/{id}", h.handleGetOrder)
}

func (h *Handler) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid level ID", http.StatusBadRequest)
		return
	}

	level, err := h.service.GetLevel(r.Context(), id)
	if errors.Is(err, ErrLevelNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get level", zap.Int64("level_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(level)
}

func (h *Handler) handleUserLevels(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	levels, err := h.service.LevelsForUser(r.Context(), userID)
	if err != nil {
		h.log.Error("list user levels", zap.Int64("user_id", userID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if levels == nil {
		levels = []Level{}
	}

	json.NewEncoder(w).Encode(levels)
}

func (h *Handler) handleRestrictedPages(w http.ResponseWriter, r *http.Request) {
	h.respondIDs(w, r, h.service.RestrictedPageIDs)
}

func (h *Handler) handleBoundCourses(w http.ResponseWriter, r *http.Request) {
	h.respondIDs(w, r, h.service.BoundCourseIDs)
}

func (h *Handler) respondIDs(w http.ResponseWriter, r *http.Request, query func(ctx context.Context, levelIDs []int64) ([]int64, error)) {
	levelIDs, err := parseIDList(r.URL.Query().Get("level_ids"))
	if err != nil {
		http.Error(w, "invalid level_ids", http.StatusBadRequest)
		return
	}

	ids, err := query(r.Context(), levelIDs)
	if err != nil {
		h.log.Error("level id lookup", zap.Int64s("level_ids", levelIDs), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	json.NewEncoder(w).Encode(ids)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order ID", http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if errors.Is(err, ErrOrderNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get order", zap.Int64("order_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(order)
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
