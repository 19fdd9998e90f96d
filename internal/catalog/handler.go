// internal/catalog/handler.go
package catalog

import (
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

// Routes mounts the catalog query and enrollment-primitive API.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/courses", h.handleCourses)
	r.Get("/courses/{id}", h.handleGetCourse)
	r.Get("/courses/{id}/bundle-items", h.handleBundleItems)
	r.Get("/users/{userID}/enrollments", h.handleActiveEnrollments)
	r.Get("/users/{userID}/enrollments/{courseID}", h.handleGetEnrollment)
	r.Post("/users/{userID}/enrollments", h.handleEnroll)
	r.Delete("/users/{userID}/enrollments/{courseID}", h.handleCancel)
	r.Patch("/enrollments/{id}/status", h.handleSetStatus)
	r.Patch("/enrollments/{id}/source", h.handleSetSource)
}

// handleCourses serves both by-id and by-category lookups, matching the
// client's query-parameter contract.
func (h *Handler) handleCourses(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("category_ids"); raw != "" {
		categoryIDs, err := parseIDList(raw)
		if err != nil {
			http.Error(w, "invalid category_ids", http.StatusBadRequest)
			return
		}
		ids, err := h.service.CourseIDsInCategories(r.Context(), categoryIDs)
		if err != nil {
			h.log.Error("category course lookup", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if ids == nil {
			ids = []int64{}
		}
		json.NewEncoder(w).Encode(ids)
		return
	}

	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		http.Error(w, "invalid ids", http.StatusBadRequest)
		return
	}
	courses, err := h.service.CoursesByIDs(r.Context(), ids)
	if err != nil {
		h.log.Error("course lookup", zap.Int64s("ids", ids), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if courses == nil {
		courses = []Course{}
	}
	json.NewEncoder(w).Encode(courses)
}

func (h *Handler) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid course ID", http.StatusBadRequest)
		return
	}

	course, err := h.service.GetCourse(r.Context(), id)
	if errors.Is(err, ErrCourseNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get course", zap.Int64("course_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(course)
}

func (h *Handler) handleBundleItems(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid course ID", http.StatusBadRequest)
		return
	}

	ids, err := h.service.BundleCourseIDs(r.Context(), id)
	switch {
	case errors.Is(err, ErrCourseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrNotBundle):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.log.Error("bundle items", zap.Int64("bundle_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	json.NewEncoder(w).Encode(ids)
}

func (h *Handler) handleActiveEnrollments(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	enrollments, err := h.service.ActiveEnrollments(r.Context(), userID)
	if err != nil {
		h.log.Error("list enrollments", zap.Int64("user_id", userID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if enrollments == nil {
		enrollments = []Enrollment{}
	}

	json.NewEncoder(w).Encode(enrollments)
}

func (h *Handler) handleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := userCourseParams(w, r)
	if !ok {
		return
	}

	enrollment, err := h.service.GetEnrollment(r.Context(), userID, courseID)
	if errors.Is(err, ErrNotEnrolled) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get enrollment", zap.Int64("user_id", userID), zap.Int64("course_id", courseID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(enrollment)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		CourseID int64 `json:"course_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	enrollment, err := h.service.Enroll(r.Context(), userID, req.CourseID)
	if err != nil {
		h.log.Error("enroll", zap.Int64("user_id", userID), zap.Int64("course_id", req.CourseID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(enrollment)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := userCourseParams(w, r)
	if !ok {
		return
	}

	err := h.service.CancelEnrollment(r.Context(), userID, courseID)
	if errors.Is(err, ErrNotEnrolled) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("cancel enrollment", zap.Int64("user_id", userID), zap.Int64("course_id", courseID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid enrollment ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status EnrollmentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.service.SetEnrollmentStatus(r.Context(), id, req.Status)
	if errors.Is(err, ErrEnrollmentNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("set enrollment status", zap.Int64("enrollment_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid enrollment ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Source EnrollmentSource `json:"source"`
		Meta   SourceMeta       `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.service.SetEnrollmentSource(r.Context(), id, req.Source, req.Meta)
	if errors.Is(err, ErrEnrollmentNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("set enrollment source", zap.Int64("enrollment_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func userCourseParams(w http.ResponseWriter, r *http.Request) (userID, courseID int64, ok bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return 0, 0, false
	}
	courseID, err = strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid course ID", http.StatusBadRequest)
		return 0, 0, false
	}
	return userID, courseID, true
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
