// internal/reconcile/handler.go
package reconcile

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler exposes the engine's entry points as webhook routes. The billing
// and catalog subsystems do not expect callback failures to interrupt
// their own lifecycle, so engine errors are logged and absorbed here; only
// an undecodable payload earns an error status.
type Handler struct {
	service Service
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		log:     logger,
	}
}

// Routes mounts the webhook surface.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/hooks/checkout-completed", h.handleCheckoutCompleted)
	r.Post("/hooks/level-changed", h.handleLevelChanged)
	r.Post("/hooks/levels-changed", h.handleLevelsChanged)
	r.Post("/hooks/order-refunded", h.handleOrderRefunded)
	r.Post("/hooks/membership-cancelled", h.handleMembershipCancelled)
	r.Post("/hooks/enrollment-completed", h.handleEnrollmentCompleted)
}

// orderPayload is the wire shape of the maybe-absent order value billing
// events carry. It is decoded defensively into an OrderRef at this
// boundary and never passed deeper as an ambiguous nullable.
type orderPayload struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	UserID  int64  `json:"user_id"`
	LevelID int64  `json:"level_id"`
}

func orderRefOf(p *orderPayload) OrderRef {
	if p == nil || p.ID == 0 {
		return OrderRef{}
	}
	return OrderRef{
		Valid:     true,
		OrderID:   p.ID,
		OrderCode: p.Code,
		UserID:    p.UserID,
		LevelID:   p.LevelID,
	}
}

func (h *Handler) handleCheckoutCompleted(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w) {
		return
	}

	var req struct {
		UserID  int64         `json:"user_id"`
		LevelID int64         `json:"level_id"`
		Order   *orderPayload `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.absorb(w, "checkout-completed",
		h.service.CheckoutCompleted(r.Context(), req.UserID, req.LevelID, orderRefOf(req.Order)))
}

func (h *Handler) handleLevelChanged(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w) {
		return
	}

	var req struct {
		UserID            int64   `json:"user_id"`
		LevelID           int64   `json:"level_id"`
		CancelledLevelIDs []int64 `json:"cancelled_level_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.absorb(w, "level-changed",
		h.service.LevelChanged(r.Context(), req.UserID, req.LevelID, req.CancelledLevelIDs))
}

func (h *Handler) handleLevelsChanged(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w) {
		return
	}

	var req struct {
		Changes []MemberChange `json:"changes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.absorb(w, "levels-changed",
		h.service.LevelsChangedBatch(r.Context(), req.Changes))
}

func (h *Handler) handleOrderRefunded(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w) {
		return
	}

	var req struct {
		Order *orderPayload `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.absorb(w, "order-refunded",
		h.service.OrderRefunded(r.Context(), orderRefOf(req.Order)))
}

func (h *Handler) handleMembershipCancelled(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w) {
		return
	}

	var req struct {
		UserID  int64 `json:"user_id"`
		LevelID int64 `json:"level_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.absorb(w, "membership-cancelled",
		h.service.MembershipCancelled(r.Context(), req.UserID, req.LevelID))
}

func (h *Handler) handleEnrollmentCompleted(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w) {
		return
	}

	var req struct {
		EnrollmentID int64 `json:"enrollment_id"`
		UserID       int64 `json:"user_id"`
		CourseID     int64 `json:"course_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.absorb(w, "enrollment-completed",
		h.service.EnrollmentCompleted(r.Context(), req.EnrollmentID, req.UserID, req.CourseID))
}

func (h *Handler) allow(w http.ResponseWriter) bool {
	if !h.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}

func (h *Handler) absorb(w http.ResponseWriter, hook string, err error) {
	if err != nil {
		h.log.Error("hook processing failed", zap.String("hook", hook), zap.Error(err))
	}
	w.WriteHeader(http.StatusAccepted)
}
