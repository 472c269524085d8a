package analytics_api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/analytics"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Get("/bookings", h.GetStatusBreakdown)
	})
}

// GetStatusBreakdown returns per-resource booking counts by status for the caller's tenant.
// Optional from/to are RFC 3339 and bound start_at.
func (h *Handler) GetStatusBreakdown(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", "no actor on request"))
		return
	}

	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid from", err.Error()))
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid to", err.Error()))
		return
	}

	result, err := h.Service.StatusBreakdown(r.Context(), actor.TenantID, from, to)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidTimeRange) || errors.Is(err, booking.ErrInvalidRequest) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid range", err.Error()))
			return
		}
		h.Logger.Error("ANALYTICS", fmt.Sprintf("status breakdown for %s: %v", actor.TenantID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("analytics unavailable", "internal error"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking status breakdown", result))
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
