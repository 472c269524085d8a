package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/pass"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Ledger *booking.Ledger
	Passes *pass.Generator
	Events *sse.BookingEventEmitter
	Logger *logger.Logger
}

// NewHandler creates a new Handler instance. events may be nil, which disables streaming.
func NewHandler(ledger *booking.Ledger, passes *pass.Generator, events *sse.BookingEventEmitter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		Ledger: ledger,
		Passes: passes,
		Events: events,
		Logger: log,
	}
}

// RegisterRoutes mounts the booking routes. The router must already run auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/{bookingId}", h.GetBooking)
		r.Patch("/{bookingId}/lifecycle", h.UpdateLifecycle)
		r.Post("/{bookingId}/reschedule", h.RescheduleBooking)
		r.Get("/{bookingId}/pass", h.GetPass)
	})
	r.Post("/api/passes/check-in", h.CheckIn)
	r.Get("/api/resources/{resourceId}/bookings", h.ListResourceBookings)
	r.Get("/api/resources/{resourceId}/bookings/stream", h.StreamResourceBookings)
}

func actorOrReject(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", "no actor on request"))
	}
	return actor, ok
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}

	b, created, err := h.Ledger.CreateBooking(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.Logger, "booking rejected", err)
		return
	}

	status := http.StatusCreated
	message := "booking created"
	if !created {
		status = http.StatusOK
		message = "booking already exists"
	}
	utils.WriteJSON(w, status, utils.SuccessResponse(message, models.BookingResponse{Booking: *b, Replayed: !created}))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	b, err := h.Ledger.GetBooking(r.Context(), actor, chi.URLParam(r, "bookingId"))
	if err != nil {
		writeError(w, h.Logger, "booking lookup failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking", b))
}

func (h *Handler) UpdateLifecycle(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	var update models.LifecycleUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}

	b, err := h.Ledger.UpdateBookingLifecycle(r.Context(), actor, chi.URLParam(r, "bookingId"), update)
	if err != nil {
		writeError(w, h.Logger, "lifecycle update rejected", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking updated", b))
}

func (h *Handler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	var req models.RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}

	original, replacement, created, err := h.Ledger.RescheduleBooking(r.Context(), actor, chi.URLParam(r, "bookingId"), req)
	if err != nil {
		writeError(w, h.Logger, "reschedule rejected", err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	utils.WriteJSON(w, status, utils.SuccessResponse("booking rescheduled", models.RescheduleResponse{
		Original:    *original,
		Replacement: *replacement,
		Replayed:    !created,
	}))
}

// GetPass renders the check-in QR code of an active booking as PNG
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	b, err := h.Ledger.GetBooking(r.Context(), actor, chi.URLParam(r, "bookingId"))
	if err != nil {
		writeError(w, h.Logger, "booking lookup failed", err)
		return
	}

	png, err := h.Passes.PNG(*b)
	if err != nil {
		writeError(w, h.Logger, "pass unavailable", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// CheckIn accepts a scanned pass and moves its booking to checked_in.
// Expected POST request body: {"token": "base64_encrypted_string"}
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}
	if body.Token == "" {
		writeBadRequest(w, "invalid request body", errors.New("token is required"))
		return
	}

	payload, err := h.Passes.Open(body.Token)
	if err != nil {
		h.Logger.LogSecurity("PASS_REJECTED", err.Error())
		writeBadRequest(w, "invalid pass", err)
		return
	}
	if payload.TenantID != actor.TenantID {
		// passes from another tenant look like unknown bookings
		writeError(w, h.Logger, "invalid pass", booking.ErrNotFound)
		return
	}

	current, err := h.Ledger.GetBooking(r.Context(), actor, payload.BookingID)
	if err != nil {
		writeError(w, h.Logger, "check-in rejected", err)
		return
	}
	if !booking.IsActive(current.Status) {
		writeError(w, h.Logger, "check-in rejected", pass.ErrInactive)
		return
	}

	status := models.BookingStatusCheckedIn
	b, err := h.Ledger.UpdateBookingLifecycle(r.Context(), actor, payload.BookingID, models.LifecycleUpdate{Status: &status})
	if err != nil {
		writeError(w, h.Logger, "check-in rejected", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("checked in", b))
}

func (h *Handler) ListResourceBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeBadRequest(w, "invalid from", err)
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeBadRequest(w, "invalid to", err)
		return
	}
	activeOnly := false
	if v := q.Get("active"); v != "" {
		if activeOnly, err = strconv.ParseBool(v); err != nil {
			writeBadRequest(w, "invalid active", err)
			return
		}
	}

	bookings, err := h.Ledger.ListResourceBookings(r.Context(), actor, chi.URLParam(r, "resourceId"), from, to, activeOnly)
	if err != nil {
		writeError(w, h.Logger, "listing failed", err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d bookings", len(bookings)), bookings))
}

// parseTimeParam reads an RFC 3339 query value; empty means unbounded
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
