package booking_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/pass"
	"ms-booking/internal/utils"
)

// Error codes returned in APIResponse.Code
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidTimeRange = "INVALID_TIME_RANGE"
	CodeInvalidAttendees = "INVALID_ATTENDEE_COUNT"
	CodeTimezoneRequired = "TIMEZONE_REQUIRED"
	CodeInvalidTimezone  = "INVALID_TIMEZONE"
	CodeOverlapConflict  = "OVERLAP_CONFLICT"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidStatus    = "INVALID_STATUS"
	CodeBookingInactive  = "BOOKING_INACTIVE"
	CodeUnavailable      = "UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// ConflictDetails is the data payload of a 409 overlap response
type ConflictDetails struct {
	ResourceID           string `json:"resource_id"`
	ConflictingBookingID string `json:"conflicting_booking_id,omitempty"`
}

// statusFor maps ledger errors onto HTTP status and error code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, booking.ErrInvalidTimeRange):
		return http.StatusBadRequest, CodeInvalidTimeRange
	case errors.Is(err, booking.ErrInvalidAttendeeCount):
		return http.StatusBadRequest, CodeInvalidAttendees
	case errors.Is(err, booking.ErrInvalidTimezone):
		return http.StatusBadRequest, CodeInvalidTimezone
	case errors.Is(err, booking.ErrTimezoneRequired):
		return http.StatusUnprocessableEntity, CodeTimezoneRequired
	case errors.Is(err, booking.ErrInvalidStatus):
		return http.StatusUnprocessableEntity, CodeInvalidStatus
	case errors.Is(err, booking.ErrOverlapConflict):
		return http.StatusConflict, CodeOverlapConflict
	case errors.Is(err, pass.ErrInactive):
		return http.StatusConflict, CodeBookingInactive
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrUnknownResource),
		errors.Is(err, booking.ErrUnknownTenant):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, message string, err error) {
	status, code := statusFor(err)
	resp := utils.ErrorResponse(message, err.Error()).WithCode(code)

	var conflict *booking.OverlapConflictError
	if errors.As(err, &conflict) {
		resp.Data = ConflictDetails{
			ResourceID:           conflict.ResourceID,
			ConflictingBookingID: conflict.ConflictingBookingID,
		}
	}
	if status == http.StatusInternalServerError {
		log.Error("API", fmt.Sprintf("%s: %v", message, err))
		// internals stay in the log
		resp.Error = "internal error"
	}
	utils.WriteJSON(w, status, resp)
}

func writeBadRequest(w http.ResponseWriter, message string, err error) {
	utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse(message, err.Error()).WithCode(CodeInvalidRequest))
}
