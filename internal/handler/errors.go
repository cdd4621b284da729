package handler

import (
	"errors"
	"net/http"

	"xmrbet/internal/models"
	"xmrbet/internal/powauth"
	"xmrbet/internal/service"
)

// errStatus maps domain errors onto HTTP status codes. Anything unrecognized
// is treated as an upstream failure.
func errStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrMarketNotFound),
		errors.Is(err, service.ErrBetNotFound),
		errors.Is(err, service.ErrSlipNotFound),
		errors.Is(err, service.ErrLegNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidAddress),
		errors.Is(err, models.ErrBelowMinimum),
		errors.Is(err, models.ErrInvalidSide),
		errors.Is(err, service.ErrEmptySlip),
		errors.Is(err, service.ErrNothingToUndo),
		errors.Is(err, powauth.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrBettingClosed),
		errors.Is(err, models.ErrAlreadyResolved),
		errors.Is(err, service.ErrSlipNotDraft),
		errors.Is(err, service.ErrCheckoutInFlight),
		errors.Is(err, service.ErrPayoutLocked):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
