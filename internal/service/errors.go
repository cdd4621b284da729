package service

import "errors"

var (
	ErrMarketNotFound   = errors.New("market not found")
	ErrBetNotFound      = errors.New("bet not found")
	ErrSlipNotFound     = errors.New("slip not found")
	ErrLegNotFound      = errors.New("leg not found")
	ErrEmptySlip        = errors.New("slip has no legs")
	ErrSlipNotDraft     = errors.New("slip legs are frozen after checkout")
	ErrCheckoutInFlight = errors.New("checkout already in progress")
	ErrNothingToUndo    = errors.New("no removed leg to restore")
	ErrPayoutLocked     = errors.New("payout address can no longer be changed")
	ErrRateUnavailable  = errors.New("exchange rate unavailable")
)
