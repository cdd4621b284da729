package models

import "errors"

// Window errors. Raised pre-flight from the local clock check or mapped from a
// server rejection; either way the caller refreshes its market list and aborts
// the in-progress dialog.
var (
	ErrBettingClosed   = errors.New("betting closed")
	ErrAlreadyResolved = errors.New("market already resolved")
)

// Validation errors, detected before any network call.
var (
	ErrInvalidAddress = errors.New("invalid monero address")
	ErrBelowMinimum   = errors.New("amount below minimum bet")
	ErrInvalidSide    = errors.New("side must be YES or NO")
)
