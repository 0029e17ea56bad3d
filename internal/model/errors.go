package model

import "errors"

// Domain-level sentinel errors. Layers above match on these with errors.Is
// and translate them into their own vocabulary (service sentinels, HTTP
// error codes).
var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
