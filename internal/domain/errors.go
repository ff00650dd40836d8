package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrAlreadyUsed        = errors.New("code already used")
	ErrAttemptsExceeded   = errors.New("attempts exceeded")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrUnsupportedChannel = errors.New("unsupported channel")
	ErrStore              = errors.New("store error")
)
