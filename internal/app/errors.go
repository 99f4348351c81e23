package app

import "errors"

// Sentinel errors mapped to HTTP statuses at the server layer.
var (
	// ErrNotFound maps to 404.
	ErrNotFound = errors.New("not found")
	// ErrForbidden maps to 403.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials maps to 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken maps to 409.
	ErrEmailTaken = errors.New("email already registered")
	// ErrConflict maps to 409, for lost races such as a concurrent bid accept.
	ErrConflict = errors.New("conflict")
	// ErrNotBiddable maps to 400: only listed marketplace vehicles take bids.
	ErrNotBiddable = errors.New("vehicle is not open for bids")
	// ErrDisabled maps to 503: the feature is not configured.
	ErrDisabled = errors.New("feature disabled")
)
