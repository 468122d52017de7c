package service

import "errors"

// Stable failure kinds surfaced to callers. Handlers map them onto HTTP
// status codes; nothing here is retried by the services themselves.
var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
)
