package apperrors

import "errors"

// Domain error taxonomy. Services return these (possibly wrapped with %w) so
// callers can branch with errors.Is instead of string matching.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrDuplicatePending  = errors.New("pending request already exists")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyMember     = errors.New("already a member")
	ErrNoConnection      = errors.New("users are not connected")
	ErrStoreUnavailable  = errors.New("store unavailable")
)
