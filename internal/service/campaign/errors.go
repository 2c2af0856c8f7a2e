package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	// ErrNotFound means the referenced campaign, send, or subscriber does
	// not exist. Surfaced to the caller, no retry.
	ErrNotFound = errors.New("campaign not found")

	// ErrInvalidState means an operation was attempted from a status that
	// forbids it (dispatch on a draft, prepare on a sending campaign).
	// The caller must re-check status before retrying.
	ErrInvalidState = errors.New("invalid status transition")

	// ErrLocked means another dispatcher currently holds the campaign's
	// dispatch lock.
	ErrLocked = errors.New("campaign dispatch already in progress")
)
