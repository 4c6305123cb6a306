// Package shared contains common domain types and errors used across
// the profile, music and matching packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")

	// State errors
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Concurrency errors
	ErrLockNotAcquired = errors.New("lock not acquired")

	// External service errors
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("operation timeout")
	ErrRateLimited         = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "profile", "matching", "catalog"
	Op      string // Operation that failed, e.g., "Like", "Discover"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Profile domain errors
var (
	ErrUserNotFound   = NewDomainError("profile", "FindUser", ErrNotFound, "user profile not found")
	ErrArtistNotFound = NewDomainError("profile", "FindArtist", ErrNotFound, "artist not found")
	ErrGenreNotFound  = NewDomainError("profile", "FindGenre", ErrNotFound, "genre not found")
	ErrEmptyUserID    = NewDomainError("profile", "Validate", ErrInvalidID, "user ID is required")
)

// Matching domain errors
var (
	ErrMatchNotFound            = NewDomainError("matching", "FindMatch", ErrNotFound, "match not found")
	ErrSelfMatch                = NewDomainError("matching", "Validate", ErrInvalidInput, "cannot match a user with themselves")
	ErrInvalidOutcomeTransition = NewDomainError("matching", "Transition", ErrStateTransition, "invalid match outcome transition")
	ErrOutcomeChanged           = NewDomainError("matching", "Transition", ErrStateTransition, "match outcome changed concurrently")
	ErrNotMutual                = NewDomainError("matching", "UpsertMutual", ErrStateTransition, "like is no longer mutual")
)

// Recommendation domain errors
var (
	ErrTrackNotRecommended    = NewDomainError("recommendation", "FindTrack", ErrNotFound, "track was never recommended to this user")
	ErrInvalidTrackTransition = NewDomainError("recommendation", "Transition", ErrStateTransition, "invalid track outcome transition")
	ErrInvalidRequestedCount  = NewDomainError("recommendation", "Validate", ErrInvalidInput, "requested count out of range")
	ErrEmptyTrackID           = NewDomainError("recommendation", "Validate", ErrInvalidID, "track ID is required")
)

// External service errors
var (
	ErrMissingAccessToken     = NewDomainError("catalog", "Validate", ErrUnauthorized, "access token is required")
	ErrPlaylistNotFound       = NewDomainError("catalog", "FindPlaylist", ErrNotFound, "playlist not found")
	ErrCatalogUnavailable     = NewDomainError("catalog", "Request", ErrUpstreamUnavailable, "music catalog is unavailable")
	ErrCatalogRateLimited     = NewDomainError("catalog", "Request", ErrRateLimited, "music catalog rate limit exceeded")
	ErrCatalogTimeout         = NewDomainError("catalog", "Request", ErrTimeout, "music catalog request timeout")
	ErrCatalogInvalidResponse = NewDomainError("catalog", "Parse", ErrUpstreamUnavailable, "invalid response from music catalog")
	ErrCatalogUnauthorized    = NewDomainError("catalog", "Request", ErrUnauthorized, "access token rejected by music catalog")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput)
}

// IsStateTransition checks if the error is a rejected state machine transition.
func IsStateTransition(err error) bool {
	return errors.Is(err, ErrStateTransition)
}

// IsUpstream checks if the error comes from the music catalog.
// Rate limiting counts as upstream unavailability for callers.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrLockNotAcquired)
}
