package domain

import "errors"

var (
	// ErrSessionExpired is returned when an operation needs an active quiz session and there is none.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidIndex is returned for a missing or out-of-range question index.
	ErrInvalidIndex = errors.New("invalid question index")
	// ErrUpstreamGeneration marks a failed question generation call; it is recovered with fallback questions.
	ErrUpstreamGeneration = errors.New("question generation failed")
	// ErrReportFailed indicates the narrative report could not be produced.
	ErrReportFailed = errors.New("report generation failed")
	// ErrPersistence wraps failures writing results to the store.
	ErrPersistence = errors.New("persisting results failed")
	// ErrUserNotFound is returned when no account matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned on sign-up with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned when a request carries no valid identity.
	ErrUnauthenticated = errors.New("not signed in")
)
