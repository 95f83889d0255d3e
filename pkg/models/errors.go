package models

import "errors"

// Error taxonomy shared by the stores, the gateway and the handlers.
// Implementations wrap these with fmt.Errorf("...: %w", ...) and callers use errors.Is.
var (
	// ErrNotFound referenced idea or client is absent
	ErrNotFound = errors.New("not found")
	// ErrConflict state machine precondition violated (e.g. double approve)
	ErrConflict = errors.New("conflict")
	// ErrForbidden non-admin attempted a moderator-only action
	ErrForbidden = errors.New("forbidden")
	// ErrUpstream transcript, classification or transport call failed
	ErrUpstream = errors.New("upstream failure")
	// ErrStorage persistence operation could not be committed
	ErrStorage = errors.New("storage error")
	// ErrInvalidInput request is malformed (empty title, bad id)
	ErrInvalidInput = errors.New("invalid input")
)

// ErrRecognition is returned when a voice message produced no transcript
var ErrRecognition = &upstreamError{msg: "speech recognition failed"}

type upstreamError struct {
	msg string
}

func (e *upstreamError) Error() string { return e.msg }

func (e *upstreamError) Unwrap() error { return ErrUpstream }
