package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrJobFailed          = errors.New("generation job failed")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrSubmissionInFlight = errors.New("submission in flight")
	ErrTerminalJob        = errors.New("job already terminal")
)
