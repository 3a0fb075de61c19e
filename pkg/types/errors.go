package types

import "errors"

// Domain errors shared across pipeline stages
var (
	// ErrNoUnits is returned when an act declares no addressable units
	ErrNoUnits = errors.New("act declares no units")
	// ErrEmptyMarkup is returned when an act has units but no content
	ErrEmptyMarkup = errors.New("act has no markup")
	// ErrInvalidNro is returned for non-positive document numbers
	ErrInvalidNro = errors.New("nro must be positive")
	// ErrInvalidKeyword is returned when a keyword reference has no concept
	ErrInvalidKeyword = errors.New("keyword requires conceptId and instanceOfType")
)
