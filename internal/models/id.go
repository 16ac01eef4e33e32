package models

import (
	"errors"

	"github.com/google/uuid"
)

// ErrMissingRowID indicates a row keyed by an external identifier arrived without one.
var ErrMissingRowID = errors.New("models: row id required")

// NewID issues a UUIDv7 identifier, falling back to a random UUID.
func NewID() string {
	value, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return value.String()
}

func assignID(id *string) {
	if *id == "" {
		*id = NewID()
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
