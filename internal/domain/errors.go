package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live room exists for a PIN.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoSnapshot is returned when the store holds no snapshot for a PIN.
	ErrNoSnapshot = errors.New("no snapshot for pin")
	// ErrQuizNotFound indicates a catalog quiz ID could not be resolved.
	ErrQuizNotFound = errors.New("quiz not found")
)
