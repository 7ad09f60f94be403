package services

import (
	"errors"
	"fmt"
)

var (
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrAccountNotActive  = errors.New("account is not active")
	ErrAlreadyConverted  = errors.New("lead already converted")
	ErrUnauthenticated   = errors.New("could not validate credentials")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrAlreadyVerified is a Conflict: the account left the pending state.
	ErrAlreadyVerified = fmt.Errorf("%w: email already verified", ErrConflict)
)
