package gate

import "errors"

// Sentinel errors returned by Gate.Authorize. Denials wrap ErrUnauthorized.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoProfile    = errors.New("no profile for user")
)
