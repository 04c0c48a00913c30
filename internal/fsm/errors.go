package fsm

import "errors"

// ErrInvalidTransition is wrapped by every rejected transition so callers can
// match on it with errors.Is regardless of entity kind.
var ErrInvalidTransition = errors.New("invalid state transition")
