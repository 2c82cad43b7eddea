package availability

import "errors"

// Sentinel kinds for availability errors.
var (
	ErrInvalidConvention = errors.New("invalid working-day convention")
)
