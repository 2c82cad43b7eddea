package forecast

import "errors"

// Sentinel kinds for report construction errors.
var (
	ErrInvalidPeriods      = errors.New("periods must be positive")
	ErrUnknownGranularity  = errors.New("unknown granularity")
	ErrUnknownView         = errors.New("unknown view")
	ErrNonContiguousBucket = errors.New("buckets must be contiguous and chronological")
)
