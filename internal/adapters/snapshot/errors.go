package snapshot

import "errors"

// Sentinel kinds for cache errors. Both mean "rebuild from the journal".
var (
	ErrCacheMiss  = errors.New("snapshot cache is missing")
	ErrStaleCache = errors.New("snapshot cache does not match the journal")
)
