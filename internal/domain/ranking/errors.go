package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrUnknownPolicy = errors.New("unknown rank policy")
	ErrNotContiguous = errors.New("ranks are not contiguous")
)
