package matching

import "errors"

// ErrInvalidConfig is returned for an invalid threshold or result limit.
var ErrInvalidConfig = errors.New("invalid matcher configuration")
