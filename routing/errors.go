package routing

import "errors"

// ErrInvalidConfig is returned for invalid router settings.
var ErrInvalidConfig = errors.New("invalid router configuration")
