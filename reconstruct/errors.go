package reconstruct

import "errors"

var (
	// ErrChunkNotFound is returned when the center chunk does not exist.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrInvalidWindow is returned for negative windows or limits.
	ErrInvalidWindow = errors.New("invalid reconstruction window")

	// ErrNoSource is returned when no chunk source is configured.
	ErrNoSource = errors.New("no chunk source")
)
