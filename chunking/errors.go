package chunking

import "errors"

var (
	// ErrInvalidChunkConfig is returned for a non-positive target size or an
	// overlap outside [0, targetSize).
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)
