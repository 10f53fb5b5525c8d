package extraction

import "errors"

var (
	// ErrInvalidCategory is returned for a malformed category table.
	ErrInvalidCategory = errors.New("invalid concept category")
)
