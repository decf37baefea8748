package metadata

import "errors"

var (
	// ErrMalformedRecord marks a stored record that could not be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidGUID marks an identifier that is not a 4-character lowercase code.
	ErrInvalidGUID = errors.New("invalid identifier")
)
