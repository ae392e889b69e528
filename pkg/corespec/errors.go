package corespec

import "errors"

var (
	// ErrInvalidParameters reports a slot parameter string that is neither hex nor decimal.
	ErrInvalidParameters = errors.New("invalid slot parameters")
	// ErrMalformedManifest reports a core manifest file that cannot be decoded.
	ErrMalformedManifest = errors.New("malformed core manifest")
)
