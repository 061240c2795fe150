package phishing

import "errors"

var (
	// ErrInvalidURL is returned when a URL has no parseable scheme and host
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidConfig is returned for malformed tables, weights or thresholds
	ErrInvalidConfig = errors.New("invalid phishing configuration")
)
