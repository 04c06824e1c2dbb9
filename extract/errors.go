package extract

import "errors"

var (
	// ErrHTTPClientRequired is returned when a nil HTTP client is supplied.
	ErrHTTPClientRequired = errors.New("http client required")

	// ErrInvalidMaxPages is returned when the crawl bound is not positive.
	ErrInvalidMaxPages = errors.New("max pages must be greater than 0")
)
