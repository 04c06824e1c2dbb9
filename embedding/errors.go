package embedding

import "errors"

var (
	// ErrEmbedderRequired is returned when no provider embedder is supplied.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidMaxRetries is returned when MaxRetries is negative.
	ErrInvalidMaxRetries = errors.New("max retries must not be negative")

	// ErrInvalidBackoff is returned for a negative delay or a multiplier below 1.
	ErrInvalidBackoff = errors.New("invalid backoff")

	// ErrSleeperRequired is returned when a nil Sleeper is supplied.
	ErrSleeperRequired = errors.New("sleeper required")

	// ErrInvalidMode is returned for an undefined embed mode.
	ErrInvalidMode = errors.New("invalid embed mode")
)
