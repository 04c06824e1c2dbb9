package chunk

import "errors"

var (
	// ErrInvalidMaxTokens is returned when the chunk bound is not positive.
	ErrInvalidMaxTokens = errors.New("max tokens must be greater than 0")

	// ErrInvalidOverlap is returned when the overlap is negative or not smaller than the bound.
	ErrInvalidOverlap = errors.New("overlap tokens must be >= 0 and smaller than max tokens")

	// ErrTokenizerRequired is returned when a nil tokenizer is supplied.
	ErrTokenizerRequired = errors.New("tokenizer required")
)
