package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/docrag/core"
)

var (
	// ErrPageSourceRequired is returned when a page source is not provided.
	ErrPageSourceRequired = fmt.Errorf("%w: page source required", core.ErrConfiguration)

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = fmt.Errorf("%w: chunker required", core.ErrConfiguration)

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = fmt.Errorf("%w: embedder required", core.ErrConfiguration)

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = fmt.Errorf("%w: vector index required", core.ErrConfiguration)

	// ErrNoRoots is returned when Run is called without roots.
	ErrNoRoots = fmt.Errorf("%w: at least one root url required", core.ErrConfiguration)

	// ErrInvalidPrefetch is returned when the prefetch window is not positive.
	ErrInvalidPrefetch = errors.New("prefetch must be greater than 0")
)
