package reembed

import (
	"errors"
	"fmt"

	"github.com/poiesic/docrag/core"
)

var (
	// ErrIndexRequired is returned when no index is given.
	ErrIndexRequired = fmt.Errorf("%w: index required", core.ErrConfiguration)

	// ErrEmbedderRequired is returned when no embedder is given.
	ErrEmbedderRequired = fmt.Errorf("%w: embedder required", core.ErrConfiguration)

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = fmt.Errorf("%w: batch size must be greater than 0", core.ErrConfiguration)

	// ErrScanUnsupported is returned when the index cannot enumerate its entries.
	ErrScanUnsupported = errors.New("index does not support scanning")
)
