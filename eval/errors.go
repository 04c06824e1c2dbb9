package eval

import (
	"errors"
	"fmt"

	"github.com/poiesic/docrag/core"
)

var (
	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = fmt.Errorf("%w: retriever required", core.ErrConfiguration)

	// ErrEmptyQuerySet is returned when a query set has no queries.
	ErrEmptyQuerySet = fmt.Errorf("%w: query set has no queries", core.ErrConfiguration)

	// ErrInvalidSearchK is returned when the search depth is below 5.
	ErrInvalidSearchK = fmt.Errorf("%w: search k must be at least 5", core.ErrConfiguration)

	// ErrInvalidRatio is returned for thresholds outside [0,1].
	ErrInvalidRatio = fmt.Errorf("%w: ratio must be within [0,1]", core.ErrConfiguration)

	// ErrUnknownGroundTruth is returned when a ground-truth entry names a query
	// that is not in the set.
	ErrUnknownGroundTruth = errors.New("ground truth for unknown query")
)
