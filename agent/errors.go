package agent

import (
	"errors"
	"fmt"

	"github.com/poiesic/docrag/core"
)

var (
	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = fmt.Errorf("%w: generator required", core.ErrConfiguration)

	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = fmt.Errorf("%w: retriever required", core.ErrConfiguration)

	// ErrSessionStoreRequired is returned when a session store is not provided.
	ErrSessionStoreRequired = fmt.Errorf("%w: session store required", core.ErrConfiguration)

	// ErrInvalidMaxToolCalls is returned for a non-positive tool budget.
	ErrInvalidMaxToolCalls = fmt.Errorf("%w: max tool calls must be positive", core.ErrConfiguration)

	// ErrInvalidRequest indicates a chat request failed validation.
	ErrInvalidRequest = errors.New("invalid chat request")
)
