// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retrieval

import (
	"errors"
	"fmt"

	"github.com/poiesic/docrag/core"
)

var (
	// ErrEmbedderRequired is returned when a query embedder is not provided.
	ErrEmbedderRequired = fmt.Errorf("%w: query embedder required", core.ErrConfiguration)

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = fmt.Errorf("%w: vector index required", core.ErrConfiguration)

	// ErrInvalidThreshold is returned when the low-confidence threshold is outside [0,1].
	ErrInvalidThreshold = fmt.Errorf("%w: low-confidence threshold must be within [0,1]", core.ErrConfiguration)

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query cannot be empty")
)
