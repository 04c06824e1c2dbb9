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


package core

import (
	"errors"
	"fmt"
)

// Error taxonomy
var (
	// ErrFetch indicates a page could not be retrieved.
	ErrFetch = errors.New("fetch failed")

	// ErrParse indicates a page has no identifiable main content.
	ErrParse = errors.New("parse failed")

	// ErrEmbedding indicates an embedding batch failed after exhausting retries.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexUnavailable indicates the vector index could not be reached.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrConfiguration indicates missing or invalid configuration.
	ErrConfiguration = errors.New("invalid configuration")
)

// Validation errors
var (
	// ErrInvalidTurn indicates a ConversationTurn failed validation.
	ErrInvalidTurn = errors.New("invalid conversation turn")

	// ErrInvalidEntry indicates an IndexEntry failed validation.
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an unknown Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptySessionID indicates a turn without a session id.
	ErrEmptySessionID = errors.New("session id cannot be empty")

	// ErrEmptyVector indicates an entry without an embedding.
	ErrEmptyVector = errors.New("vector cannot be empty")
)

// FetchError is returned when a page cannot be downloaded.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ParseError is returned when a page has no usable main content.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// EmbeddingError is returned when a batch could not be embedded.
type EmbeddingError struct {
	Batch    int // zero-based batch number within the call
	Size     int
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d (%d texts) failed after %d attempts: %v",
		e.Batch, e.Size, e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// IndexUnavailableError is returned when the vector index cannot serve a request.
type IndexUnavailableError struct {
	Op  string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index unavailable during %s: %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

func (e *IndexUnavailableError) Is(target error) bool { return target == ErrIndexUnavailable }

// ConfigurationError is returned before any work starts when settings are unusable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ErrorKind maps an error to the short kind string used in reports and tool payloads.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrFetch):
		return "fetch_error"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	default:
		return "internal_error"
	}
}
