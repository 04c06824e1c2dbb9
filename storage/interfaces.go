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


package storage

import (
	"context"

	"github.com/poiesic/docrag/core"
)

// VectorIndex stores chunk vectors with their payloads and answers
// nearest-neighbour queries.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// EnsureCollection creates the collection for vectors of the given
	// dimension if it does not exist yet.
	EnsureCollection(ctx context.Context, dim int) error

	// Upsert inserts entries or replaces entries with the same ID.
	// A replaced entry keeps its original insertion position.
	Upsert(ctx context.Context, entries ...*core.IndexEntry) error

	// Search returns up to k entries ordered by descending similarity.
	// Ties are broken by insertion order. An empty or absent collection
	// yields an empty slice and no error.
	Search(ctx context.Context, vector []float32, k int) ([]*core.ScoredEntry, error)

	// Delete removes entries by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids ...core.ID) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Reset drops every entry.
	Reset(ctx context.Context) error

	// Close releases resources held by the index.
	Close() error
}

// EntryScanner is implemented by indexes that can enumerate stored entries
// in storage order.
type EntryScanner interface {
	// Scan calls fn with consecutive batches of at most batchSize entries.
	// Returning an error from fn stops the scan.
	Scan(ctx context.Context, batchSize int, fn func(entries []*core.IndexEntry) error) error
}

// SessionStore is an append-only log of conversation turns keyed by session.
// Implementations must be thread-safe and survive restarts when backed by disk.
type SessionStore interface {
	// AppendTurn validates and appends a turn, assigning its sequence number
	// and, when unset, its timestamp. The stored turn is returned.
	AppendTurn(ctx context.Context, turn *core.ConversationTurn) (*core.ConversationTurn, error)

	// History returns all turns of a session in append order.
	// An unknown session yields an empty slice.
	History(ctx context.Context, sessionID string) ([]*core.ConversationTurn, error)

	// Close releases resources held by the store.
	Close() error
}

// RunStore keeps the most recent ingestion report.
type RunStore interface {
	// SaveRunReport replaces the stored report.
	SaveRunReport(ctx context.Context, report *core.RunReport) error

	// LastRunReport returns the stored report, or nil when no run has completed.
	LastRunReport(ctx context.Context) (*core.RunReport, error)
}
