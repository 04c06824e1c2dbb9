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


package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/ingestion"
	"github.com/poiesic/docrag/storage"
)

const (
	DefaultBatchSize      = 100
	DefaultReportInterval = 100
)

// Index is a vector index that can enumerate its entries.
type Index interface {
	storage.VectorIndex
	storage.EntryScanner
}

// Reembedder re-embeds every entry of a vector index.
type Reembedder struct {
	index          Index
	processor      *BatchProcessor
	batchSize      int
	reportInterval int
	progress       io.Writer
	logger         *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithBatchSize sets how many entries are embedded and written together.
func WithBatchSize(n int) Option {
	return func(r *Reembedder) error {
		if n <= 0 {
			return ErrInvalidBatchSize
		}
		r.batchSize = n
		return nil
	}
}

// WithReportInterval sets how often progress is reported (number of entries).
func WithReportInterval(n int) Option {
	return func(r *Reembedder) error {
		r.reportInterval = n
		return nil
	}
}

// WithProgress sets where progress output goes (typically os.Stderr).
func WithProgress(w io.Writer) Option {
	return func(r *Reembedder) error {
		r.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReembedder creates a new reembedder. The index must implement
// storage.EntryScanner.
func NewReembedder(index storage.VectorIndex, embedder Embedder, opts ...Option) (*Reembedder, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	scannable, ok := index.(Index)
	if !ok {
		return nil, ErrScanUnsupported
	}

	r := &Reembedder{
		index:          scannable,
		processor:      NewBatchProcessor(embedder),
		batchSize:      DefaultBatchSize,
		reportInterval: DefaultReportInterval,
		progress:       io.Discard,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reembedder")
	return r, nil
}

// Run re-embeds every entry and returns how many were written.
// Nothing is written unless every batch embeds successfully.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No entries found in index (0 entries)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entries (batch size: %d)\n", total, r.batchSize)

	tracker := ingestion.NewProgressTracker(r.progress, "entries", total, r.reportInterval)
	tracker.Start()

	var refreshed []*core.IndexEntry
	err = r.index.Scan(ctx, r.batchSize, func(entries []*core.IndexEntry) error {
		out, err := r.processor.Process(ctx, entries)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		refreshed = append(refreshed, out...)
		tracker.Increment(len(out))
		return nil
	})
	tracker.Finish()
	if err != nil {
		return 0, err
	}
	if len(refreshed) == 0 {
		return 0, nil
	}

	if err := r.write(ctx, refreshed); err != nil {
		return 0, err
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d entries in %v (%.1f entries/sec)\n",
		len(refreshed), elapsed.Round(time.Millisecond), float64(len(refreshed))/max(elapsed.Seconds(), 1e-9))
	return len(refreshed), nil
}

// write stores the refreshed entries, recreating the collection when the
// dimension changed.
func (r *Reembedder) write(ctx context.Context, entries []*core.IndexEntry) error {
	dim := len(entries[0].Vector)
	err := r.index.EnsureCollection(ctx, dim)
	if errors.Is(err, storage.ErrDimensionMismatch) {
		r.logger.Warn("embedding dimension changed, recreating collection", "dim", dim)
		if err := r.index.Reset(ctx); err != nil {
			return err
		}
		err = r.index.EnsureCollection(ctx, dim)
	}
	if err != nil {
		return err
	}

	for start := 0; start < len(entries); start += r.batchSize {
		batch := entries[start:min(start+r.batchSize, len(entries))]
		if err := r.index.Upsert(ctx, batch...); err != nil {
			return fmt.Errorf("failed to update entries: %w", err)
		}
	}
	r.logger.Info("reembedding complete", "entries", len(entries), "dim", dim)
	return nil
}
