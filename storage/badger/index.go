package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// Index implements storage.VectorIndex with brute-force cosine similarity
// over normalized vectors stored in BadgerDB.
type Index struct {
	backend *Backend
	seq     *badger.Sequence
	logger  *slog.Logger
}

var (
	_ storage.VectorIndex  = (*Index)(nil)
	_ storage.EntryScanner = (*Index)(nil)
)

// NewIndex creates an Index on an open backend.
func NewIndex(backend *Backend) (*Index, error) {
	seq, err := backend.GetSequence(indexSeq)
	if err != nil {
		return nil, err
	}
	return &Index{
		backend: backend,
		seq:     seq,
		logger:  slog.Default().With("component", "badger-index"),
	}, nil
}

// Close releases the insertion sequence. The backend stays open.
func (ix *Index) Close() error {
	return ix.seq.Release()
}

// EnsureCollection records the vector dimension on first use and rejects
// a different dimension afterwards.
func (ix *Index) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive", storage.ErrInvalidQuery)
	}
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		current, err := readDim(tx)
		if err != nil {
			return err
		}
		if current == dim {
			return nil
		}
		if current != 0 {
			return fmt.Errorf("%w: collection has %d, got %d", storage.ErrDimensionMismatch, current, dim)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(dim))
		if err := tx.Set([]byte(indexMetaDimKey), buf); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return ix.wrap("ensure_collection", err)
}

// Upsert inserts or replaces entries. Replaced entries keep their sequence.
func (ix *Index) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	for _, e := range entries {
		if err := core.ValidateEntry(e); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return nil
	}

	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := readDim(tx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if dim != 0 && len(e.Vector) != dim {
				return fmt.Errorf("%w: entry %d has %d, collection has %d",
					storage.ErrDimensionMismatch, e.ID, len(e.Vector), dim)
			}

			key := makeEntryKey(e.ID)
			existing, err := readEntry(tx, key)
			if err != nil {
				return err
			}

			var seq uint64
			if existing != nil {
				seq = existing.Seq
			} else if seq, err = ix.nextSeq(); err != nil {
				return err
			}

			value := storage.MarshalStoredEntry(&storage.StoredEntry{
				ID:      e.ID,
				Seq:     seq,
				Vector:  unit(e.Vector),
				Payload: e.Payload,
			})
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return ix.wrap("upsert", err)
}

// nextSeq returns the next insertion number.
// BadgerDB sequences can return 0 on first call, so we skip it
func (ix *Index) nextSeq() (uint64, error) {
	seq, err := ix.seq.Next()
	if err != nil {
		return 0, err
	}
	if seq == 0 {
		return ix.seq.Next()
	}
	return seq, nil
}

type scored struct {
	entry *storage.StoredEntry
	score float32
}

// Search finds the k entries most similar to vector.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]*core.ScoredEntry, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrEmptyVector)
	}
	query := unit(vector)

	var hits []scored
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		return iterateEntries(tx, func(e *storage.StoredEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hits = append(hits, scored{entry: e, score: cosine(query, e.Vector)})
			return nil
		})
	}, false)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ix.wrap("search", err)
	}

	// Sort by similarity descending, then by insertion order
	slices.SortFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		case a.entry.Seq < b.entry.Seq:
			return -1
		case a.entry.Seq > b.entry.Seq:
			return 1
		}
		return 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]*core.ScoredEntry, len(hits))
	for i, h := range hits {
		results[i] = &core.ScoredEntry{ID: h.entry.ID, Score: h.score, Payload: h.entry.Payload}
	}
	ix.logger.Debug("search complete", "k", k, "hits", len(results))
	return results, nil
}

// Delete removes entries by ID. Unknown IDs are ignored.
func (ix *Index) Delete(ctx context.Context, ids ...core.ID) error {
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeEntryKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return ix.wrap("delete", err)
}

// Count returns the number of stored entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	count := 0
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(indexEntryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, ix.wrap("count", err)
}

// Reset drops every entry and the recorded dimension.
func (ix *Index) Reset(ctx context.Context) error {
	err := ix.backend.DropPrefix([]byte(indexEntryPrefix), []byte(indexMetaDimKey))
	return ix.wrap("reset", err)
}

// Scan calls fn with batches of entries in key order.
func (ix *Index) Scan(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", storage.ErrInvalidQuery)
	}
	// Collect first so fn may write to the index without conflicting
	// with the read transaction.
	var all []*core.IndexEntry
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		return iterateEntries(tx, func(e *storage.StoredEntry) error {
			all = append(all, e.Entry())
			return nil
		})
	}, false)
	if err != nil {
		return ix.wrap("scan", err)
	}
	for start := 0; start < len(all); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(all[start:min(start+batchSize, len(all))]); err != nil {
			return err
		}
	}
	return nil
}

// wrap reports badger failures as index unavailability and leaves the
// package's own sentinel errors untouched.
func (ix *Index) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrInvalidQuery) ||
		errors.Is(err, storage.ErrDimensionMismatch) ||
		errors.Is(err, storage.ErrSerializationFailed) {
		return err
	}
	ix.logger.Error("index operation failed", "op", op, "err", err)
	return &core.IndexUnavailableError{Op: op, Err: err}
}

func readDim(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(indexMetaDimKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return storage.ErrSerializationFailed
		}
		dim = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return dim, err
}

func readEntry(tx *badger.Txn, key []byte) (*storage.StoredEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry *storage.StoredEntry
	err = item.Value(func(val []byte) error {
		var err error
		entry, err = storage.UnmarshalStoredEntry(val)
		return err
	})
	return entry, err
}

func iterateEntries(tx *badger.Txn, fn func(*storage.StoredEntry) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(indexEntryPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var entry *storage.StoredEntry
		err := iter.Item().Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalStoredEntry(val)
			return err
		})
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}
