package qdrant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// DefaultCollection is used when Config.Collection is empty.
	DefaultCollection = "docs"
	// DefaultPort is the Qdrant gRPC port.
	DefaultPort = 6334

	seqField = "seq"
)

// Config holds connection settings for a Qdrant server.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// client is the subset of *qdrant.Client used by Index.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	ScrollAndOffset(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Close() error
}

var _ client = (*qdrant.Client)(nil)

// Index is a storage.VectorIndex backed by a Qdrant collection.
type Index struct {
	client     client
	collection string
	logger     *slog.Logger

	mu      sync.Mutex // guards lastSeq and serializes upserts
	lastSeq uint64
	seqInit bool
}

var (
	_ storage.VectorIndex  = (*Index)(nil)
	_ storage.EntryScanner = (*Index)(nil)
)

// NewIndex connects to the Qdrant server described by config.
func NewIndex(config Config) (*Index, error) {
	if config.Host == "" {
		return nil, &core.ConfigurationError{Field: "qdrant.host", Reason: "required"}
	}
	port := config.Port
	if port == 0 {
		port = DefaultPort
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, &core.IndexUnavailableError{Op: "connect", Err: err}
	}
	return newIndex(c, config.Collection), nil
}

func newIndex(c client, collection string) *Index {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Index{
		client:     c,
		collection: collection,
		logger:     slog.Default().With("component", "qdrant-index", "collection", collection),
	}
}

// Close closes the gRPC connection.
func (ix *Index) Close() error {
	return ix.client.Close()
}

// EnsureCollection creates a cosine collection of the given dimension, or
// verifies the dimension of an existing one.
func (ix *Index) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive", storage.ErrInvalidQuery)
	}
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return ix.wrap("ensure_collection", err)
	}
	if exists {
		info, err := ix.client.GetCollectionInfo(ctx, ix.collection)
		if err != nil {
			return ix.wrap("ensure_collection", err)
		}
		current := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if current != 0 && current != uint64(dim) {
			return fmt.Errorf("%w: collection has %d, got %d", storage.ErrDimensionMismatch, current, dim)
		}
		return nil
	}

	ix.logger.Info("creating collection", "dim", dim)
	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return ix.wrap("ensure_collection", err)
	}
	_, err = ix.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		FieldName:      seqField,
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	return ix.wrap("ensure_collection", err)
}

// Upsert writes entries as points. Existing points keep their seq.
func (ix *Index) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	for _, e := range entries {
		if err := core.ValidateEntry(e); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.initSeq(ctx); err != nil {
		return ix.wrap("upsert", err)
	}
	existing, err := ix.existingSeqs(ctx, entries)
	if err != nil {
		return ix.wrap("upsert", err)
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		seq, ok := existing[e.ID]
		if !ok {
			ix.lastSeq++
			seq = ix.lastSeq
			existing[e.ID] = seq
		}
		payload, err := qdrant.TryValueMap(payloadMap(e.Payload, seq))
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(e.ID)),
			Vectors: qdrant.NewVectorsDense(e.Vector),
			Payload: payload,
		}
	}

	_, err = ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		// The server may or may not have applied the batch.
		ix.seqInit = false
		return ix.wrap("upsert", err)
	}
	return nil
}

// initSeq loads the highest stored seq on first use.
func (ix *Index) initSeq(ctx context.Context) error {
	if ix.seqInit {
		return nil
	}
	points, err := ix.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: ix.collection,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayloadInclude(seqField),
		OrderBy: &qdrant.OrderBy{
			Key:       seqField,
			Direction: qdrant.Direction_Desc.Enum(),
		},
	})
	if err != nil {
		return err
	}
	ix.lastSeq = 0
	if len(points) > 0 {
		ix.lastSeq = seqOf(points[0].GetPayload())
	}
	ix.seqInit = true
	return nil
}

func (ix *Index) existingSeqs(ctx context.Context, entries []*core.IndexEntry) (map[core.ID]uint64, error) {
	ids := make([]*qdrant.PointId, len(entries))
	for i, e := range entries {
		ids[i] = qdrant.NewIDNum(uint64(e.ID))
	}
	points, err := ix.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: ix.collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayloadInclude(seqField),
	})
	if err != nil {
		return nil, err
	}
	seqs := make(map[core.ID]uint64, len(entries))
	for _, p := range points {
		seqs[core.ID(p.GetId().GetNum())] = seqOf(p.GetPayload())
	}
	return seqs, nil
}

// Search runs a nearest-neighbour query. Equal scores are ordered by seq.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]*core.ScoredEntry, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrEmptyVector)
	}

	points, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if exists, existsErr := ix.client.CollectionExists(ctx, ix.collection); existsErr == nil && !exists {
			return []*core.ScoredEntry{}, nil
		}
		return nil, ix.wrap("search", err)
	}

	type hit struct {
		entry *core.ScoredEntry
		seq   uint64
	}
	hits := make([]hit, len(points))
	for i, p := range points {
		payload, seq := payloadFromValues(p.GetPayload())
		hits[i] = hit{
			entry: &core.ScoredEntry{ID: core.ID(p.GetId().GetNum()), Score: p.GetScore(), Payload: payload},
			seq:   seq,
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.entry.Score, a.entry.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	results := make([]*core.ScoredEntry, len(hits))
	for i, h := range hits {
		results[i] = h.entry
	}
	ix.logger.Debug("search complete", "k", k, "hits", len(results))
	return results, nil
}

// Delete removes points by id.
func (ix *Index) Delete(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDNum(uint64(id))
	}
	_, err := ix.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	return ix.wrap("delete", err)
}

// Count returns the exact number of points, or zero when the collection is absent.
func (ix *Index) Count(ctx context.Context) (int, error) {
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return 0, ix.wrap("count", err)
	}
	if !exists {
		return 0, nil
	}
	n, err := ix.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: ix.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, ix.wrap("count", err)
	}
	return int(n), nil
}

// Reset deletes the collection. The next EnsureCollection recreates it.
func (ix *Index) Reset(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return ix.wrap("reset", err)
	}
	if exists {
		if err := ix.client.DeleteCollection(ctx, ix.collection); err != nil {
			return ix.wrap("reset", err)
		}
	}
	ix.lastSeq = 0
	ix.seqInit = false
	return nil
}

// Scan pages through every point in id order, vectors included.
func (ix *Index) Scan(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", storage.ErrInvalidQuery)
	}
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return ix.wrap("scan", err)
	}
	if !exists {
		return nil
	}

	var offset *qdrant.PointId
	for {
		points, next, err := ix.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: ix.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(batchSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return ix.wrap("scan", err)
		}
		if len(points) > 0 {
			batch := make([]*core.IndexEntry, len(points))
			for i, p := range points {
				payload, _ := payloadFromValues(p.GetPayload())
				batch[i] = &core.IndexEntry{
					ID:      core.ID(p.GetId().GetNum()),
					Vector:  denseVector(p.GetVectors()),
					Payload: payload,
				}
			}
			if err := fn(batch); err != nil {
				return err
			}
		}
		if next == nil {
			return nil
		}
		offset = next
	}
}

func (ix *Index) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	ix.logger.Error("index operation failed", "op", op, "err", err)
	return &core.IndexUnavailableError{Op: op, Err: err}
}
