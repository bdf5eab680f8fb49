// Copyright 2025 Murmur Systems
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


// Package qdrant implements store.Store on a Qdrant vector database.
// Points are keyed by the utterance's deterministic ID, so re-upserting the
// same observation overwrites the same point and is observably a no-op.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/murmurhq/murmur/core"
	"github.com/murmurhq/murmur/embed"
	"github.com/murmurhq/murmur/store"
	"github.com/panjf2000/ants/v2"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// DefaultCollection is the collection utterances are stored in.
	DefaultCollection = "meeting_transcripts"

	// DefaultVectorSize matches the embedding dimension of the default
	// embedding model.
	DefaultVectorSize = 384
)

// Store implements store.Store backed by a Qdrant collection.
// Embedding is mandatory here: every point carries a vector of the
// collection's configured dimension.
type Store struct {
	client     *qdrant.Client
	embedder   embed.Embedder
	pool       *ants.Pool
	collection string
	vectorSize uint64
	logger     *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithCollection sets the collection name.
// Default is DefaultCollection.
func WithCollection(name string) Option {
	return func(s *Store) error {
		if name == "" {
			return errors.New("collection name cannot be empty")
		}
		s.collection = name
		return nil
	}
}

// WithVectorSize sets the embedding dimension the collection is created
// with. Must match the embedder's output dimension.
func WithVectorSize(size int) Option {
	return func(s *Store) error {
		if size <= 0 {
			return fmt.Errorf("invalid vector size %d", size)
		}
		s.vectorSize = uint64(size)
		return nil
	}
}

// WithPoolSize sets the number of concurrent embedding workers.
// Default is half the CPU count, minimum 1.
func WithPoolSize(size int) Option {
	return func(s *Store) error {
		if size < 1 {
			return fmt.Errorf("invalid pool size %d", size)
		}
		s.pool.Release()
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Open connects to a Qdrant server and ensures the collection exists.
// Construction fails if the server is unreachable.
func Open(ctx context.Context, host string, port int, embedder embed.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, store.ErrEmbedderRequired
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		client.Close()
		return nil, err
	}

	s := &Store{
		client:     client,
		embedder:   embedder,
		pool:       pool,
		collection: DefaultCollection,
		vectorSize: DefaultVectorSize,
		logger:     slog.Default().With("component", "qdrant-store"),
	}

	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Close()
			return nil, optErr
		}
	}

	if err := s.ensureCollection(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
	}

	s.logger.Info("qdrant store ready",
		"host", host, "port", port,
		"collection", s.collection, "vector_size", s.vectorSize)

	return s, nil
}

// ensureCollection creates the collection if it doesn't exist.
func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}

	s.logger.Info("created collection", "collection", s.collection)
	return nil
}

// UpsertUtterances inserts or updates utterances keyed by their
// deterministic IDs. Missing vectors are computed before the write, so a
// batch either lands complete or not at all.
func (s *Store) UpsertUtterances(ctx context.Context, utts ...*core.Utterance) error {
	if len(utts) == 0 {
		return nil
	}

	for _, u := range utts {
		if err := core.ValidateUtterance(u); err != nil {
			return fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
		}
	}

	if err := s.embedBatch(ctx, utts); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}

	points := make([]*qdrant.PointStruct, len(utts))
	for i, u := range utts {
		points[i] = pointFromUtterance(u)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}

	s.logger.Debug("upserted utterances", "count", len(points))
	return nil
}

// embedBatch fills in missing vectors, embedding each text on the worker
// pool. Results keep their batch positions.
func (s *Store) embedBatch(ctx context.Context, utts []*core.Utterance) error {
	var missing []*core.Utterance
	for _, u := range utts {
		if len(u.Vector) == 0 {
			missing = append(missing, u)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(missing))
	for i, u := range missing {
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			vector, embedErr := s.embedder.EmbedText(ctx, u.Text)
			if embedErr != nil {
				errs[i] = embedErr
				return
			}
			u.Vector = vector
		}); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

// GetUtterances retrieves utterances by their IDs.
// Returns only the utterances that exist.
func (s *Store) GetUtterances(ctx context.Context, ids ...core.ID) ([]*core.Utterance, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDNum(uint64(id))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	results := make([]*core.Utterance, 0, len(points))
	for _, point := range points {
		u, err := utteranceFromPayload(point.GetPayload())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
		}
		if vector := point.GetVectors().GetVector(); vector != nil {
			u.Vector = vector.GetData()
		}
		results = append(results, u)
	}

	return results, nil
}

// CountUtterances returns the total number of stored utterances.
func (s *Store) CountUtterances(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}
	return int(count), nil
}

// DeleteSession removes all utterances belonging to a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("session_id", sessionID),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	s.logger.Info("deleted session utterances", "session", sessionID)
	return nil
}

// SearchSimilar finds stored utterances similar to the query text.
// Results are ordered by similarity score (highest first).
func (s *Store) SearchSimilar(ctx context.Context, text string, limit int) ([]*core.SearchResult, error) {
	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if limit > 0 {
		query.Limit = qdrant.PtrOf(uint64(limit))
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	results := make([]*core.SearchResult, 0, len(points))
	for _, point := range points {
		u, err := utteranceFromPayload(point.GetPayload())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
		}
		results = append(results, &core.SearchResult{
			Utterance: u,
			Score:     point.GetScore(),
		})
	}

	return results, nil
}

// Close releases the worker pool and the client connection.
func (s *Store) Close() error {
	s.pool.Release()
	return s.client.Close()
}
