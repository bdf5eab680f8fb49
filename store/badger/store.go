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


package badger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/murmurhq/murmur/core"
	"github.com/murmurhq/murmur/embed"
	"github.com/murmurhq/murmur/store"
)

// Store implements store.Store on an embedded BadgerDB backend.
// Records are keyed by the utterance's deterministic ID, so re-upserting the
// same observation overwrites the same key and is observably a no-op.
type Store struct {
	backend  *Backend
	embedder embed.Embedder
	logger   *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithEmbedder attaches an embedder; stored utterances then carry vectors
// and SearchSimilar becomes available. Without one, utterances are stored
// vectorless and SearchSimilar returns ErrEmbedderRequired.
func WithEmbedder(embedder embed.Embedder) Option {
	return func(s *Store) error {
		s.embedder = embedder
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

// New creates a Store on the given backend. The Store takes ownership of
// the backend and closes it on Close.
func New(backend *Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend required", store.ErrStoreUnavailable)
	}

	s := &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Open opens a BadgerDB database at path and wraps it in a Store.
// An empty path with inMemory=true creates a transient in-memory store.
func Open(path string, inMemory bool, opts ...Option) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
	}
	return New(backend, opts...)
}

// UpsertUtterances inserts or updates utterances keyed by their deterministic IDs.
func (s *Store) UpsertUtterances(ctx context.Context, utts ...*core.Utterance) error {
	if len(utts) == 0 {
		return nil
	}

	for _, u := range utts {
		if err := core.ValidateUtterance(u); err != nil {
			return fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
		}
	}

	if s.embedder != nil {
		if err := s.embedBatch(ctx, utts); err != nil {
			return fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
		}
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, u := range utts {
			id := u.ComputeID()

			if err := tx.Set(makeUtteranceKey(id), store.MarshalUtterance(u)); err != nil {
				return err
			}
			if err := tx.Set(makeSessionKey(u.SessionID, id), store.MarshalID(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrUpsertFailed, err)
	}

	s.logger.Debug("upserted utterances", "count", len(utts))
	return nil
}

// embedBatch fills in missing vectors for a batch of utterances.
func (s *Store) embedBatch(ctx context.Context, utts []*core.Utterance) error {
	var missing []*core.Utterance
	var texts []string
	for _, u := range utts {
		if len(u.Vector) == 0 {
			missing = append(missing, u)
			texts = append(texts, u.Text)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(missing), len(vectors))
	}

	for i, u := range missing {
		u.Vector = vectors[i]
	}
	return nil
}

// GetUtterances retrieves utterances by their IDs.
// Returns only the utterances that exist.
func (s *Store) GetUtterances(ctx context.Context, ids ...core.ID) ([]*core.Utterance, error) {
	var results []*core.Utterance

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := tx.Get(makeUtteranceKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}

			err = item.Value(func(val []byte) error {
				u, err := store.UnmarshalUtterance(val)
				if err != nil {
					return err
				}
				results = append(results, u)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	return results, nil
}

// CountUtterances returns the total number of stored utterances.
func (s *Store) CountUtterances(ctx context.Context) (int, error) {
	count := 0

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(utterancePrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	return count, nil
}

// DeleteSession removes all utterances belonging to a session,
// along with their session index entries.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSessionPrefix(sessionID)
		iter := tx.NewIterator(opts)

		var indexKeys [][]byte
		var ids []core.ID
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			indexKeys = append(indexKeys, item.KeyCopy(nil))

			err := item.Value(func(val []byte) error {
				id, err := store.UnmarshalID(val)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				return nil
			})
			if err != nil {
				iter.Close()
				return err
			}
		}
		iter.Close()

		for _, id := range ids {
			if err := tx.Delete(makeUtteranceKey(id)); err != nil {
				return err
			}
		}
		for _, key := range indexKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	s.logger.Info("deleted session utterances", "session", sessionID)
	return nil
}

// SearchSimilar finds stored utterances similar to the query text.
// Results are ordered by similarity score (highest first).
func (s *Store) SearchSimilar(ctx context.Context, text string, limit int) ([]*core.SearchResult, error) {
	if s.embedder == nil {
		return nil, store.ErrEmbedderRequired
	}

	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	var results []*core.SearchResult

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(utterancePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var u *core.Utterance
			err := item.Value(func(val []byte) error {
				var err error
				u, err = store.UnmarshalUtterance(val)
				return err
			})
			if err != nil {
				return err
			}
			if u == nil || len(u.Vector) == 0 {
				continue
			}

			// Dot product works as cosine similarity for normalized vectors
			results = append(results, &core.SearchResult{
				Utterance: u,
				Score:     dotProduct(vector, u.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
