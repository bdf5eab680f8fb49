package store

import (
	"context"

	"github.com/murmurhq/murmur/core"
)

// Store persists canonical utterances keyed by their deterministic IDs.
// Implementations must be thread-safe and support concurrent access.
//
// Upsert is evaluated as a single pass/fail outcome for a whole batch, and
// re-upserting the same ID with the same payload is observably a no-op, so
// callers may safely re-submit a full batch after a failure.
type Store interface {
	// UpsertUtterances inserts or updates utterances keyed by ComputeID().
	// The batch either succeeds as a whole or returns an error wrapping
	// ErrUpsertFailed; partial success is not reported.
	UpsertUtterances(ctx context.Context, utts ...*core.Utterance) error

	// GetUtterances retrieves utterances by their IDs.
	// Returns only the utterances that exist (no error for missing IDs).
	GetUtterances(ctx context.Context, ids ...core.ID) ([]*core.Utterance, error)

	// CountUtterances returns the total number of stored utterances.
	CountUtterances(ctx context.Context) (int, error)

	// DeleteSession removes all utterances belonging to a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// SearchSimilar finds stored utterances semantically similar to the
	// query text, up to limit results ordered by score (highest first).
	// Requires the backend to have been constructed with an embedder.
	SearchSimilar(ctx context.Context, text string, limit int) ([]*core.SearchResult, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
