package source

import (
	"context"

	"github.com/murmurhq/murmur/core"
)

// Client fetches transcript utterances for a session.
//
// FetchTranscript returns the utterances currently available for the
// session, restricted to those starting strictly after sinceTS. A sinceTS
// of 0 returns everything available. The returned utterances are
// normalized; callers own deduplication and ordering.
//
// Implementations may return partial results alongside a nil error when
// individual segments are malformed; malformed segments are dropped, not
// surfaced.
type Client interface {
	// FetchTranscript retrieves utterances for a session newer than sinceTS.
	FetchTranscript(ctx context.Context, sessionID string, sinceTS float64) ([]*core.Utterance, error)

	// DeployBot requests that a transcription bot join the session.
	// Idempotent: deploying to a session that already has a bot is not an error.
	DeployBot(ctx context.Context, sessionID string) error

	// MeetingActive reports whether the session is still in progress.
	MeetingActive(ctx context.Context, sessionID string) (bool, error)

	// Close releases any underlying connections.
	Close() error
}
