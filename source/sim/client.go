// Package sim provides a deterministic transcript source for local runs
// and tests. It fabricates a rotating conversation between a fixed cast of
// speakers, with monotonically increasing timestamps, so pipeline behavior
// is reproducible without meeting credentials.
package sim

import (
	"context"
	"sync"

	"github.com/murmurhq/murmur/core"
	"github.com/murmurhq/murmur/source"
)

var speakers = []struct {
	id   string
	name string
}{
	{"speaker-1", "Alice"},
	{"speaker-2", "Bob"},
	{"speaker-3", "Charlie"},
}

var lines = []string{
	"I think we should discuss the quarterly results.",
	"That's a great point. Let me add some context.",
	"Can we schedule a follow-up meeting for next week?",
	"I agree with the proposal, but we need more data.",
	"Let's move on to the next agenda item.",
	"Does anyone have questions about this topic?",
	"I'll send the report after this meeting.",
	"We should consider the budget implications.",
}

const (
	defaultBatchSize = 2
	defaultBaseTime  = 1700000000.0
	utteranceStep    = 1.5 // Seconds between consecutive utterances
)

// Client fabricates transcript data. Each fetch advances the conversation
// by a fixed number of utterances until the configured limit is reached,
// after which the meeting reports inactive.
type Client struct {
	mu        sync.Mutex
	counter   int
	batchSize int
	baseTime  float64
	limit     int // 0 means unlimited
}

var _ source.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBatchSize sets how many utterances each fetch produces.
// Default is 2.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithBaseTime sets the epoch-seconds timestamp of the first utterance.
func WithBaseTime(ts float64) Option {
	return func(c *Client) {
		c.baseTime = ts
	}
}

// WithLimit caps the total number of utterances produced. Once reached,
// fetches return nothing and MeetingActive reports false.
func WithLimit(n int) Option {
	return func(c *Client) {
		c.limit = n
	}
}

// NewClient creates a simulated transcript source.
func NewClient(opts ...Option) *Client {
	c := &Client{
		batchSize: defaultBatchSize,
		baseTime:  defaultBaseTime,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchTranscript produces the next batch of fabricated utterances.
// Output is fully determined by the fetch sequence, so identical runs
// produce identical transcripts. The sinceTS filter applies as it would
// against a real source.
func (c *Client) FetchTranscript(ctx context.Context, sessionID string, sinceTS float64) ([]*core.Utterance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var utterances []*core.Utterance
	for i := 0; i < c.batchSize; i++ {
		if c.limit > 0 && c.counter >= c.limit {
			break
		}

		speaker := speakers[c.counter%len(speakers)]
		startTS := c.baseTime + float64(c.counter)*utteranceStep

		u := core.NewUtterance(sessionID, speaker.id, lines[c.counter%len(lines)], startTS)
		u.SpeakerName = speaker.name
		u.EndTS = startTS + utteranceStep
		u.Source = "sim"
		c.counter++

		if u.StartTS > sinceTS {
			utterances = append(utterances, u)
		}
	}

	return utterances, nil
}

// DeployBot is a no-op; the simulator needs no bot.
func (c *Client) DeployBot(ctx context.Context, sessionID string) error {
	return nil
}

// MeetingActive reports true until the utterance limit is exhausted.
func (c *Client) MeetingActive(ctx context.Context, sessionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit == 0 || c.counter < c.limit, nil
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
