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


package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurhq/murmur/core"
	"github.com/murmurhq/murmur/metrics"
	"github.com/murmurhq/murmur/source"
	"github.com/murmurhq/murmur/store"
)

// DefaultPollInterval is the pause between poll cycles.
const DefaultPollInterval = 2 * time.Second

// Callback receives each newly stored utterance in transcript order.
// A callback error is logged and counted; it never interrupts ingestion.
type Callback func(*core.Utterance) error

// Pipeline polls a transcript source for one session and stores new
// utterances. It runs single-threaded: one goroutine owns the loop, and
// accessors may be called concurrently from others.
//
// Deduplication uses an in-memory set of utterance IDs that grows for the
// pipeline's lifetime. Sessions are bounded (a meeting), so the set is
// never evicted. The set only admits utterances after the store confirms
// them, so a failed batch is refetched and retried on later cycles; the
// id-keyed upsert absorbs any re-delivery that causes.
type Pipeline struct {
	src       source.Client
	store     store.Store
	sessionID string

	pollInterval time.Duration
	callback     Callback
	metrics      *metrics.Metrics
	logger       *slog.Logger

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	stats     Stats
	watermark float64
	seen      map[core.ID]struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPollInterval sets the pause between poll cycles.
// Default is 2 seconds.
func WithPollInterval(interval time.Duration) Option {
	return func(p *Pipeline) error {
		if interval > 0 {
			p.pollInterval = interval
		}
		return nil
	}
}

// WithUtteranceCallback registers a hook invoked once per newly stored
// utterance, in transcript order.
func WithUtteranceCallback(cb Callback) Option {
	return func(p *Pipeline) error {
		p.callback = cb
		return nil
	}
}

// WithInitialWatermark starts fetching after the given epoch-seconds
// timestamp instead of from the beginning of the transcript.
func WithInitialWatermark(ts float64) Option {
	return func(p *Pipeline) error {
		p.watermark = ts
		return nil
	}
}

// WithMetrics attaches Prometheus metrics, incremented alongside the
// internal counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline for one session.
func NewPipeline(src source.Client, st store.Store, sessionID string, opts ...Option) (*Pipeline, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	if st == nil {
		return nil, ErrStoreRequired
	}
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	p := &Pipeline{
		src:          src,
		store:        st,
		sessionID:    sessionID,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default().With("component", "pipeline", "session", sessionID),
		stopCh:       make(chan struct{}),
		seen:         make(map[core.ID]struct{}),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Run executes the poll loop until RequestStop is called, the context is
// cancelled, or maxCycles cycles have completed (0 means unbounded).
// It blocks for the duration of the run and always leaves the pipeline in
// the stopped state. Context cancellation is a stop request, not an error.
func (p *Pipeline) Run(ctx context.Context, maxCycles int) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if State(p.state.Load()) == StateStopped {
			return ErrStopped
		}
		return ErrAlreadyStarted
	}

	p.logger.Info("starting ingestion loop",
		"poll_interval", p.pollInterval, "max_cycles", maxCycles)

	defer func() {
		p.state.Store(int32(StateStopped))
		stats := p.Stats()
		p.logger.Info("ingestion loop stopped",
			"polls", stats.Polls,
			"ingested", stats.UtterancesIngested,
			"duplicates_skipped", stats.DuplicatesSkipped,
			"errors", stats.Errors)
	}()

	cycles := 0
	for {
		if p.stopRequested(ctx) {
			return nil
		}

		p.runCycle(ctx)
		cycles++

		if maxCycles > 0 && cycles >= maxCycles {
			p.logger.Info("reached max cycles", "cycles", cycles)
			return nil
		}

		// The sleep is interruptible so shutdown latency is bounded by the
		// select wakeup, not the poll interval.
		timer := time.NewTimer(p.pollInterval)
		select {
		case <-p.stopCh:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("context cancelled, stopping")
			return nil
		case <-timer.C:
		}
	}
}

// RequestStop asks the loop to exit. Safe to call from any goroutine,
// multiple times, and before Run. It returns immediately; Run unblocks at
// the next cycle boundary or mid-sleep.
func (p *Pipeline) RequestStop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}

func (p *Pipeline) stopRequested(ctx context.Context) bool {
	select {
	case <-p.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// runCycle executes one poll: fetch, dedup, store, notify, advance.
// Failures are absorbed here; the loop never sees them.
func (p *Pipeline) runCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordCycle(time.Since(start).Seconds())
		}
	}()

	p.mu.Lock()
	p.stats.Polls++
	watermark := p.watermark
	p.mu.Unlock()

	utts, err := p.src.FetchTranscript(ctx, p.sessionID, watermark)
	if err != nil {
		p.recordError("fetch", err)
		return
	}
	if len(utts) == 0 {
		return
	}

	fresh := p.filterNew(utts, watermark)
	if len(fresh) == 0 {
		return
	}

	if err := p.store.UpsertUtterances(ctx, fresh...); err != nil {
		// The batch stays out of the seen-set and the watermark holds, so
		// the next fetch redelivers it and the upsert retries.
		p.recordError("store", err)
		return
	}

	p.commit(fresh)
	p.notify(fresh)
}

// filterNew counts utterances already in the seen-set as duplicates,
// then drops unseen late arrivals at or below the watermark. The seen-set
// check runs first so redelivered items are counted rather than silently
// swallowed by the watermark cut.
func (p *Pipeline) filterNew(utts []*core.Utterance, watermark float64) []*core.Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fresh []*core.Utterance
	duplicates := 0
	batch := make(map[core.ID]struct{}, len(utts))
	for _, u := range utts {
		id := u.ComputeID()
		if _, ok := p.seen[id]; ok {
			duplicates++
			continue
		}
		if u.StartTS <= watermark {
			// Unseen but at or below the watermark: a late arrival the
			// fetch window already moved past. Dropped, not a duplicate.
			continue
		}
		if _, ok := batch[id]; ok {
			duplicates++
			continue
		}
		batch[id] = struct{}{}
		fresh = append(fresh, u)
	}

	if duplicates > 0 {
		p.stats.DuplicatesSkipped += uint64(duplicates)
		if p.metrics != nil {
			p.metrics.RecordDuplicates(duplicates)
		}
	}

	return fresh
}

// commit admits a confirmed batch into the seen-set, bumps the counters
// and advances the watermark.
func (p *Pipeline) commit(fresh []*core.Utterance) {
	p.mu.Lock()
	defer p.mu.Unlock()

	maxTS := p.watermark
	for _, u := range fresh {
		p.seen[u.ComputeID()] = struct{}{}
		if u.StartTS > maxTS {
			maxTS = u.StartTS
		}
	}
	p.stats.UtterancesIngested += uint64(len(fresh))
	p.watermark = maxTS

	if p.metrics != nil {
		p.metrics.RecordIngested(len(fresh))
		p.metrics.RecordWatermark(maxTS)
	}

	p.logger.Info("ingested utterances", "count", len(fresh), "watermark", maxTS)
}

// notify invokes the callback for each utterance in batch order.
// A failing callback is counted but does not stop the remaining calls.
func (p *Pipeline) notify(fresh []*core.Utterance) {
	if p.callback == nil {
		return
	}
	for _, u := range fresh {
		if err := p.callback(u); err != nil {
			p.recordError("callback", err)
		}
	}
}

func (p *Pipeline) recordError(stage string, err error) {
	p.mu.Lock()
	p.stats.Errors++
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordError(stage)
	}
	p.logger.Error("cycle error", "stage", stage, "err", err)
}

// Stats returns a copy of the cumulative counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Watermark returns the highest start timestamp of any stored utterance,
// or the initial watermark if nothing has been stored yet.
func (p *Pipeline) Watermark() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

// State returns the current lifecycle phase.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// IsRunning reports whether the poll loop is executing.
func (p *Pipeline) IsRunning() bool {
	return p.State() == StateRunning
}
