package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/murmurhq/murmur/core"
	"github.com/murmurhq/murmur/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource scripts FetchTranscript responses per call.
type fakeSource struct {
	mu      sync.Mutex
	calls   int
	fetchFn func(call int, sinceTS float64) ([]*core.Utterance, error)
}

func (f *fakeSource) FetchTranscript(ctx context.Context, sessionID string, sinceTS float64) ([]*core.Utterance, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()
	return f.fetchFn(call, sinceTS)
}

func (f *fakeSource) DeployBot(ctx context.Context, sessionID string) error { return nil }
func (f *fakeSource) MeetingActive(ctx context.Context, sessionID string) (bool, error) {
	return true, nil
}
func (f *fakeSource) Close() error { return nil }

// fakeStore records upserts in memory, optionally failing the first
// failures calls.
type fakeStore struct {
	mu       sync.Mutex
	records  map[core.ID]*core.Utterance
	upserts  int
	failures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[core.ID]*core.Utterance)}
}

func (f *fakeStore) UpsertUtterances(ctx context.Context, utts ...*core.Utterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failures > 0 {
		f.failures--
		return store.ErrUpsertFailed
	}
	for _, u := range utts {
		f.records[u.ComputeID()] = u
	}
	return nil
}

func (f *fakeStore) GetUtterances(ctx context.Context, ids ...core.ID) ([]*core.Utterance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*core.Utterance
	for _, id := range ids {
		if u, ok := f.records[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) CountUtterances(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, sessionID string) error { return nil }
func (f *fakeStore) SearchSimilar(ctx context.Context, text string, limit int) ([]*core.SearchResult, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

func utterance(speaker, text string, startTS float64) *core.Utterance {
	return core.NewUtterance("meet-001", speaker, text, startTS)
}

// staticSource returns the given batch on every fetch, as a real
// transcript endpoint would return the full transcript each poll.
func staticSource(batch []*core.Utterance) *fakeSource {
	return &fakeSource{fetchFn: func(call int, sinceTS float64) ([]*core.Utterance, error) {
		return batch, nil
	}}
}

func newTestPipeline(t *testing.T, src *fakeSource, st *fakeStore, opts ...Option) *Pipeline {
	t.Helper()
	opts = append(opts, WithPollInterval(time.Millisecond))
	p, err := NewPipeline(src, st, "meet-001", opts...)
	require.NoError(t, err)
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	src := staticSource(nil)
	st := newFakeStore()

	_, err := NewPipeline(nil, st, "meet-001")
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewPipeline(src, nil, "meet-001")
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(src, st, "")
	assert.ErrorIs(t, err, ErrSessionRequired)
}

func TestPipeline_IngestsAndAdvancesWatermark(t *testing.T) {
	batch := []*core.Utterance{
		utterance("spk-1", "first", 10),
		utterance("spk-2", "second", 12),
	}
	st := newFakeStore()
	p := newTestPipeline(t, staticSource(batch), st)

	require.NoError(t, p.Run(context.Background(), 1))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Polls)
	assert.Equal(t, uint64(2), stats.UtterancesIngested)
	assert.Equal(t, uint64(0), stats.Errors)
	assert.Equal(t, 12.0, p.Watermark())

	count, _ := st.CountUtterances(context.Background())
	assert.Equal(t, 2, count)
}

func TestPipeline_RedeliveredBatchCountedAsDuplicates(t *testing.T) {
	// The source redelivers the full transcript every poll. The second
	// cycle must count every redelivered item as a duplicate, ingest
	// nothing, and leave the store untouched.
	batch := []*core.Utterance{
		utterance("spk-1", "first", 10),
		utterance("spk-2", "second", 12),
		utterance("spk-3", "third", 14),
	}
	st := newFakeStore()
	p := newTestPipeline(t, staticSource(batch), st)

	require.NoError(t, p.Run(context.Background(), 2))

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Polls)
	assert.Equal(t, uint64(3), stats.UtterancesIngested)
	assert.Equal(t, uint64(3), stats.DuplicatesSkipped)
	assert.Equal(t, uint64(0), stats.Errors)
	assert.Equal(t, 1, st.upserts)
	assert.Equal(t, 14.0, p.Watermark())
}

func TestPipeline_LateArrivalDroppedSilently(t *testing.T) {
	// An utterance first delivered at or below the watermark was never
	// seen, so it is dropped by the timestamp cut without inflating the
	// duplicate counter.
	src := &fakeSource{fetchFn: func(call int, sinceTS float64) ([]*core.Utterance, error) {
		if call == 0 {
			return []*core.Utterance{utterance("spk-1", "on time", 20)}, nil
		}
		return []*core.Utterance{utterance("spk-2", "late", 10)}, nil
	}}
	st := newFakeStore()
	p := newTestPipeline(t, src, st)

	require.NoError(t, p.Run(context.Background(), 2))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.UtterancesIngested)
	assert.Equal(t, uint64(0), stats.DuplicatesSkipped)
	assert.Equal(t, 20.0, p.Watermark())
}

func TestPipeline_NoNewItemsNoUpsert(t *testing.T) {
	// A cycle whose fetch yields nothing past the filters must not touch
	// the store at all.
	repeated := utterance("spk-1", "repeated", 20)
	src := &fakeSource{fetchFn: func(call int, sinceTS float64) ([]*core.Utterance, error) {
		if call == 0 {
			return []*core.Utterance{utterance("spk-1", "early", 10), repeated}, nil
		}
		// A source that ignores sinceTS and redelivers anyway.
		return []*core.Utterance{repeated}, nil
	}}

	st := newFakeStore()
	p := newTestPipeline(t, src, st)
	require.NoError(t, p.Run(context.Background(), 2))

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.UtterancesIngested)
	assert.Equal(t, uint64(1), stats.DuplicatesSkipped)
	assert.Equal(t, 1, st.upserts)
}

func TestPipeline_DuplicateWithinSingleBatch(t *testing.T) {
	u := utterance("spk-1", "twice", 10)
	src := staticSource([]*core.Utterance{u, u})

	st := newFakeStore()
	p := newTestPipeline(t, src, st)
	require.NoError(t, p.Run(context.Background(), 1))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.UtterancesIngested)
	assert.Equal(t, uint64(1), stats.DuplicatesSkipped)
}

func TestPipeline_FetchFailureAbsorbed(t *testing.T) {
	src := &fakeSource{fetchFn: func(call int, sinceTS float64) ([]*core.Utterance, error) {
		if call == 0 {
			return nil, errors.New("network down")
		}
		return []*core.Utterance{utterance("spk-1", "recovered", 10)}, nil
	}}

	st := newFakeStore()
	p := newTestPipeline(t, src, st)
	require.NoError(t, p.Run(context.Background(), 2))

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Polls)
	assert.Equal(t, uint64(1), stats.Errors)
	assert.Equal(t, uint64(1), stats.UtterancesIngested)
}

func TestPipeline_StoreFailureRetriedNextCycle(t *testing.T) {
	batch := []*core.Utterance{
		utterance("spk-1", "first", 10),
		utterance("spk-2", "second", 12),
	}
	st := newFakeStore()
	st.failures = 1

	p := newTestPipeline(t, staticSource(batch), st)
	require.NoError(t, p.Run(context.Background(), 2))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Errors)

	// The failed cycle must not advance the watermark or admit the batch
	// to the seen-set, so the retry ingests every item exactly once.
	assert.Equal(t, uint64(2), stats.UtterancesIngested)
	assert.Equal(t, uint64(0), stats.DuplicatesSkipped)
	assert.Equal(t, 12.0, p.Watermark())

	count, _ := st.CountUtterances(context.Background())
	assert.Equal(t, 2, count)
}

func TestPipeline_StoreFailureHoldsWatermark(t *testing.T) {
	st := newFakeStore()
	st.failures = 1

	p := newTestPipeline(t, staticSource([]*core.Utterance{utterance("spk-1", "only", 10)}), st)
	require.NoError(t, p.Run(context.Background(), 1))

	assert.Equal(t, 0.0, p.Watermark())
}

func TestPipeline_CallbackOrderAndIsolation(t *testing.T) {
	batch := []*core.Utterance{
		utterance("spk-1", "first", 10),
		utterance("spk-2", "second", 12),
		utterance("spk-3", "third", 14),
	}

	var got []string
	cb := func(u *core.Utterance) error {
		got = append(got, u.Text)
		if u.Text == "second" {
			return errors.New("downstream hiccup")
		}
		return nil
	}

	st := newFakeStore()
	p := newTestPipeline(t, staticSource(batch), st, WithUtteranceCallback(cb))
	require.NoError(t, p.Run(context.Background(), 1))

	// Order preserved, failure isolated to its utterance.
	assert.Equal(t, []string{"first", "second", "third"}, got)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Errors)
	assert.Equal(t, uint64(3), stats.UtterancesIngested)
}

func TestPipeline_InitialWatermark(t *testing.T) {
	batch := []*core.Utterance{
		utterance("spk-1", "old", 10),
		utterance("spk-2", "new", 20),
	}
	st := newFakeStore()
	p := newTestPipeline(t, staticSource(batch), st, WithInitialWatermark(15))

	require.NoError(t, p.Run(context.Background(), 1))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.UtterancesIngested)
	assert.Equal(t, 20.0, p.Watermark())
}

func TestPipeline_StateTransitions(t *testing.T) {
	st := newFakeStore()
	p := newTestPipeline(t, staticSource(nil), st)

	assert.Equal(t, StateIdle, p.State())
	assert.False(t, p.IsRunning())

	require.NoError(t, p.Run(context.Background(), 1))

	assert.Equal(t, StateStopped, p.State())
	assert.False(t, p.IsRunning())

	// A stopped pipeline cannot be restarted.
	assert.ErrorIs(t, p.Run(context.Background(), 1), ErrStopped)
}

func TestPipeline_RunTwiceConcurrently(t *testing.T) {
	st := newFakeStore()
	p, err := NewPipeline(staticSource(nil), st, "meet-001",
		WithPollInterval(time.Hour))
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- p.Run(context.Background(), 0)
	}()
	<-started

	// Wait for the loop to claim the running state.
	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)

	assert.ErrorIs(t, p.Run(context.Background(), 1), ErrAlreadyStarted)

	p.RequestStop()
	require.NoError(t, <-done)
}

func TestPipeline_StopInterruptsSleep(t *testing.T) {
	st := newFakeStore()
	p, err := NewPipeline(staticSource(nil), st, "meet-001",
		WithPollInterval(time.Hour))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), 0) }()

	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)

	// The loop is now mid-sleep on an hour-long interval. Stop must not
	// wait it out.
	start := time.Now()
	p.RequestStop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not interrupt the poll sleep")
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestPipeline_StopBeforeRun(t *testing.T) {
	st := newFakeStore()
	p := newTestPipeline(t, staticSource(nil), st)

	p.RequestStop()
	require.NoError(t, p.Run(context.Background(), 0))

	// The loop observed the stop request before the first cycle.
	assert.Equal(t, uint64(0), p.Stats().Polls)
}

func TestPipeline_RequestStopIdempotent(t *testing.T) {
	st := newFakeStore()
	p := newTestPipeline(t, staticSource(nil), st)

	p.RequestStop()
	p.RequestStop()
	p.RequestStop()
}

func TestPipeline_ContextCancellationStops(t *testing.T) {
	st := newFakeStore()
	p, err := NewPipeline(staticSource(nil), st, "meet-001",
		WithPollInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 0) }()

	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not stop the loop")
	}
}

func TestPipeline_RestartFromZeroIsIdempotent(t *testing.T) {
	batch := []*core.Utterance{
		utterance("spk-1", "first", 10),
		utterance("spk-2", "second", 12),
	}
	st := newFakeStore()

	first := newTestPipeline(t, staticSource(batch), st)
	require.NoError(t, first.Run(context.Background(), 1))

	// A fresh pipeline has no watermark and no seen-set, so it re-ingests
	// the full transcript. The deterministic IDs make the store absorb it.
	second := newTestPipeline(t, staticSource(batch), st)
	require.NoError(t, second.Run(context.Background(), 1))

	count, _ := st.CountUtterances(context.Background())
	assert.Equal(t, 2, count)
}

func TestPipeline_EmptyTextIngested(t *testing.T) {
	batch := []*core.Utterance{utterance("spk-1", "", 10)}
	st := newFakeStore()
	p := newTestPipeline(t, staticSource(batch), st)

	require.NoError(t, p.Run(context.Background(), 1))
	assert.Equal(t, uint64(1), p.Stats().UtterancesIngested)
}
