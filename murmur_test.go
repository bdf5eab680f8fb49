package murmur

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_SimulatedEndToEnd(t *testing.T) {
	ctx := context.Background()

	sys, err := NewSystem(ctx, Config{
		SessionID:    "sim-001",
		Simulate:     true,
		MockEmbedder: true,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sys.Close() })

	require.NoError(t, sys.Run(ctx, 3))

	stats := sys.Pipeline().Stats()
	assert.Equal(t, uint64(3), stats.Polls)
	assert.Greater(t, stats.UtterancesIngested, uint64(0))
	assert.Equal(t, uint64(0), stats.Errors)

	count, err := sys.Store().CountUtterances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int(stats.UtterancesIngested), count)
}

func TestSystem_SearchAfterIngest(t *testing.T) {
	ctx := context.Background()

	sys, err := NewSystem(ctx, Config{
		SessionID:    "sim-001",
		Simulate:     true,
		MockEmbedder: true,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sys.Close() })

	require.NoError(t, sys.Run(ctx, 2))

	results, err := sys.Store().SearchSimilar(ctx, "quarterly results", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "sim-001", results[0].Utterance.SessionID)
}

func TestNewSystem_RequiresSession(t *testing.T) {
	_, err := NewSystem(context.Background(), Config{
		Simulate:     true,
		MockEmbedder: true,
	})
	require.Error(t, err)
}

func TestNewSystem_RequiresAPIKeyWithoutSimulate(t *testing.T) {
	_, err := NewSystem(context.Background(), Config{
		SessionID: "meet-001",
	})
	require.Error(t, err)
}
