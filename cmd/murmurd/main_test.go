package main

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/murmurhq/murmur/core"
	"github.com/murmurhq/murmur/store/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSetupLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	app := &cli.App{
		Name: "murmurd",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Before: setupLogger,
		Action: func(c *cli.Context) error { return nil },
	}

	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "Info"} {
			err := app.Run([]string{"murmurd", "--log-level", level})
			assert.NoError(t, err, "level %q should be accepted", level)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		err := app.Run([]string{"murmurd", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestStoreFlags(t *testing.T) {
	flags := storeFlags()

	var qdrantPort *cli.IntFlag
	var embeddingHost *cli.StringFlag
	for _, flag := range flags {
		switch f := flag.(type) {
		case *cli.IntFlag:
			if f.Name == "qdrant-port" {
				qdrantPort = f
			}
		case *cli.StringFlag:
			if f.Name == "embedding-host" {
				embeddingHost = f
			}
		}
	}

	require.NotNil(t, qdrantPort)
	assert.Equal(t, 6334, qdrantPort.Value)

	require.NotNil(t, embeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", embeddingHost.Value)
}

func TestIngestCommand_RequiresMeetingID(t *testing.T) {
	os.Unsetenv("VEXA_MEETING_ID")
	os.Unsetenv("VEXA_API_KEY")

	app := &cli.App{
		Name: "murmurd",
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "meeting", EnvVars: []string{"VEXA_MEETING_ID"}},
					&cli.StringFlag{Name: "api-key", EnvVars: []string{"VEXA_API_KEY"}},
					&cli.BoolFlag{Name: "simulate"},
				},
			},
		},
	}

	err := app.Run([]string{"murmurd", "ingest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meeting ID is required")
}

func purgeApp() *cli.App {
	return &cli.App{
		Name: "murmurd",
		Commands: []*cli.Command{
			{
				Name:   "purge",
				Action: purgeCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "meeting", EnvVars: []string{"VEXA_MEETING_ID"}},
				}, storeFlags()...),
			},
		},
	}
}

func TestPurgeCommand_RequiresMeetingID(t *testing.T) {
	os.Unsetenv("VEXA_MEETING_ID")

	err := purgeApp().Run([]string{"murmurd", "purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meeting ID is required")
}

func TestPurgeCommand_DeletesSession(t *testing.T) {
	os.Unsetenv("VEXA_MEETING_ID")

	ctx := context.Background()
	dir := t.TempDir()

	st, err := badger.Open(dir, false)
	require.NoError(t, err)
	require.NoError(t, st.UpsertUtterances(ctx,
		core.NewUtterance("meet-keep", "spk-1", "stays", 10),
		core.NewUtterance("meet-gone", "spk-2", "goes", 11),
	))
	require.NoError(t, st.Close())

	err = purgeApp().Run([]string{"murmurd", "purge",
		"--meeting", "meet-gone", "--db", dir, "--mock-embedder"})
	require.NoError(t, err)

	st, err = badger.Open(dir, false)
	require.NoError(t, err)
	defer st.Close()

	count, err := st.CountUtterances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
