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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/murmurhq/murmur"
	"github.com/murmurhq/murmur/embed"
	"github.com/murmurhq/murmur/embed/mock"
	"github.com/murmurhq/murmur/embed/openai"
	"github.com/murmurhq/murmur/metrics"
	"github.com/murmurhq/murmur/store"
	"github.com/murmurhq/murmur/store/badger"
	"github.com/murmurhq/murmur/store/qdrant"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "murmurd",
		Usage: "Live meeting transcript ingestion into vector-searchable storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Poll a meeting transcript and store new utterances",
				Action: ingestCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "meeting",
						Aliases: []string{"m"},
						Usage:   "Meeting/session ID to ingest",
						EnvVars: []string{"VEXA_MEETING_ID"},
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "Vexa API key",
						EnvVars: []string{"VEXA_API_KEY"},
					},
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "Vexa API base URL (defaults to the production endpoint)",
						EnvVars: []string{"VEXA_API_URL"},
					},
					&cli.BoolFlag{
						Name:  "simulate",
						Usage: "Use the deterministic transcript simulator instead of the Vexa API",
					},
					&cli.BoolFlag{
						Name:  "skip-deploy",
						Usage: "Skip the bot deployment call on startup",
					},
					&cli.DurationFlag{
						Name:    "poll-interval",
						Usage:   "Pause between transcript polls",
						Value:   2 * time.Second,
						EnvVars: []string{"POLL_INTERVAL"},
					},
					&cli.IntFlag{
						Name:  "max-cycles",
						Usage: "Stop after N poll cycles (0 = run until stopped)",
					},
					&cli.Float64Flag{
						Name:  "since",
						Usage: "Skip utterances at or before this epoch-seconds timestamp",
					},
					&cli.StringFlag{
						Name:    "kafka-brokers",
						Usage:   "Comma-separated Kafka brokers (empty = log-only mode)",
						EnvVars: []string{"KAFKA_BROKERS"},
					},
					&cli.StringFlag{
						Name:    "kafka-topic",
						Usage:   "Kafka topic for utterance events",
						EnvVars: []string{"KAFKA_TOPIC"},
					},
					&cli.StringFlag{
						Name:    "metrics-addr",
						Usage:   "Serve Prometheus metrics on this address (e.g. :9090)",
						EnvVars: []string{"METRICS_ADDR"},
					},
				}, storeFlags()...),
			},
			{
				Name:   "search",
				Usage:  "Search stored utterances by semantic similarity",
				Action: searchCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				}, storeFlags()...),
			},
			{
				Name:   "count",
				Usage:  "Report the number of stored utterances",
				Action: countCommand,
				Flags:  storeFlags(),
			},
			{
				Name:   "purge",
				Usage:  "Delete all stored utterances for a meeting",
				Action: purgeCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "meeting",
						Aliases: []string{"m"},
						Usage:   "Meeting/session ID to purge",
						EnvVars: []string{"VEXA_MEETING_ID"},
					},
				}, storeFlags()...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// storeFlags are shared by every command that opens a store backend.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "qdrant-host",
			Usage:   "Qdrant server host (selects the Qdrant backend)",
			EnvVars: []string{"QDRANT_HOST"},
		},
		&cli.IntFlag{
			Name:    "qdrant-port",
			Usage:   "Qdrant gRPC port",
			Value:   6334,
			EnvVars: []string{"QDRANT_PORT"},
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB directory (selects the embedded backend)",
			EnvVars: []string{"BADGER_PATH"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   "embeddinggemma",
			EnvVars: []string{"EMBEDDING_MODEL"},
		},
		&cli.IntFlag{
			Name:  "embedding-dim",
			Usage: "Embedding vector size",
			Value: embed.DefaultDimensions,
		},
		&cli.BoolFlag{
			Name:  "mock-embedder",
			Usage: "Use a deterministic in-process embedder (testing only)",
		},
	}
}

func embedConfigFromFlags(c *cli.Context) *embed.Config {
	return embed.NewConfig(
		embed.WithHost(c.String("embedding-host")),
		embed.WithModel(c.String("embedding-model")),
		embed.WithDimensions(c.Int("embedding-dim")),
	)
}

func ingestCommand(c *cli.Context) error {
	meetingID := c.String("meeting")
	if meetingID == "" {
		return fmt.Errorf("meeting ID is required (--meeting or VEXA_MEETING_ID)")
	}
	if !c.Bool("simulate") && c.String("api-key") == "" {
		return fmt.Errorf("API key is required (--api-key or VEXA_API_KEY)")
	}

	var brokers []string
	if raw := c.String("kafka-brokers"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	cfg := murmur.Config{
		SessionID:        meetingID,
		Simulate:         c.Bool("simulate"),
		VexaAPIKey:       c.String("api-key"),
		VexaAPIURL:       c.String("api-url"),
		SkipDeploy:       c.Bool("skip-deploy"),
		QdrantHost:       c.String("qdrant-host"),
		QdrantPort:       c.Int("qdrant-port"),
		BadgerPath:       c.String("db"),
		EmbedConfig:      embedConfigFromFlags(c),
		MockEmbedder:     c.Bool("mock-embedder"),
		KafkaBrokers:     brokers,
		KafkaTopic:       c.String("kafka-topic"),
		PollInterval:     c.Duration("poll-interval"),
		InitialWatermark: c.Float64("since"),
		Metrics:          metrics.Default,
	}

	ctx := context.Background()
	sys, err := murmur.NewSystem(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build system: %w", err)
	}
	defer sys.Close()

	if addr := c.String("metrics-addr"); addr != "" {
		go serveMetrics(addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping", "signal", sig.String())
		sys.RequestStop()
	}()

	if err := sys.Run(ctx, c.Int("max-cycles")); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	stats := sys.Pipeline().Stats()
	fmt.Fprintf(os.Stderr, "polls=%d ingested=%d duplicates=%d errors=%d\n",
		stats.Polls, stats.UtterancesIngested, stats.DuplicatesSkipped, stats.Errors)

	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.SearchSimilar(ctx, c.String("query"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, r := range results {
		name := r.Utterance.SpeakerName
		if name == "" {
			name = r.Utterance.SpeakerID
		}
		fmt.Printf("%.4f  [%s] %s: %s\n", r.Score, r.Utterance.SessionID, name, r.Utterance.Text)
	}

	return nil
}

func countCommand(c *cli.Context) error {
	ctx := context.Background()

	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	count, err := st.CountUtterances(ctx)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}

	fmt.Println(count)
	return nil
}

func purgeCommand(c *cli.Context) error {
	meetingID := c.String("meeting")
	if meetingID == "" {
		return fmt.Errorf("meeting ID is required (--meeting or VEXA_MEETING_ID)")
	}

	ctx := context.Background()

	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteSession(ctx, meetingID); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "purged utterances for meeting %s\n", meetingID)
	return nil
}

// openStore builds the store backend the flags select, mirroring the
// ingest command's selection logic.
func openStore(ctx context.Context, c *cli.Context) (store.Store, error) {
	var embedder embed.Embedder
	if c.Bool("mock-embedder") {
		embedder = mock.NewEmbedder(c.Int("embedding-dim"))
	} else {
		var err error
		embedder, err = buildOpenAIEmbedder(c)
		if err != nil {
			return nil, err
		}
	}

	if host := c.String("qdrant-host"); host != "" {
		return qdrant.Open(ctx, host, c.Int("qdrant-port"), embedder,
			qdrant.WithVectorSize(c.Int("embedding-dim")))
	}

	path := c.String("db")
	if path == "" {
		return nil, fmt.Errorf("a store backend is required (--db or --qdrant-host)")
	}
	return badger.Open(path, false, badger.WithEmbedder(embedder))
}

func buildOpenAIEmbedder(c *cli.Context) (embed.Embedder, error) {
	embedder, err := openai.NewEmbedder(embedConfigFromFlags(c))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "err", err)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
