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


// Package murmur ingests live meeting transcripts into vector-searchable
// storage. The System facade wires a transcript source, a store, an
// optional event publisher and the polling pipeline into one unit with
// ordered setup and teardown.
package murmur

import (
	"context"
	"log/slog"
	"time"

	"github.com/murmurhq/murmur/embed"
	"github.com/murmurhq/murmur/embed/mock"
	"github.com/murmurhq/murmur/embed/openai"
	"github.com/murmurhq/murmur/ingest"
	"github.com/murmurhq/murmur/metrics"
	"github.com/murmurhq/murmur/notify"
	"github.com/murmurhq/murmur/source"
	"github.com/murmurhq/murmur/source/sim"
	"github.com/murmurhq/murmur/source/vexa"
	"github.com/murmurhq/murmur/store"
	"github.com/murmurhq/murmur/store/badger"
	"github.com/murmurhq/murmur/store/qdrant"
)

// Config selects and configures the system's components.
type Config struct {
	SessionID string

	// Source selection. Simulate replaces the Vexa API with the
	// deterministic simulator.
	Simulate   bool
	VexaAPIKey string
	VexaAPIURL string // Empty means the production endpoint
	SkipDeploy bool   // Skip the bot deployment call on startup

	// Store selection. QdrantHost picks the Qdrant backend; otherwise
	// BadgerPath picks the embedded one. An empty BadgerPath opens an
	// in-memory store.
	QdrantHost string
	QdrantPort int
	BadgerPath string

	// Embedding. EmbedConfig nil with MockEmbedder false leaves the
	// Badger backend vectorless; the Qdrant backend requires one or the
	// other.
	EmbedConfig  *embed.Config
	MockEmbedder bool

	// Notification. No brokers means log-only mode.
	KafkaBrokers []string
	KafkaTopic   string

	// Pipeline.
	PollInterval     time.Duration
	InitialWatermark float64
	Metrics          *metrics.Metrics
}

// System owns the wired components for one ingestion session.
type System struct {
	src       source.Client
	store     store.Store
	publisher *notify.Publisher
	pipeline  *ingest.Pipeline
	logger    *slog.Logger
}

// NewSystem builds and wires all components. On partial failure,
// everything already constructed is torn down before returning.
func NewSystem(ctx context.Context, cfg Config) (*System, error) {
	logger := slog.Default()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	src, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	st, err := buildStore(ctx, cfg, embedder)
	if err != nil {
		src.Close()
		return nil, err
	}

	publisher := notify.New(notify.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})

	pipelineOpts := []ingest.Option{
		ingest.WithUtteranceCallback(publisher.Publish),
	}
	if cfg.PollInterval > 0 {
		pipelineOpts = append(pipelineOpts, ingest.WithPollInterval(cfg.PollInterval))
	}
	if cfg.InitialWatermark > 0 {
		pipelineOpts = append(pipelineOpts, ingest.WithInitialWatermark(cfg.InitialWatermark))
	}
	if cfg.Metrics != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithMetrics(cfg.Metrics))
	}

	pipeline, err := ingest.NewPipeline(src, st, cfg.SessionID, pipelineOpts...)
	if err != nil {
		publisher.Close()
		st.Close()
		src.Close()
		return nil, err
	}

	if !cfg.Simulate && !cfg.SkipDeploy {
		if err := src.DeployBot(ctx, cfg.SessionID); err != nil {
			publisher.Close()
			st.Close()
			src.Close()
			return nil, err
		}
	}

	// Status is advisory at startup: a bot may still be joining, so an
	// inactive or unreachable meeting is logged, not fatal.
	if active, err := src.MeetingActive(ctx, cfg.SessionID); err != nil {
		logger.Warn("could not check meeting status", "session", cfg.SessionID, "err", err)
	} else if !active {
		logger.Warn("meeting is not active yet", "session", cfg.SessionID)
	}

	return &System{
		src:       src,
		store:     st,
		publisher: publisher,
		pipeline:  pipeline,
		logger:    logger,
	}, nil
}

func buildEmbedder(cfg Config) (embed.Embedder, error) {
	if cfg.MockEmbedder {
		dim := embed.DefaultDimensions
		if cfg.EmbedConfig != nil {
			dim = cfg.EmbedConfig.Dimensions
		}
		return mock.NewEmbedder(dim), nil
	}
	if cfg.EmbedConfig == nil {
		return nil, nil
	}
	return openai.NewEmbedder(cfg.EmbedConfig)
}

func buildSource(cfg Config) (source.Client, error) {
	if cfg.Simulate {
		return sim.NewClient(), nil
	}

	var opts []vexa.Option
	if cfg.VexaAPIURL != "" {
		opts = append(opts, vexa.WithBaseURL(cfg.VexaAPIURL))
	}
	return vexa.NewClient(cfg.VexaAPIKey, opts...)
}

func buildStore(ctx context.Context, cfg Config, embedder embed.Embedder) (store.Store, error) {
	if cfg.QdrantHost != "" {
		var opts []qdrant.Option
		if cfg.EmbedConfig != nil {
			opts = append(opts, qdrant.WithVectorSize(cfg.EmbedConfig.Dimensions))
		}
		return qdrant.Open(ctx, cfg.QdrantHost, cfg.QdrantPort, embedder, opts...)
	}

	var opts []badger.Option
	if embedder != nil {
		opts = append(opts, badger.WithEmbedder(embedder))
	}
	return badger.Open(cfg.BadgerPath, cfg.BadgerPath == "", opts...)
}

// Run executes the ingestion loop. It blocks until the loop stops.
func (s *System) Run(ctx context.Context, maxCycles int) error {
	return s.pipeline.Run(ctx, maxCycles)
}

// RequestStop asks the running loop to exit.
func (s *System) RequestStop() {
	s.pipeline.RequestStop()
}

// Pipeline returns the ingestion pipeline for stats and state inspection.
func (s *System) Pipeline() *ingest.Pipeline {
	return s.pipeline
}

// Store returns the wired store.
func (s *System) Store() store.Store {
	return s.store
}

// Close tears the system down in reverse construction order.
func (s *System) Close() error {
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("error closing publisher", "err", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing store", "err", err)
		return err
	}
	if err := s.src.Close(); err != nil {
		s.logger.Error("error closing source", "err", err)
		return err
	}
	return nil
}
