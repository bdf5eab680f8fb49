// Package notify publishes newly ingested utterances to Kafka for
// downstream consumers. With no brokers configured the publisher runs in
// log-only mode, which keeps the pipeline wiring identical in local runs.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/murmurhq/murmur/core"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the topic utterance events are published to.
const DefaultTopic = "meeting.utterances"

// Publisher writes one JSON event per stored utterance, keyed by session
// ID so a session's events land on one partition in order.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	logger  *slog.Logger
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// utteranceEvent is the published wire format.
type utteranceEvent struct {
	ID          uint64  `json:"id"`
	SessionID   string  `json:"session_id"`
	SpeakerID   string  `json:"speaker_id"`
	SpeakerName string  `json:"speaker_name,omitempty"`
	Text        string  `json:"text"`
	StartTS     float64 `json:"start_ts"`
	EndTS       float64 `json:"end_ts,omitempty"`
	Source      string  `json:"source"`
}

// New creates a publisher. With no brokers it runs in log-only mode.
func New(cfg Config) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "publisher")

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	if len(cfg.Brokers) == 0 {
		logger.Info("kafka disabled, using log-only mode")
		return &Publisher{
			topic:  topic,
			logger: logger,
		}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka publisher initialized", "brokers", cfg.Brokers, "topic", topic)

	return &Publisher{
		writer:  writer,
		topic:   topic,
		enabled: true,
		logger:  logger,
	}
}

// Publish emits one event for a stored utterance. The signature matches
// the ingestion pipeline's utterance callback.
func (p *Publisher) Publish(u *core.Utterance) error {
	event := utteranceEvent{
		ID:          uint64(u.ComputeID()),
		SessionID:   u.SessionID,
		SpeakerID:   u.SpeakerID,
		SpeakerName: u.SpeakerName,
		Text:        u.Text,
		StartTS:     u.StartTS,
		EndTS:       u.EndTS,
		Source:      u.Source,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if !p.enabled {
		p.logger.Debug("event", "topic", p.topic, "payload", string(payload))
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(u.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(u.Source)},
		},
	}

	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Error("kafka write failed", "topic", p.topic, "err", err)
		return err
	}

	return nil
}

// Enabled reports whether events actually reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
