package core

import (
	"encoding/binary"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// DefaultSource is the provenance tag applied to utterances when the
// originating integration does not set one.
const DefaultSource = "vexa"

// ID is a unique identifier for domain entities.
// It is derived from content-based hashing so that identical observations
// produce identical IDs.
type ID uint64

// IDFromTuple generates a deterministic ID from an utterance's identity
// tuple using BLAKE2b hashing. Two utterances that agree on session,
// speaker, start time and text always map to the same ID, across process
// restarts and serialization round-trips.
func IDFromTuple(sessionID, speakerID string, startTS float64, text string) ID {
	key := sessionID + ":" + speakerID + ":" + strconv.FormatFloat(startTS, 'g', -1, 64) + ":" + text
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Utterance is one spoken segment attributed to a speaker within a session.
// It is the canonical format used throughout the pipeline regardless of the
// upstream transcription source.
type Utterance struct {
	SessionID   string
	SpeakerID   string
	SpeakerName string    // Optional display name, empty when unknown
	Text        string    // May be empty for silence markers
	StartTS     float64   // Epoch seconds
	EndTS       float64   // Epoch seconds, 0 when the segment is still open
	Source      string    // Originating integration, e.g. "vexa"
	Vector      []float32 // Embedding vector (populated by the store layer)
}

// NewUtterance constructs an utterance from the required fields and applies
// the default provenance tag. Optional fields are set directly on the result.
func NewUtterance(sessionID, speakerID, text string, startTS float64) *Utterance {
	return &Utterance{
		SessionID: sessionID,
		SpeakerID: speakerID,
		Text:      text,
		StartTS:   startTS,
		Source:    DefaultSource,
	}
}

// ComputeID derives the utterance's deterministic identity from the
// (session, speaker, start time, text) tuple. The ID doubles as the
// in-memory dedup key and the storage primary key, so re-delivery of the
// same observation is idempotent at the storage layer.
func (u *Utterance) ComputeID() ID {
	return IDFromTuple(u.SessionID, u.SpeakerID, u.StartTS, u.Text)
}

// Payload converts the utterance to a flat field mapping for storage
// payloads. The embedding vector is carried separately and is not part of
// the payload.
func (u *Utterance) Payload() map[string]any {
	return map[string]any{
		"session_id":   u.SessionID,
		"speaker_id":   u.SpeakerID,
		"speaker_name": u.SpeakerName,
		"text":         u.Text,
		"start_ts":     u.StartTS,
		"end_ts":       u.EndTS,
		"source":       u.Source,
	}
}

// UtteranceFromPayload reconstructs an utterance from a flat field mapping.
// Missing optional fields default to their zero values; unknown keys are
// ignored. Returns ErrInvalidPayload when a required field is absent or of
// the wrong type.
func UtteranceFromPayload(payload map[string]any) (*Utterance, error) {
	sessionID, ok := payload["session_id"].(string)
	if !ok {
		return nil, payloadFieldError("session_id")
	}
	speakerID, ok := payload["speaker_id"].(string)
	if !ok {
		return nil, payloadFieldError("speaker_id")
	}
	text, ok := payload["text"].(string)
	if !ok {
		return nil, payloadFieldError("text")
	}
	startTS, ok := payloadFloat(payload, "start_ts")
	if !ok {
		return nil, payloadFieldError("start_ts")
	}

	u := &Utterance{
		SessionID: sessionID,
		SpeakerID: speakerID,
		Text:      text,
		StartTS:   startTS,
		Source:    DefaultSource,
	}

	if name, ok := payload["speaker_name"].(string); ok {
		u.SpeakerName = name
	}
	if endTS, ok := payloadFloat(payload, "end_ts"); ok {
		u.EndTS = endTS
	}
	if source, ok := payload["source"].(string); ok && source != "" {
		u.Source = source
	}

	return u, nil
}

// payloadFloat reads a numeric payload field, tolerating the integer types
// a decoder may produce for whole numbers.
func payloadFloat(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// SearchResult is an utterance matched by vector similarity search,
// paired with its relevance score.
type SearchResult struct {
	Utterance *Utterance
	Score     float32
}
