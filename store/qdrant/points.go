package qdrant

import (
	"github.com/murmurhq/murmur/core"
	"github.com/qdrant/go-client/qdrant"
)

// pointFromUtterance converts an utterance into a Qdrant point.
// The utterance's vector must already be populated.
func pointFromUtterance(u *core.Utterance) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(u.ComputeID())),
		Vectors: qdrant.NewVectors(u.Vector...),
		Payload: qdrant.NewValueMap(u.Payload()),
	}
}

// payloadToMap converts a Qdrant payload back into a flat field mapping.
// Only the scalar kinds the payload schema uses are handled.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	m := make(map[string]any, len(payload))
	for key, value := range payload {
		switch kind := value.GetKind().(type) {
		case *qdrant.Value_StringValue:
			m[key] = kind.StringValue
		case *qdrant.Value_DoubleValue:
			m[key] = kind.DoubleValue
		case *qdrant.Value_IntegerValue:
			m[key] = kind.IntegerValue
		case *qdrant.Value_BoolValue:
			m[key] = kind.BoolValue
		}
	}
	return m
}

// utteranceFromPayload reconstructs an utterance from a Qdrant payload.
func utteranceFromPayload(payload map[string]*qdrant.Value) (*core.Utterance, error) {
	return core.UtteranceFromPayload(payloadToMap(payload))
}
