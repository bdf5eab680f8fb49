package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/murmurhq/murmur/core"
)

// Key prefixes for different data types
const (
	utterancePrefix     = "uttrec"
	utteranceSessPrefix = "uttsess"
)

// makeUtteranceKey generates a key for an utterance by ID.
func makeUtteranceKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", utterancePrefix, id))
}

// makeSessionKey generates a composite key for the session index.
// Format: prefix:sessionID:id
func makeSessionKey(sessionID string, id core.ID) []byte {
	prefix := utteranceSessPrefix + ":" + sessionID + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeSessionPrefix generates the iteration prefix for a session's index entries.
func makeSessionPrefix(sessionID string) []byte {
	return []byte(utteranceSessPrefix + ":" + sessionID + ":")
}
