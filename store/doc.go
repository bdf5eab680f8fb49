// Package store defines the durable store contract for canonical utterances
// and the binary wire format used by the embedded backend.
//
// Two backends implement the Store interface:
//
//   - store/badger: embedded BadgerDB backend, no external services
//   - store/qdrant: Qdrant vector database backend
//
// Both key records by the utterance's deterministic ID, which makes batch
// re-submission after a transient failure naturally idempotent.
package store
