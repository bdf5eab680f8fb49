// Package mock provides a test double implementation of embed.Embedder.
//
// The mock produces deterministic vectors derived from a hash of the input
// text, so identical texts always embed identically and tests need no
// external embedding service. Behavior can be overridden per test via the
// EmbedTextFunc and EmbedTextsFunc fields.
package mock
