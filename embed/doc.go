// Package embed provides abstractions for embedding services used in Murmur.
//
// The Embedder interface decouples the store layer from any specific
// embedding backend. Two implementations ship with the module:
//
//   - embed/openai: production implementation for OpenAI-compatible APIs
//   - embed/mock: deterministic test double with no external dependencies
//
// Public constructors (openai.NewEmbedder) return the Embedder interface to
// enforce abstraction; the mock constructor returns a concrete type so tests
// can inject behavior and assert on call counts.
package embed
