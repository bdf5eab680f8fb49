// Package source defines the transcript source contract: anything that can
// produce utterances for a session, whether a live meeting-bot API or a
// simulator. Implementations normalize their wire formats into the
// canonical utterance model before returning.
package source
