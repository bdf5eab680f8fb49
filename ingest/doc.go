// Package ingest provides the polling loop that moves transcript
// utterances from a source into durable storage.
//
// The Pipeline type repeatedly fetches the session transcript, drops
// utterances it has already processed, stores the remainder as one batch,
// and advances a timestamp watermark that narrows future fetches. Each
// newly stored utterance is handed to an optional callback in transcript
// order. No error escapes a poll cycle: failures are counted, logged, and
// the loop carries on at the next interval.
package ingest
