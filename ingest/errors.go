package ingest

import "errors"

var (
	// ErrSourceRequired is returned when a transcript source is not provided.
	ErrSourceRequired = errors.New("transcript source required")

	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrSessionRequired is returned when a session ID is not provided.
	ErrSessionRequired = errors.New("session ID required")

	// ErrAlreadyStarted is returned when Run is called on a running pipeline.
	ErrAlreadyStarted = errors.New("pipeline already started")

	// ErrStopped is returned when Run is called on a stopped pipeline.
	// A stopped pipeline cannot be restarted; create a new one.
	ErrStopped = errors.New("pipeline stopped")
)
