package ingest

// Stats are the pipeline's cumulative counters. They only ever increase
// over the pipeline's lifetime.
type Stats struct {
	Polls              uint64 // Completed poll cycles, including empty and failed ones
	UtterancesIngested uint64 // Utterances confirmed stored
	DuplicatesSkipped  uint64 // Utterances dropped by the dedup filter
	Errors             uint64 // Fetch, store and callback failures
}

// State is the pipeline lifecycle phase.
type State int32

const (
	// StateIdle is the initial state before Run is called.
	StateIdle State = iota

	// StateRunning means the poll loop is executing.
	StateRunning

	// StateStopped is terminal; the loop has exited.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
