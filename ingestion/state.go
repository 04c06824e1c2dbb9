package ingestion

// State is a stage of an ingestion run.
type State int

const (
	StateDiscovering State = iota + 1
	StateExtracting
	StateChunking
	StateEmbedding
	StateIndexing
	StateComplete
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateExtracting:
		return "extracting"
	case StateChunking:
		return "chunking"
	case StateEmbedding:
		return "embedding"
	case StateIndexing:
		return "indexing"
	case StateComplete:
		return "complete"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// StateObserver is notified on every state transition. url is the page
// being worked on, or the root while discovering, or empty at the end.
// It is called from the goroutine running Pipeline.Run.
type StateObserver func(state State, url string)
