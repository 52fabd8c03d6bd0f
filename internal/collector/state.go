package collector

// State is the phase the collector is currently in.
type State int32

const (
	StateIdle State = iota
	StateListing
	StateFiltering
	StateFetching
	StateRecording
	StatePruning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListing:
		return "listing"
	case StateFiltering:
		return "filtering"
	case StateFetching:
		return "fetching"
	case StateRecording:
		return "recording"
	case StatePruning:
		return "pruning"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
