package coordinator

// Phase is the coordinator's position in the polling cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePolling
	PhaseBackoff
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}
