package app

// RunState is the lifecycle of one generation run.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
