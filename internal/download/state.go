package download

import "fmt"

// WorkerState tracks the background worker of a Manager.
type WorkerState int

const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerStopRequested
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerStopRequested:
		return "stop_requested"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("worker_state(%d)", int(s))
	}
}

// workerTransitions lists every legal move. Running -> Idle happens when the
// worker exits after IdleTimeout without work.
var workerTransitions = map[WorkerState][]WorkerState{
	WorkerIdle:          {WorkerRunning, WorkerStopped},
	WorkerRunning:       {WorkerIdle, WorkerStopRequested},
	WorkerStopRequested: {WorkerStopped},
	WorkerStopped:       {WorkerRunning},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to WorkerState) bool {
	for _, next := range workerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
