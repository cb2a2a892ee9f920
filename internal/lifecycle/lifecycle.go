package lifecycle

import "sync/atomic"

// Phase is the process lifecycle position reported by /health.
type Phase int32

const (
	Starting Phase = iota
	Running
	Stopping
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// SetPhase records the current phase. Call with Running once the refresher
// and console are up, and with Stopping when the operator quits or a signal
// arrives.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// CurrentPhase returns the recorded phase. Starting until set otherwise.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown reports whether the process is stopping.
func IsShuttingDown() bool {
	return CurrentPhase() == Stopping
}
