// Package monitor supervises one solver run: it launches the solver, polls
// the result file as increments land, evaluates the job's stop condition and
// stops the solver once the condition is met or something goes wrong.
package monitor

// State is a step of the polling loop.
type State int

const (
	Starting State = iota
	WaitingFile
	WaitingUpdate
	CheckingLock
	ReadingIncrement
	EvaluatingStop
	Stopping
	Terminated
)

var stateNames = [...]string{
	Starting:         "starting",
	WaitingFile:      "waiting_file",
	WaitingUpdate:    "waiting_update",
	CheckingLock:     "checking_lock",
	ReadingIncrement: "reading_increment",
	EvaluatingStop:   "evaluating_stop",
	Stopping:         "stopping",
	Terminated:       "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// polling reports whether the solver is expected to be running in s.
func (s State) polling() bool {
	return s > Starting && s < Stopping
}
