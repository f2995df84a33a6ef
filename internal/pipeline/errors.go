package pipeline

import "fmt"

// Stage names, also used as metric and trace operation names.
const (
	StageTracking = "tracking"
	StageResults  = "results"
	StageMerge    = "merge"
	StagePivot    = "pivot"
	StageWorklist = "worklist"
	StagePersist  = "persist"
	StagePush     = "push_worklist"
)

// User-facing messages for the terminal failures.
const (
	MsgTracking = "Issue reading in tracking file."
	MsgResults  = "Issue reading assay results from resultsdb."
	MsgPersist  = "Issue saving the output file."
	MsgPush     = "Issue writing worklist to Google Sheet."
)

// RunError is a stage failure. Error returns the fixed user-facing message;
// the cause stays reachable through Unwrap.
type RunError struct {
	Stage   string
	Message string
	Err     error
}

func (e *RunError) Error() string { return e.Message }

func (e *RunError) Unwrap() error { return e.Err }

// Detail renders the message with its cause for logs.
func (e *RunError) Detail() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s (%s: %v)", e.Message, e.Stage, e.Err)
}
