// Package check implements the commit check-run lifecycle: the status and
// conclusion enums of the GitHub Checks API, the forward-only status
// transition machine, and a per-run registry that guarantees one check run
// per check name.
//
// Docs for the Check Run API: https://docs.github.com/en/rest/checks/runs
package check

// Status is the lifecycle state of a check run.
type Status string

const (
	// StatusNone is the zero value: the check has not been reported yet.
	StatusNone       Status = ""
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// rank orders statuses for the forward-only transition rule.
func (s Status) rank() int {
	switch s {
	case StatusNone:
		return 0
	case StatusQueued:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

func (s Status) valid() bool {
	return s == StatusQueued || s == StatusInProgress || s == StatusCompleted
}

// Conclusion is the terminal result of a completed check run. It accompanies
// StatusCompleted and only StatusCompleted.
type Conclusion string

const (
	ConclusionNone    Conclusion = ""
	ConclusionSuccess Conclusion = "success"
	ConclusionFailure Conclusion = "failure"
	// ConclusionNeutral marks an expected "not yet" outcome (e.g. approval
	// still pending), as opposed to an error.
	ConclusionNeutral   Conclusion = "neutral"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionTimedOut  Conclusion = "timed_out"
	// ConclusionActionRequired marks a structured failure the author must
	// resolve (e.g. an unreconciled plan).
	ConclusionActionRequired Conclusion = "action_required"
	ConclusionSkipped        Conclusion = "skipped"
)

func (c Conclusion) valid() bool {
	switch c {
	case ConclusionSuccess, ConclusionFailure, ConclusionNeutral,
		ConclusionCancelled, ConclusionTimedOut, ConclusionActionRequired,
		ConclusionSkipped:
		return true
	}
	return false
}
