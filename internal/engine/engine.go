// Package engine defines the data/test engine collaborator: the component
// that runs the project's unit tests, materializes the PR preview
// environment, and promotes changes to production. The orchestrator only
// depends on the Engine interface; the exec adapter in this package drives
// the project's configured commands.
package engine

import "context"

// TestResult is the normalized outcome of a unit-test run. A failed test
// suite is an expected-negative outcome, not an error.
type TestResult struct {
	Passed bool
	Output string
}

// Interval is one contiguous loaded date range of a model.
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AffectedModel is one model touched by the pull request's plan.
type AffectedModel struct {
	Name       string     `json:"name"`
	ChangeType string     `json:"change_type"`
	Intervals  []Interval `json:"intervals,omitempty"`
}

// AffectedModelsSummary is what a successful PR environment sync reports:
// the models the pull request affects, for the check summary table.
type AffectedModelsSummary struct {
	Models []AffectedModel `json:"models"`
}

// ReconciliationError reports that a plan could not be applied because the
// change set is not reconciled (e.g. uncategorized changes or data gaps).
// It is an expected, author-actionable outcome distinct from a crash.
type ReconciliationError struct {
	Op     string
	Detail string
}

func (e *ReconciliationError) Error() string {
	if e.Detail == "" {
		return e.Op + ": plan is not reconciled"
	}
	return e.Op + ": plan is not reconciled: " + e.Detail
}

// Engine abstracts the underlying data-transformation platform.
//
// All methods block until the underlying operation finishes. Unexpected
// failures (the operation could not run at all) come back as ordinary
// errors; "plan not reconciled" comes back as *ReconciliationError so
// callers can branch on it without string matching.
type Engine interface {
	RunTests(ctx context.Context) (TestResult, error)
	SyncPREnvironment(ctx context.Context, env string) (AffectedModelsSummary, error)
	DeployToProd(ctx context.Context) (preview string, err error)
	DeletePREnvironment(ctx context.Context, env string) error
}
