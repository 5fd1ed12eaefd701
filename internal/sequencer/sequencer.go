// Package sequencer runs an ordered set of CI stages against a pull request
// and mirrors each stage's lifecycle onto a commit status surface. It owns
// the control flow only: which stages run, which are skipped because an
// upstream gate failed, and how partial failure is reported. The business
// logic of each stage lives in its Action.
package sequencer

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"prgate/internal/check"
)

// Result is the normalized outcome a stage action reports back. Passed
// drives downstream skip propagation; Conclusion is what the external check
// displays. The two only diverge for skipped stages, which never ran an
// action at all.
type Result struct {
	Passed     bool
	Conclusion check.Conclusion
	Detail     string
}

// Reporter reflects stage state onto the external commit status surface.
// *check.Registry satisfies it.
type Reporter interface {
	Upsert(ctx context.Context, name string, status check.Status, conclusion check.Conclusion, title, summary string) error
}

// Describer renders the human-facing title and summary for a stage at a
// given lifecycle point. res is nil until the stage completes.
type Describer func(status check.Status, res *Result) (title, summary string)

// Stage is one unit of orchestrated work mapped to exactly one check.
type Stage struct {
	// Key identifies the stage inside the run.
	Key string
	// Name is the external check display name.
	Name string
	// Needs lists keys of stages that must pass before this one runs. A
	// failed, neutral, or skipped prerequisite skips this stage without
	// invoking its action.
	Needs []string
	// Action does the stage's work. A returned error is fatal for the run;
	// expected-negative outcomes are Results with Passed=false.
	Action func(ctx context.Context) (Result, error)
	// Describe renders the check title/summary for each lifecycle update.
	Describe Describer
}

// Outcome is the run-level result: one terminal conclusion per executed
// stage, keyed by Stage.Key.
type Outcome struct {
	Results map[string]Result
}

// Success reports whether every stage concluded Success. Stages omitted
// from the run (e.g. an unconfigured approval gate) do not participate.
func (o Outcome) Success() bool {
	if len(o.Results) == 0 {
		return false
	}
	for _, res := range o.Results {
		if res.Conclusion != check.ConclusionSuccess {
			return false
		}
	}
	return true
}

// ExitCode maps a run to the process exit code contract:
//
//	0 = every stage succeeded
//	1 = a gate failed or was skipped (expected-negative outcome)
//	2 = fatal error (run aborted)
func ExitCode(outcome Outcome, fatal bool) int {
	if fatal {
		return 2
	}
	if outcome.Success() {
		return 0
	}
	return 1
}

// Sequencer executes stages sequentially in the order given, reporting each
// lifecycle transition through the Reporter. One Sequencer serves one
// orchestration run; nothing is shared across runs.
type Sequencer struct {
	reporter Reporter
}

func New(reporter Reporter) *Sequencer {
	return &Sequencer{reporter: reporter}
}

// Run drives all stages to a terminal state.
//
// Every stage is marked queued up front, before any work starts. Stages then
// run in order: a stage whose prerequisites all passed gets in_progress and
// its action invoked; otherwise it completes as skipped without its action
// ever being called. Any error — from an action or from the status surface
// itself — aborts the run, but only after the failing stage is marked
// failed and every remaining stage is best-effort marked skipped: reporting
// is never skipped on the way to propagating an error.
func (s *Sequencer) Run(ctx context.Context, stages []Stage) (Outcome, error) {
	log := clog.FromContext(ctx)
	outcome := Outcome{Results: make(map[string]Result, len(stages))}

	if err := validate(stages); err != nil {
		return outcome, err
	}

	for _, st := range stages {
		title, summary := st.Describe(check.StatusQueued, nil)
		if err := s.reporter.Upsert(ctx, st.Name, check.StatusQueued, check.ConclusionNone, title, summary); err != nil {
			s.skipRemaining(ctx, stages, outcome)
			return outcome, fmt.Errorf("queue check %q: %w", st.Name, err)
		}
	}

	for i, st := range stages {
		if blocked(st, outcome) {
			res := Result{Passed: false, Conclusion: check.ConclusionSkipped}
			title, summary := st.Describe(check.StatusCompleted, &res)
			if err := s.reporter.Upsert(ctx, st.Name, check.StatusCompleted, check.ConclusionSkipped, title, summary); err != nil {
				s.skipRemaining(ctx, stages[i+1:], outcome)
				return outcome, fmt.Errorf("report skipped check %q: %w", st.Name, err)
			}
			outcome.Results[st.Key] = res
			log.With("stage", st.Key).Infof("stage skipped: prerequisite did not pass")
			continue
		}

		title, summary := st.Describe(check.StatusInProgress, nil)
		if err := s.reporter.Upsert(ctx, st.Name, check.StatusInProgress, check.ConclusionNone, title, summary); err != nil {
			s.skipRemaining(ctx, stages[i:], outcome)
			return outcome, fmt.Errorf("start check %q: %w", st.Name, err)
		}

		res, err := st.Action(ctx)
		if err != nil {
			failed := Result{Passed: false, Conclusion: check.ConclusionFailure, Detail: err.Error()}
			title, summary := st.Describe(check.StatusCompleted, &failed)
			if rerr := s.reporter.Upsert(ctx, st.Name, check.StatusCompleted, check.ConclusionFailure, title, summary); rerr != nil {
				log.With("stage", st.Key).Errorf("failed to report fatal stage failure: %v", rerr)
			}
			outcome.Results[st.Key] = failed
			s.skipRemaining(ctx, stages[i+1:], outcome)
			return outcome, fmt.Errorf("stage %s: %w", st.Key, err)
		}

		title, summary = st.Describe(check.StatusCompleted, &res)
		if err := s.reporter.Upsert(ctx, st.Name, check.StatusCompleted, res.Conclusion, title, summary); err != nil {
			outcome.Results[st.Key] = res
			s.skipRemaining(ctx, stages[i+1:], outcome)
			return outcome, fmt.Errorf("report check %q: %w", st.Name, err)
		}
		outcome.Results[st.Key] = res
		log.With("stage", st.Key, "conclusion", res.Conclusion).Infof("stage completed")
	}

	return outcome, nil
}

// blocked reports whether any prerequisite of st did not pass.
func blocked(st Stage, outcome Outcome) bool {
	for _, need := range st.Needs {
		if res, ok := outcome.Results[need]; !ok || !res.Passed {
			return true
		}
	}
	return false
}

// skipRemaining best-effort marks every stage without a terminal result as
// skipped, so no check is left hanging in_progress or queued when the run
// aborts. Reporting errors here are logged, not returned: the caller is
// already propagating the original failure.
func (s *Sequencer) skipRemaining(ctx context.Context, stages []Stage, outcome Outcome) {
	log := clog.FromContext(ctx)
	for _, st := range stages {
		if _, done := outcome.Results[st.Key]; done {
			continue
		}
		res := Result{Passed: false, Conclusion: check.ConclusionSkipped}
		title, summary := st.Describe(check.StatusCompleted, &res)
		if err := s.reporter.Upsert(ctx, st.Name, check.StatusCompleted, check.ConclusionSkipped, title, summary); err != nil {
			log.With("stage", st.Key).Errorf("failed to mark stage skipped: %v", err)
			continue
		}
		outcome.Results[st.Key] = res
	}
}

// validate checks the stage list forms a DAG presented in dependency order:
// every Needs entry must refer to an earlier stage, and keys and names must
// be unique. A violation is a programming defect in the stage definitions.
func validate(stages []Stage) error {
	seenKeys := make(map[string]struct{}, len(stages))
	seenNames := make(map[string]struct{}, len(stages))
	for _, st := range stages {
		if st.Key == "" || st.Name == "" {
			return fmt.Errorf("stage %q/%q: key and name are required", st.Key, st.Name)
		}
		if st.Action == nil || st.Describe == nil {
			return fmt.Errorf("stage %s: action and describe are required", st.Key)
		}
		if _, dup := seenKeys[st.Key]; dup {
			return fmt.Errorf("duplicate stage key %q", st.Key)
		}
		if _, dup := seenNames[st.Name]; dup {
			return fmt.Errorf("duplicate check name %q", st.Name)
		}
		for _, need := range st.Needs {
			if _, ok := seenKeys[need]; !ok {
				return fmt.Errorf("stage %s needs %q, which is not an earlier stage", st.Key, need)
			}
		}
		seenKeys[st.Key] = struct{}{}
		seenNames[st.Name] = struct{}{}
	}
	return nil
}
