package check

import "fmt"

// State is the recorded lifecycle position of one check: its status plus,
// once completed, its conclusion.
type State struct {
	Status     Status
	Conclusion Conclusion
}

// InvalidTransitionError reports a status update that violates the check
// lifecycle contract. It signals a programming defect in the caller (a stage
// re-reporting a finalized result), not a runtime condition.
type InvalidTransitionError struct {
	Current    State
	Requested  Status
	Conclusion Conclusion
	Reason     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid check transition %q -> %q (conclusion %q): %s",
		e.Current.Status, e.Requested, e.Conclusion, e.Reason)
}

// Apply validates a requested status update against the current lifecycle
// state and returns the next state.
//
// Rules:
//   - statuses only move forward: queued -> in_progress -> completed
//   - a conclusion is required when requesting completed, and rejected otherwise
//   - re-requesting the current status is idempotent, provided the conclusion
//     matches; a different conclusion after completion is rejected, since a
//     recorded result is immutable for the run
func Apply(current State, requested Status, conclusion Conclusion) (State, error) {
	fail := func(reason string) (State, error) {
		return current, &InvalidTransitionError{
			Current:    current,
			Requested:  requested,
			Conclusion: conclusion,
			Reason:     reason,
		}
	}

	if !requested.valid() {
		return fail("unknown requested status")
	}
	if requested == StatusCompleted {
		if conclusion == ConclusionNone {
			return fail("completed requires a conclusion")
		}
		if !conclusion.valid() {
			return fail("unknown conclusion")
		}
	} else if conclusion != ConclusionNone {
		return fail("conclusion is only valid with completed")
	}

	if requested.rank() < current.Status.rank() {
		return fail("status cannot move backward")
	}
	if requested == current.Status {
		if requested != StatusCompleted {
			// Idempotent re-request of a non-terminal status.
			return current, nil
		}
		if conclusion == current.Conclusion {
			return current, nil
		}
		return fail("completed check result is immutable")
	}
	return State{Status: requested, Conclusion: conclusion}, nil
}
