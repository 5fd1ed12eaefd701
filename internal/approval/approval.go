// Package approval decides whether a pull request has satisfied the
// required-approval gate.
package approval

// Evaluate reports whether the set of users who approved the pull request
// satisfies the configured required approvers.
//
// Enforcement is opt-in: an empty required set always passes. Otherwise the
// gate passes when at least one required approver is among the approvers.
// This is deliberately an "any one" policy, not unanimous consent: a single
// required approver's sign-off is enough, no matter how many are listed.
func Evaluate(required, approvers []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(approvers))
	for _, a := range approvers {
		have[a] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; ok {
			return true
		}
	}
	return false
}

// Satisfying returns the required approvers whose approval is present, in
// the order they appear in required. Used for check summaries.
func Satisfying(required, approvers []string) []string {
	have := make(map[string]struct{}, len(approvers))
	for _, a := range approvers {
		have[a] = struct{}{}
	}
	var out []string
	for _, r := range required {
		if _, ok := have[r]; ok {
			out = append(out, r)
		}
	}
	return out
}
