package check

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v81/github"
	"github.com/jonboulle/clockwork"
)

// ChecksAPI is the slice of the GitHub Checks service the registry needs.
// *github.ChecksService satisfies it.
type ChecksAPI interface {
	CreateCheckRun(ctx context.Context, owner, repo string, opts github.CreateCheckRunOptions) (*github.CheckRun, *github.Response, error)
	UpdateCheckRun(ctx context.Context, owner, repo string, checkRunID int64, opts github.UpdateCheckRunOptions) (*github.CheckRun, *github.Response, error)
}

// Registry tracks the check runs created against one head commit during a
// single orchestration run. The first Upsert for a check name creates the
// check run and caches its ID; every later Upsert for that name edits the
// same run in place, so repeated invocations never duplicate status entries.
//
// A Registry is scoped to one run and is not safe for concurrent use;
// concurrent runs must each get their own instance.
type Registry struct {
	api     ChecksAPI
	owner   string
	repo    string
	headSHA string
	clock   clockwork.Clock

	entries map[string]*entry
}

type entry struct {
	id    int64
	state State
}

type RegistryOption func(*Registry)

// WithClock overrides the clock used to stamp started_at/completed_at.
func WithClock(c clockwork.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

func NewRegistry(api ChecksAPI, owner, repo, headSHA string, opts ...RegistryOption) *Registry {
	r := &Registry{
		api:     api,
		owner:   owner,
		repo:    repo,
		headSHA: headSHA,
		clock:   clockwork.NewRealClock(),
		entries: make(map[string]*entry),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// StateOf returns the recorded lifecycle state for a check name, if any
// Upsert has been issued for it during this run.
func (r *Registry) StateOf(name string) (State, bool) {
	e, ok := r.entries[name]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// Upsert moves the named check to the requested status, creating the check
// run on first use and editing it afterwards. started_at is stamped only on
// the transition into in_progress, completed_at only on the transition into
// completed; edits never resend the head SHA or started_at. Exactly one API
// call is made per effective state change; an idempotent re-request makes
// none. Transport failures are returned to the caller untouched.
func (r *Registry) Upsert(ctx context.Context, name string, status Status, conclusion Conclusion, title, summary string) error {
	log := clog.FromContext(ctx).With("check", name)

	e := r.entries[name]
	current := State{}
	if e != nil {
		current = e.state
	}
	next, err := Apply(current, status, conclusion)
	if err != nil {
		return err
	}
	if e != nil && next == current {
		log.Debugf("check already %s, skipping update", status)
		return nil
	}

	if summary == "" {
		summary = title
	}
	output := &github.CheckRunOutput{
		Title:   github.Ptr(title),
		Summary: github.Ptr(summary),
	}
	now := github.Timestamp{Time: r.clock.Now().UTC()}

	if e == nil {
		opts := github.CreateCheckRunOptions{
			Name:    name,
			HeadSHA: r.headSHA,
			Status:  github.Ptr(string(status)),
			Output:  output,
		}
		if status == StatusInProgress {
			opts.StartedAt = &now
		}
		if status == StatusCompleted {
			opts.CompletedAt = &now
			opts.Conclusion = github.Ptr(string(conclusion))
		}
		log.Debugf("creating check run (%s)", status)
		run, _, err := r.api.CreateCheckRun(ctx, r.owner, r.repo, opts)
		if err != nil {
			return fmt.Errorf("create check run %q: %w", name, err)
		}
		r.entries[name] = &entry{id: run.GetID(), state: next}
		return nil
	}

	// The Checks API requires the name on update; everything else immutable
	// (head SHA, started_at) is omitted.
	opts := github.UpdateCheckRunOptions{
		Name:   name,
		Status: github.Ptr(string(status)),
		Output: output,
	}
	if status == StatusCompleted {
		opts.CompletedAt = &now
		opts.Conclusion = github.Ptr(string(conclusion))
	}
	log.Debugf("updating check run %d (%s)", e.id, status)
	if _, _, err := r.api.UpdateCheckRun(ctx, r.owner, r.repo, e.id, opts); err != nil {
		return fmt.Errorf("update check run %q: %w", name, err)
	}
	e.state = next
	return nil
}
