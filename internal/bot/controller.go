// Package bot is the orchestrator's composition root. A Controller ties the
// project configuration, the GitHub client, and the data engine together and
// exposes one entry point per bot command: the full gate pipeline plus each
// stage standalone.
package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/chainguard-dev/clog"

	"prgate/internal/check"
	"prgate/internal/config"
	"prgate/internal/engine"
	"prgate/internal/github"
	"prgate/internal/sequencer"
)

// scm is the slice of the GitHub wrapper the controller uses. *github.Client
// satisfies it; tests substitute a fake.
type scm interface {
	PullRequestSnapshot(ctx context.Context, info github.PullRequestInfo) (*github.PullRequestSnapshot, error)
	UpsertBotComment(ctx context.Context, info github.PullRequestInfo, value string, findPattern *regexp.Regexp, replaceIfExists bool) error
	Merge(ctx context.Context, info github.PullRequestInfo, message string) error
}

// Controller orchestrates the CI/CD gates for one pull request. It is built
// once per bot invocation; all state that must be stable across stages (the
// head SHA, the approver set) comes from the client's pull request snapshot.
type Controller struct {
	cfg    *config.Config
	scm    scm
	checks check.ChecksAPI
	engine engine.Engine
	info   github.PullRequestInfo
}

// New resolves the pull request from the Actions event payload and wires the
// concrete collaborators: an authenticated GitHub client and the exec engine
// driving the project's configured commands.
func New(ctx context.Context, cfg *config.Config) (*Controller, error) {
	if cfg.Env.EventPath == "" {
		return nil, errors.New("GITHUB_EVENT_PATH is not set; the bot must run inside a GitHub Actions workflow")
	}
	ev, err := github.ParseEventFile(cfg.Env.EventPath)
	if err != nil {
		return nil, err
	}
	info, err := ev.PullRequestInfo()
	if err != nil {
		return nil, err
	}

	opts := []github.Option{github.WithVerbose(cfg.Runtime.Verbose, nil)}
	if cfg.Env.APIURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.Env.APIURL))
	}
	client, err := github.NewClient(ctx, cfg.TokenValue(), opts...)
	if err != nil {
		return nil, err
	}

	eng := engine.NewExecEngine(engine.Commands{
		Test:                 cfg.Commands.Test,
		Sync:                 cfg.Commands.Sync,
		Deploy:               cfg.Commands.Deploy,
		Delete:               cfg.Commands.Delete,
		UnreconciledExitCode: cfg.UnreconciledExitCode,
	}, cfg.Runtime.Workdir)

	return &Controller{
		cfg:    cfg,
		scm:    client,
		checks: client.Client.Checks,
		engine: eng,
		info:   info,
	}, nil
}

// Info returns the pull request this controller operates on.
func (c *Controller) Info() github.PullRequestInfo {
	return c.info
}

// EnvName returns the PR preview environment name for this pull request.
func (c *Controller) EnvName() string {
	return PREnvironmentName(c.info.Repo, c.info.Number)
}

// RunAll drives the full gate pipeline: every check is queued up front, then
// tests, the approval gate (when the project configures required approvers),
// the PR environment sync, and finally the prod deploy, which only runs when
// everything before it passed. When merge_after_deploy is set and the whole
// run succeeded, the pull request is merged.
func (c *Controller) RunAll(ctx context.Context) (sequencer.Outcome, error) {
	reg, err := c.newRegistry(ctx)
	if err != nil {
		return sequencer.Outcome{}, err
	}

	required := c.cfg.RequiredApprovers()
	stages := []sequencer.Stage{c.testsStage()}
	prodNeeds := []string{stageTests, stagePREnv}
	if len(required) > 0 {
		stages = append(stages, c.approvalStage(required, stageTests))
		prodNeeds = append(prodNeeds, stageApproval)
	}
	stages = append(stages,
		c.prEnvStage(c.EnvName(), stageTests),
		c.prodStage(prodNeeds...),
	)

	outcome, err := sequencer.New(reg).Run(ctx, stages)
	if err != nil {
		return outcome, err
	}
	if outcome.Success() && c.cfg.MergeAfterDeploy {
		clog.FromContext(ctx).With("pr", c.info.String()).Infof("merging pull request after successful deploy")
		if err := c.scm.Merge(ctx, c.info, ""); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// RunTests runs only the unit-test gate and its check.
func (c *Controller) RunTests(ctx context.Context) (sequencer.Outcome, error) {
	return c.runSingle(ctx, c.testsStage())
}

// CheckRequiredApprovers evaluates only the approval gate. With no required
// approvers configured the gate passes trivially.
func (c *Controller) CheckRequiredApprovers(ctx context.Context) (sequencer.Outcome, error) {
	return c.runSingle(ctx, c.approvalStage(c.cfg.RequiredApprovers()))
}

// UpdatePREnvironment creates or updates only the PR preview environment.
func (c *Controller) UpdatePREnvironment(ctx context.Context) (sequencer.Outcome, error) {
	return c.runSingle(ctx, c.prEnvStage(c.EnvName()))
}

// DeployProduction deploys to prod without re-running the upstream gates.
func (c *Controller) DeployProduction(ctx context.Context) (sequencer.Outcome, error) {
	return c.runSingle(ctx, c.prodStage())
}

// DeletePREnvironment drops the PR preview environment. It reports no check;
// it runs on PR close, after the commit's checks stopped mattering.
func (c *Controller) DeletePREnvironment(ctx context.Context) error {
	env := c.EnvName()
	clog.FromContext(ctx).With("env", env).Infof("deleting pr environment")
	return c.engine.DeletePREnvironment(ctx, env)
}

func (c *Controller) runSingle(ctx context.Context, st sequencer.Stage) (sequencer.Outcome, error) {
	reg, err := c.newRegistry(ctx)
	if err != nil {
		return sequencer.Outcome{}, err
	}
	st.Needs = nil
	return sequencer.New(reg).Run(ctx, []sequencer.Stage{st})
}

// newRegistry resolves the head SHA from the pull request snapshot and
// returns a check registry bound to it. The event payload's SHA is never
// used: for review and comment events it points at the triggering commit,
// not the PR head.
func (c *Controller) newRegistry(ctx context.Context) (*check.Registry, error) {
	snap, err := c.scm.PullRequestSnapshot(ctx, c.info)
	if err != nil {
		return nil, err
	}
	if snap.HeadSHA == "" {
		return nil, fmt.Errorf("pull request %s has no head SHA", c.info)
	}
	return check.NewRegistry(c.checks, c.info.Owner, c.info.Repo, snap.HeadSHA), nil
}
