package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"prgate/internal/approval"
	"prgate/internal/check"
	"prgate/internal/engine"
	"prgate/internal/render"
	"prgate/internal/sequencer"
)

// Stage keys, stable across runs.
const (
	stageTests    = "tests"
	stageApproval = "approval"
	stagePREnv    = "pr-env"
	stageProd     = "prod"
)

// Check display names. These are what reviewers see on the commit and what
// branch protection rules reference, so they never change between releases.
const (
	CheckTests    = "PRGate - Run Unit Tests"
	CheckApproval = "PRGate - Has Required Approval"
	CheckPREnv    = "PRGate - PR Environment Synced"
	CheckProd     = "PRGate - Prod Environment Synced"
)

// prEnvCommentPattern matches the environment line the bot keeps in its info
// comment, so re-runs update in place instead of appending duplicates.
var prEnvCommentPattern = regexp.MustCompile(":eyes: PR Virtual Data Environment: `[^`]*`")

// StageOrder lists the stage keys in pipeline order. Runs may include a
// subset (the approval stage only exists when the project configures
// required approvers).
func StageOrder() []string {
	return []string{stageTests, stageApproval, stagePREnv, stageProd}
}

// DisplayName returns the check display name for a stage key.
func DisplayName(key string) string {
	switch key {
	case stageTests:
		return CheckTests
	case stageApproval:
		return CheckApproval
	case stagePREnv:
		return CheckPREnv
	case stageProd:
		return CheckProd
	}
	return key
}

func (c *Controller) testsStage() sequencer.Stage {
	return sequencer.Stage{
		Key:  stageTests,
		Name: CheckTests,
		Action: func(ctx context.Context) (sequencer.Result, error) {
			res, err := c.engine.RunTests(ctx)
			if err != nil {
				return sequencer.Result{}, err
			}
			if res.Passed {
				return sequencer.Result{Passed: true, Conclusion: check.ConclusionSuccess, Detail: res.Output}, nil
			}
			return sequencer.Result{Conclusion: check.ConclusionFailure, Detail: res.Output}, nil
		},
		Describe: describeTests,
	}
}

func describeTests(status check.Status, res *sequencer.Result) (string, string) {
	switch status {
	case check.StatusQueued:
		return "Waiting to Run Tests", ""
	case check.StatusInProgress:
		return "Running Tests", ""
	}
	switch res.Conclusion {
	case check.ConclusionSuccess:
		return "Tests Passed", withOutput("All tests passed.", res.Detail)
	case check.ConclusionFailure:
		return "Tests Failed", withOutput("One or more tests failed.", res.Detail)
	case check.ConclusionSkipped:
		return "Skipped Tests", "Tests were skipped because the run was aborted."
	default:
		return "Tests Did Not Complete", res.Detail
	}
}

// approvalStage evaluates the required-approval gate against the approver
// set captured in the pull request snapshot. A missing approval is an
// expected pending state (neutral), not a failure: pushing a new commit or
// getting a review re-triggers the bot, which re-evaluates.
func (c *Controller) approvalStage(required []string, needs ...string) sequencer.Stage {
	// Filled by the action, read by the describer. Stages run sequentially.
	var approvedBy []string
	return sequencer.Stage{
		Key:   stageApproval,
		Name:  CheckApproval,
		Needs: needs,
		Action: func(ctx context.Context) (sequencer.Result, error) {
			snap, err := c.scm.PullRequestSnapshot(ctx, c.info)
			if err != nil {
				return sequencer.Result{}, err
			}
			approvedBy = approval.Satisfying(required, snap.Approvers)
			if approval.Evaluate(required, snap.Approvers) {
				return sequencer.Result{Passed: true, Conclusion: check.ConclusionSuccess}, nil
			}
			return sequencer.Result{Conclusion: check.ConclusionNeutral}, nil
		},
		Describe: func(status check.Status, res *sequencer.Result) (string, string) {
			switch status {
			case check.StatusQueued:
				return "Waiting to Check for Required Approval", possibleApprovers(required)
			case check.StatusInProgress:
				return "Checking for Required Approval", possibleApprovers(required)
			}
			switch res.Conclusion {
			case check.ConclusionSuccess:
				if len(approvedBy) == 0 {
					return "No Required Approval Needed", "This project configures no required approvers."
				}
				return "Obtained Required Approval", "Approved by: " + strings.Join(approvedBy, ", ")
			case check.ConclusionNeutral:
				return "Need a Required Approval", possibleApprovers(required)
			case check.ConclusionSkipped:
				return "Skipped Required Approval Check", "The approval check was skipped because a prior stage did not pass."
			default:
				return "Failed to Check for Required Approval", res.Detail
			}
		},
	}
}

// prEnvStage materializes the PR preview environment and records the
// environment name in the bot's info comment on success. A plan that cannot
// be applied because it is unreconciled concludes action_required rather
// than failing: the author must categorize the changes and push again.
func (c *Controller) prEnvStage(env string, needs ...string) sequencer.Stage {
	return sequencer.Stage{
		Key:   stagePREnv,
		Name:  CheckPREnv,
		Needs: needs,
		Action: func(ctx context.Context) (sequencer.Result, error) {
			summary, err := c.engine.SyncPREnvironment(ctx, env)
			var rerr *engine.ReconciliationError
			if errors.As(err, &rerr) {
				return sequencer.Result{Conclusion: check.ConclusionActionRequired, Detail: rerr.Detail}, nil
			}
			if err != nil {
				return sequencer.Result{}, err
			}
			line := fmt.Sprintf(":eyes: PR Virtual Data Environment: `%s`", env)
			if err := c.scm.UpsertBotComment(ctx, c.info, line, prEnvCommentPattern, false); err != nil {
				return sequencer.Result{}, err
			}
			return sequencer.Result{
				Passed:     true,
				Conclusion: check.ConclusionSuccess,
				Detail:     render.AffectedModelsTable(summary.Models),
			}, nil
		},
		Describe: func(status check.Status, res *sequencer.Result) (string, string) {
			target := fmt.Sprintf("Target Virtual Data Environment: `%s`", env)
			switch status {
			case check.StatusQueued:
				return "Waiting to Update PR Environment", target
			case check.StatusInProgress:
				return "Updating PR Environment", target
			}
			switch res.Conclusion {
			case check.ConclusionSuccess:
				return fmt.Sprintf("Updated PR Environment `%s`", env), res.Detail
			case check.ConclusionActionRequired:
				return "PR Environment Needs a Plan", withOutput(
					"The change set is not reconciled. Run a plan against the PR environment to categorize the changes, then push again.", res.Detail)
			case check.ConclusionSkipped:
				return "Skipped PR Environment Update", "The PR environment was not updated because a prior stage did not pass."
			default:
				return "Failed to Update PR Environment", withOutput(target, res.Detail)
			}
		},
	}
}

// prodStage deploys to production and appends the plan preview to the bot
// comment.
func (c *Controller) prodStage(needs ...string) sequencer.Stage {
	return sequencer.Stage{
		Key:   stageProd,
		Name:  CheckProd,
		Needs: needs,
		Action: func(ctx context.Context) (sequencer.Result, error) {
			preview, err := c.engine.DeployToProd(ctx)
			var rerr *engine.ReconciliationError
			if errors.As(err, &rerr) {
				return sequencer.Result{Conclusion: check.ConclusionActionRequired, Detail: rerr.Detail}, nil
			}
			if err != nil {
				return sequencer.Result{}, err
			}
			if preview != "" {
				body := render.Details("Prod Plan Preview", preview)
				if err := c.scm.UpsertBotComment(ctx, c.info, body, nil, false); err != nil {
					return sequencer.Result{}, err
				}
			}
			return sequencer.Result{Passed: true, Conclusion: check.ConclusionSuccess, Detail: preview}, nil
		},
		Describe: func(status check.Status, res *sequencer.Result) (string, string) {
			switch status {
			case check.StatusQueued:
				return "Waiting to Deploy to Prod", ""
			case check.StatusInProgress:
				return "Deploying to Prod", ""
			}
			switch res.Conclusion {
			case check.ConclusionSuccess:
				return "Deployed to Prod", withOutput(":ship: Deployed to prod.", res.Detail)
			case check.ConclusionActionRequired:
				return "Prod Deploy Needs a Plan", withOutput(
					"The change set is not reconciled against prod. Run a plan to categorize the changes, then push again.", res.Detail)
			case check.ConclusionSkipped:
				return "Skipped Prod Deploy", "Prod was not deployed because not every gate passed."
			default:
				return "Failed to Deploy to Prod", res.Detail
			}
		},
	}
}

func possibleApprovers(required []string) string {
	if len(required) == 0 {
		return "This project configures no required approvers."
	}
	return ":information_source: An approval from any of the following is required: " + strings.Join(required, ", ")
}

// withOutput appends a collapsed output block to a summary line.
func withOutput(summary, output string) string {
	if strings.TrimSpace(output) == "" {
		return summary
	}
	return summary + "\n\n" + render.Details("Output", output)
}
