package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"prgate/internal/bot"
	"prgate/internal/check"
	"prgate/internal/config"
	"prgate/internal/sequencer"
)

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run the full gate pipeline for the triggering pull request",
	Long: `Run every gate in order: unit tests, the required-approval check (when the
project configures required approvers), the PR environment sync, and the prod
deploy. Prod only deploys when everything before it passed; otherwise its
check concludes skipped.

Exit codes:
	0 = every gate passed
	1 = a gate failed or is pending
	2 = fatal error`,
	Run: gateRun(func(ctx context.Context, c *bot.Controller) (sequencer.Outcome, error) {
		return c.RunAll(ctx)
	}),
}

var runTestsCmd = &cobra.Command{
	Use:   "run-tests",
	Short: "Run only the unit-test gate",
	Run: gateRun(func(ctx context.Context, c *bot.Controller) (sequencer.Outcome, error) {
		return c.RunTests(ctx)
	}),
}

var checkApproversCmd = &cobra.Command{
	Use:   "check-required-approvers",
	Short: "Evaluate only the required-approval gate",
	Run: gateRun(func(ctx context.Context, c *bot.Controller) (sequencer.Outcome, error) {
		return c.CheckRequiredApprovers(ctx)
	}),
}

var updatePREnvCmd = &cobra.Command{
	Use:   "update-pr-environment",
	Short: "Create or update only the PR preview environment",
	Run: gateRun(func(ctx context.Context, c *bot.Controller) (sequencer.Outcome, error) {
		return c.UpdatePREnvironment(ctx)
	}),
}

var deployProductionCmd = &cobra.Command{
	Use:   "deploy-production",
	Short: "Deploy to prod without re-running the upstream gates",
	Run: gateRun(func(ctx context.Context, c *bot.Controller) (sequencer.Outcome, error) {
		return c.DeployProduction(ctx)
	}),
}

var deletePREnvCmd = &cobra.Command{
	Use:   "delete-pr-environment",
	Short: "Drop the pull request's preview environment",
	Long: `Drop the PR preview environment. Meant to run when the pull request closes;
it reports no check.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := commandContext(cmd)
		ctrl, err := newController(ctx)
		if err != nil {
			fatal(err)
		}
		if err := ctrl.DeletePREnvironment(ctx); err != nil {
			fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runAllCmd, runTestsCmd, checkApproversCmd, updatePREnvCmd, deployProductionCmd, deletePREnvCmd)
}

// gateRun builds a cobra Run that wires the controller, executes one entry
// point, prints the per-gate console summary, and exits with the gate
// contract's code.
func gateRun(run func(ctx context.Context, c *bot.Controller) (sequencer.Outcome, error)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx := commandContext(cmd)
		ctrl, err := newController(ctx)
		if err != nil {
			fatal(err)
		}
		outcome, err := run(ctx, ctrl)
		printOutcome(os.Stdout, outcome)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(sequencer.ExitCode(outcome, err != nil))
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if runtimeFlags.Verbose {
		ctx = clog.WithLogger(ctx, clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	return ctx
}

func newController(ctx context.Context) (*bot.Controller, error) {
	cfg, err := config.Load(ctx, runtimeFlags.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Runtime = runtimeFlags
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return bot.New(ctx, cfg)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
}

// printOutcome writes one line per gate in pipeline order.
func printOutcome(w io.Writer, outcome sequencer.Outcome) {
	for _, key := range bot.StageOrder() {
		res, ok := outcome.Results[key]
		if !ok {
			continue
		}
		badge, paint := conclusionBadge(res.Conclusion)
		paint.Fprintf(w, "%-15s", badge)
		fmt.Fprintf(w, " %s\n", bot.DisplayName(key))
	}
}

func conclusionBadge(conclusion check.Conclusion) (string, *color.Color) {
	switch conclusion {
	case check.ConclusionSuccess:
		return "PASS", color.New(color.FgGreen)
	case check.ConclusionNeutral:
		return "PENDING", color.New(color.FgYellow)
	case check.ConclusionActionRequired:
		return "ACTION REQUIRED", color.New(color.FgYellow)
	case check.ConclusionSkipped:
		return "SKIP", color.New(color.Faint)
	default:
		return "FAIL", color.New(color.FgRed)
	}
}
