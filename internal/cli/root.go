package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"prgate/internal/config"
	"prgate/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var runtimeFlags config.Runtime

var rootCmd = &cobra.Command{
	Use:   "prgate",
	Short: "CI/CD gate bot for data-transformation pull requests",
	Long: `PRGate orchestrates the CI/CD gates for a data-transformation project's
pull requests: it runs the project's unit tests, enforces a required-approval
gate, materializes a per-PR preview environment, and deploys to prod only when
every gate passed. Each gate is mirrored onto a GitHub check on the PR's head
commit, so branch protection rules can require them.

PRGate is meant to run inside a GitHub Actions workflow: it resolves the pull
request from the event payload at GITHUB_EVENT_PATH and authenticates with
GITHUB_TOKEN (or --token).

Examples:
	# Run the full gate pipeline for the triggering pull request
	prgate run-all --config prgate.yaml

	# Re-evaluate a single gate
	prgate check-required-approvers

	# Clean up when the pull request closes
	prgate delete-pr-environment

Exit codes:
	0 = every gate passed
	1 = a gate failed or is pending (expected-negative outcome)
	2 = fatal error (the run could not complete)`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runtimeFlags.ConfigPath, flags.FlagConfig, config.DefaultPath, "Path to the project configuration file")
	rootCmd.PersistentFlags().StringVar(&runtimeFlags.Token, flags.FlagToken, "", "GitHub token (overrides GITHUB_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&runtimeFlags.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every GitHub API call and debug details)")
	rootCmd.PersistentFlags().StringVar(&runtimeFlags.Workdir, flags.FlagWorkdir, "", "Directory to run engine commands in (default: current directory)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
