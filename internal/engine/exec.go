package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/chainguard-dev/clog"
)

// EnvPlaceholder in a configured argv is replaced with the PR environment
// name before the command runs.
const EnvPlaceholder = "{env}"

// DefaultUnreconciledExitCode is the exit code a command uses to signal
// "plan not reconciled" when the project config does not override it.
const DefaultUnreconciledExitCode = 2

// Commands holds the argv for each engine operation. Test and Deploy run
// as-is; Sync and Delete have EnvPlaceholder substituted.
type Commands struct {
	Test   []string
	Sync   []string
	Deploy []string
	Delete []string

	// UnreconciledExitCode is the exit code that maps to
	// *ReconciliationError for Sync and Deploy. Zero means
	// DefaultUnreconciledExitCode.
	UnreconciledExitCode int
}

// ExecEngine adapts the Engine interface onto the project's own command-line
// tooling. Exit code conventions:
//
//	0                      operation succeeded
//	UnreconciledExitCode   plan not reconciled (*ReconciliationError)
//	anything else          tests: failed suite; sync/deploy/delete: error
//
// A command that cannot start at all (missing binary, bad workdir) is always
// an error.
type ExecEngine struct {
	cmds    Commands
	workdir string
}

func NewExecEngine(cmds Commands, workdir string) *ExecEngine {
	return &ExecEngine{cmds: cmds, workdir: workdir}
}

func (e *ExecEngine) unreconciledExitCode() int {
	if e.cmds.UnreconciledExitCode != 0 {
		return e.cmds.UnreconciledExitCode
	}
	return DefaultUnreconciledExitCode
}

// run executes argv and returns stdout, stderr and the exit code. err is
// non-nil only when the command could not run to completion.
func (e *ExecEngine) run(ctx context.Context, argv []string, env string) (stdout, stderr string, exitCode int, err error) {
	if len(argv) == 0 {
		return "", "", 0, errors.New("no command configured")
	}
	expanded := make([]string, len(argv))
	for i, a := range argv {
		expanded[i] = strings.ReplaceAll(a, EnvPlaceholder, env)
	}

	clog.FromContext(ctx).With("command", expanded[0]).Debugf("running engine command")

	cmd := exec.CommandContext(ctx, expanded[0], expanded[1:]...)
	cmd.Dir = e.workdir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()
	if runErr == nil {
		return stdout, stderr, 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		if ctx.Err() != nil {
			return stdout, stderr, exitErr.ExitCode(), ctx.Err()
		}
		return stdout, stderr, exitErr.ExitCode(), nil
	}
	return stdout, stderr, 0, fmt.Errorf("run %q: %w", expanded[0], runErr)
}

func (e *ExecEngine) RunTests(ctx context.Context) (TestResult, error) {
	stdout, stderr, code, err := e.run(ctx, e.cmds.Test, "")
	if err != nil {
		return TestResult{}, fmt.Errorf("run tests: %w", err)
	}
	return TestResult{Passed: code == 0, Output: combineOutput(stdout, stderr)}, nil
}

func (e *ExecEngine) SyncPREnvironment(ctx context.Context, env string) (AffectedModelsSummary, error) {
	stdout, stderr, code, err := e.run(ctx, e.cmds.Sync, env)
	if err != nil {
		return AffectedModelsSummary{}, fmt.Errorf("sync pr environment: %w", err)
	}
	switch code {
	case 0:
		return decodeSummary(ctx, stdout), nil
	case e.unreconciledExitCode():
		return AffectedModelsSummary{}, &ReconciliationError{Op: "sync pr environment", Detail: strings.TrimSpace(combineOutput(stdout, stderr))}
	default:
		return AffectedModelsSummary{}, fmt.Errorf("sync pr environment: command exited %d: %s", code, strings.TrimSpace(stderr))
	}
}

func (e *ExecEngine) DeployToProd(ctx context.Context) (string, error) {
	stdout, stderr, code, err := e.run(ctx, e.cmds.Deploy, "")
	if err != nil {
		return "", fmt.Errorf("deploy to prod: %w", err)
	}
	switch code {
	case 0:
		return strings.TrimSpace(stdout), nil
	case e.unreconciledExitCode():
		return "", &ReconciliationError{Op: "deploy to prod", Detail: strings.TrimSpace(combineOutput(stdout, stderr))}
	default:
		return "", fmt.Errorf("deploy to prod: command exited %d: %s", code, strings.TrimSpace(stderr))
	}
}

func (e *ExecEngine) DeletePREnvironment(ctx context.Context, env string) error {
	_, stderr, code, err := e.run(ctx, e.cmds.Delete, env)
	if err != nil {
		return fmt.Errorf("delete pr environment: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("delete pr environment: command exited %d: %s", code, strings.TrimSpace(stderr))
	}
	return nil
}

// decodeSummary parses the sync command's stdout as an affected-models
// summary. Output that is not valid JSON degrades to an empty model list so
// a sync tool without summary support still works.
func decodeSummary(ctx context.Context, stdout string) AffectedModelsSummary {
	var summary AffectedModelsSummary
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return summary
	}
	if err := json.Unmarshal([]byte(trimmed), &summary); err != nil {
		clog.FromContext(ctx).Debugf("sync output is not a JSON summary: %v", err)
		return AffectedModelsSummary{}
	}
	return summary
}

func combineOutput(stdout, stderr string) string {
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}
