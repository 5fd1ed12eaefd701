package engine

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive commands through sh")
	}
}

func sh(script string) []string {
	return []string{"sh", "-c", script}
}

func TestExecEngine_RunTests_PassAndFail(t *testing.T) {
	requireSh(t)
	ctx := context.Background()

	e := NewExecEngine(Commands{Test: sh("echo ok")}, "")
	res, err := e.RunTests(ctx)
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if !res.Passed {
		t.Fatal("expected passing tests")
	}
	if !strings.Contains(res.Output, "ok") {
		t.Fatalf("output = %q, want it to contain command output", res.Output)
	}

	e = NewExecEngine(Commands{Test: sh("echo '2 failed' >&2; exit 1")}, "")
	res, err = e.RunTests(ctx)
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if res.Passed {
		t.Fatal("expected failing tests")
	}
	if !strings.Contains(res.Output, "2 failed") {
		t.Fatalf("output = %q, want captured stderr", res.Output)
	}
}

func TestExecEngine_RunTests_StartFailureIsError(t *testing.T) {
	e := NewExecEngine(Commands{Test: []string{"definitely-not-a-binary-4913"}}, "")
	if _, err := e.RunTests(context.Background()); err == nil {
		t.Fatal("expected error for unrunnable command")
	}
}

func TestExecEngine_SyncPREnvironment_DecodesSummary(t *testing.T) {
	requireSh(t)

	script := `echo '{"models":[{"name":"db.orders","change_type":"breaking","intervals":[{"start":"2024-01-01","end":"2024-01-31"}]},{"name":"db.orders_daily","change_type":"indirect"}]}'`
	e := NewExecEngine(Commands{Sync: sh(script)}, "")
	summary, err := e.SyncPREnvironment(context.Background(), "proj_42")
	if err != nil {
		t.Fatalf("SyncPREnvironment: %v", err)
	}
	want := AffectedModelsSummary{Models: []AffectedModel{
		{Name: "db.orders", ChangeType: "breaking", Intervals: []Interval{{Start: "2024-01-01", End: "2024-01-31"}}},
		{Name: "db.orders_daily", ChangeType: "indirect"},
	}}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestExecEngine_SyncPREnvironment_SubstitutesEnvName(t *testing.T) {
	requireSh(t)

	e := NewExecEngine(Commands{Sync: []string{"sh", "-c", `test "$1" = proj_42`, "sync", EnvPlaceholder}}, "")
	if _, err := e.SyncPREnvironment(context.Background(), "proj_42"); err != nil {
		t.Fatalf("expected env placeholder substitution, got %v", err)
	}
}

func TestExecEngine_SyncPREnvironment_NonJSONOutputIsEmptySummary(t *testing.T) {
	requireSh(t)

	e := NewExecEngine(Commands{Sync: sh("echo synced 3 models")}, "")
	summary, err := e.SyncPREnvironment(context.Background(), "env")
	if err != nil {
		t.Fatalf("SyncPREnvironment: %v", err)
	}
	if len(summary.Models) != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestExecEngine_SyncPREnvironment_UnreconciledExitCode(t *testing.T) {
	requireSh(t)

	e := NewExecEngine(Commands{Sync: sh("echo 'uncategorized changes' >&2; exit 2")}, "")
	_, err := e.SyncPREnvironment(context.Background(), "env")
	var rerr *ReconciliationError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want *ReconciliationError", err)
	}
	if !strings.Contains(rerr.Detail, "uncategorized changes") {
		t.Fatalf("detail = %q", rerr.Detail)
	}

	// A custom exit code moves the reconciliation mapping with it.
	e = NewExecEngine(Commands{Sync: sh("exit 7"), UnreconciledExitCode: 7}, "")
	if _, err := e.SyncPREnvironment(context.Background(), "env"); !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want *ReconciliationError for custom exit code", err)
	}
}

func TestExecEngine_SyncPREnvironment_OtherExitCodeIsPlainError(t *testing.T) {
	requireSh(t)

	e := NewExecEngine(Commands{Sync: sh("exit 5")}, "")
	_, err := e.SyncPREnvironment(context.Background(), "env")
	if err == nil {
		t.Fatal("expected error")
	}
	var rerr *ReconciliationError
	if errors.As(err, &rerr) {
		t.Fatalf("exit 5 must not map to ReconciliationError, got %v", err)
	}
}

func TestExecEngine_DeployToProd_ReturnsPreview(t *testing.T) {
	requireSh(t)

	e := NewExecEngine(Commands{Deploy: sh("echo '**2 models** will be deployed'")}, "")
	preview, err := e.DeployToProd(context.Background())
	if err != nil {
		t.Fatalf("DeployToProd: %v", err)
	}
	if preview != "**2 models** will be deployed" {
		t.Fatalf("preview = %q", preview)
	}
}

func TestExecEngine_DeletePREnvironment(t *testing.T) {
	requireSh(t)

	e := NewExecEngine(Commands{Delete: sh("exit 0")}, "")
	if err := e.DeletePREnvironment(context.Background(), "env"); err != nil {
		t.Fatalf("DeletePREnvironment: %v", err)
	}

	e = NewExecEngine(Commands{Delete: sh("echo nope >&2; exit 1")}, "")
	err := e.DeletePREnvironment(context.Background(), "env")
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("err = %v, want command stderr in error", err)
	}
}
