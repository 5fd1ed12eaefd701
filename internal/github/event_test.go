package github

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEvent(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write event payload: %v", err)
	}
	return path
}

func TestParseEventFile_PullRequestEvent(t *testing.T) {
	path := writeEvent(t, `{
		"pull_request": {
			"_links": {"self": {"href": "https://api.github.com/repos/acme/warehouse/pulls/42"}}
		}
	}`)
	ev, err := ParseEventFile(path)
	if err != nil {
		t.Fatalf("ParseEventFile: %v", err)
	}
	info, err := ev.PullRequestInfo()
	if err != nil {
		t.Fatalf("PullRequestInfo: %v", err)
	}
	want := PullRequestInfo{Owner: "acme", Repo: "warehouse", Number: 42}
	if info != want {
		t.Fatalf("info = %+v, want %+v", info, want)
	}
}

func TestParseEventFile_ReviewEvent(t *testing.T) {
	path := writeEvent(t, `{
		"review": {"pull_request_url": "https://api.github.com/repos/acme/warehouse/pulls/7"},
		"pull_request": {}
	}`)
	ev, err := ParseEventFile(path)
	if err != nil {
		t.Fatalf("ParseEventFile: %v", err)
	}
	info, err := ev.PullRequestInfo()
	if err != nil {
		t.Fatalf("PullRequestInfo: %v", err)
	}
	if info.Number != 7 {
		t.Fatalf("number = %d, want 7", info.Number)
	}
}

func TestParseEventFile_CommentEvent(t *testing.T) {
	path := writeEvent(t, `{
		"comment": {"id": 1},
		"issue": {"pull_request": {"url": "https://api.github.com/repos/acme/warehouse/pulls/9"}}
	}`)
	ev, err := ParseEventFile(path)
	if err != nil {
		t.Fatalf("ParseEventFile: %v", err)
	}
	info, err := ev.PullRequestInfo()
	if err != nil {
		t.Fatalf("PullRequestInfo: %v", err)
	}
	if info.Number != 9 {
		t.Fatalf("number = %d, want 9", info.Number)
	}
}

func TestEvent_PullRequestURL_NoPullRequest(t *testing.T) {
	path := writeEvent(t, `{"action": "created"}`)
	ev, err := ParseEventFile(path)
	if err != nil {
		t.Fatalf("ParseEventFile: %v", err)
	}
	if _, err := ev.PullRequestURL(); err == nil {
		t.Fatal("expected error for payload without a pull request")
	}
}

func TestParsePullRequestURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    PullRequestInfo
		wantErr bool
	}{
		{raw: "https://api.github.com/repos/acme/warehouse/pulls/42", want: PullRequestInfo{"acme", "warehouse", 42}},
		{raw: "https://github.com/acme/warehouse/pull/3", want: PullRequestInfo{"acme", "warehouse", 3}},
		{raw: "https://ghe.example.com/api/v3/repos/acme/warehouse/pulls/12", want: PullRequestInfo{"acme", "warehouse", 12}},
		{raw: "https://api.github.com/repos/acme/warehouse/pulls/abc", wantErr: true},
		{raw: "https://api.github.com/repos/acme/warehouse", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParsePullRequestURL(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParsePullRequestURL(%q) succeeded, want error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePullRequestURL(%q): %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ParsePullRequestURL(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}
