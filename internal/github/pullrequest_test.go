package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	u, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("parse base URL: %v", err)
	}
	client.Client.BaseURL = u
	return client
}

func TestPullRequestSnapshot_HeadSHAAndApprovers(t *testing.T) {
	prFetches := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/warehouse/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		prFetches++
		fmt.Fprint(w, `{"number": 42, "head": {"sha": "abc123"}}`)
	})
	mux.HandleFunc("/repos/acme/warehouse/pulls/42/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"state": "APPROVED", "user": {"login": "alice"}},
			{"state": "CHANGES_REQUESTED", "user": {"login": "bob"}},
			{"state": "APPROVED", "user": {"login": "alice"}},
			{"state": "APPROVED", "user": {"login": "carol"}},
			{"state": "COMMENTED", "user": {"login": "dan"}}
		]`)
	})

	client := newTestClient(t, mux)
	info := PullRequestInfo{Owner: "acme", Repo: "warehouse", Number: 42}

	snap, err := client.PullRequestSnapshot(context.Background(), info)
	if err != nil {
		t.Fatalf("PullRequestSnapshot: %v", err)
	}
	if snap.HeadSHA != "abc123" {
		t.Fatalf("head SHA = %q, want abc123", snap.HeadSHA)
	}
	if diff := cmp.Diff([]string{"alice", "carol"}, snap.Approvers); diff != "" {
		t.Fatalf("approvers mismatch (-want +got):\n%s", diff)
	}

	// The snapshot is taken once; a second request must not refetch.
	again, err := client.PullRequestSnapshot(context.Background(), info)
	if err != nil {
		t.Fatalf("second PullRequestSnapshot: %v", err)
	}
	if again != snap {
		t.Fatal("expected the cached snapshot instance")
	}
	if prFetches != 1 {
		t.Fatalf("pull request fetched %d times, want 1", prFetches)
	}
}

func TestPullRequestSnapshot_FetchErrorNotCached(t *testing.T) {
	fail := true
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/warehouse/pulls/1", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"boom"}`)
			return
		}
		fmt.Fprint(w, `{"number": 1, "head": {"sha": "def456"}}`)
	})
	mux.HandleFunc("/repos/acme/warehouse/pulls/1/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	client := newTestClient(t, mux)
	info := PullRequestInfo{Owner: "acme", Repo: "warehouse", Number: 1}

	if _, err := client.PullRequestSnapshot(context.Background(), info); err == nil {
		t.Fatal("expected fetch error")
	}

	fail = false
	snap, err := client.PullRequestSnapshot(context.Background(), info)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if snap.HeadSHA != "def456" {
		t.Fatalf("head SHA = %q, want def456", snap.HeadSHA)
	}
}
