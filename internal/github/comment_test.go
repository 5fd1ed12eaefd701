package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"testing"
)

func TestUpsertBotComment_CreatesThenAppends(t *testing.T) {
	var comments []string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/warehouse/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			type c struct {
				ID   int64  `json:"id"`
				Body string `json:"body"`
			}
			out := make([]c, 0, len(comments))
			for i, body := range comments {
				out = append(out, c{ID: int64(i + 1), Body: body})
			}
			_ = json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			var in struct {
				Body string `json:"body"`
			}
			_ = json.NewDecoder(r.Body).Decode(&in)
			comments = append(comments, in.Body)
			fmt.Fprintf(w, `{"id": %d, "body": %q}`, len(comments), in.Body)
		}
	})
	mux.HandleFunc("/repos/acme/warehouse/issues/comments/1", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Body string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		comments[0] = in.Body
		fmt.Fprintf(w, `{"id": 1, "body": %q}`, in.Body)
	})

	client := newTestClient(t, mux)
	info := PullRequestInfo{Owner: "acme", Repo: "warehouse", Number: 5}
	ctx := context.Background()

	envLine := regexp.MustCompile("PR Environment: `.*`")
	if err := client.UpsertBotComment(ctx, info, "PR Environment: `proj_5`", envLine, false); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected a single bot comment, got %d", len(comments))
	}
	if !strings.HasPrefix(comments[0], BotCommentHeader) || !strings.Contains(comments[0], "proj_5") {
		t.Fatalf("comment body = %q", comments[0])
	}

	// Same lookup key with replaceIfExists=false leaves the value alone.
	if err := client.UpsertBotComment(ctx, info, "PR Environment: `other`", envLine, false); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if strings.Contains(comments[0], "other") {
		t.Fatalf("value replaced despite replaceIfExists=false: %q", comments[0])
	}

	// replaceIfExists=true swaps the matched text in place.
	if err := client.UpsertBotComment(ctx, info, "PR Environment: `proj_5b`", envLine, true); err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if !strings.Contains(comments[0], "proj_5b") || strings.Count(comments[0], "PR Environment") != 1 {
		t.Fatalf("comment body = %q", comments[0])
	}

	// A different value with no pattern simply appends.
	if err := client.UpsertBotComment(ctx, info, "Deployed to prod", nil, false); err != nil {
		t.Fatalf("fourth upsert: %v", err)
	}
	if !strings.Contains(comments[0], "Deployed to prod") {
		t.Fatalf("comment body = %q", comments[0])
	}
	if len(comments) != 1 {
		t.Fatalf("bot must keep a single comment, got %d", len(comments))
	}
}
