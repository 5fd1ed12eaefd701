package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PullRequestInfo identifies the pull request an event refers to.
type PullRequestInfo struct {
	Owner  string
	Repo   string
	Number int
}

func (p PullRequestInfo) FullRepoPath() string {
	return p.Owner + "/" + p.Repo
}

func (p PullRequestInfo) String() string {
	return fmt.Sprintf("%s/%s#%d", p.Owner, p.Repo, p.Number)
}

// Event is a parsed GitHub Actions event payload. The bot accepts the three
// payload shapes that reference a pull request: pull_request events, review
// events, and issue comment events.
type Event struct {
	Review *struct {
		PullRequestURL string `json:"pull_request_url"`
	} `json:"review"`
	Comment *struct {
		ID int64 `json:"id"`
	} `json:"comment"`
	Issue *struct {
		PullRequest *struct {
			URL string `json:"url"`
		} `json:"pull_request"`
	} `json:"issue"`
	PullRequest *struct {
		Links struct {
			Self struct {
				Href string `json:"href"`
			} `json:"self"`
		} `json:"_links"`
	} `json:"pull_request"`
}

// ParseEventFile reads and parses the event payload written by the Actions
// runtime (the file GITHUB_EVENT_PATH points at).
func ParseEventFile(path string) (*Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event payload: %w", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse event payload %s: %w", path, err)
	}
	return &ev, nil
}

// PullRequestURL extracts the API URL of the pull request the event refers
// to, regardless of which event shape delivered it.
func (e *Event) PullRequestURL() (string, error) {
	switch {
	case e.Review != nil && e.Review.PullRequestURL != "":
		return e.Review.PullRequestURL, nil
	case e.Comment != nil && e.Issue != nil && e.Issue.PullRequest != nil && e.Issue.PullRequest.URL != "":
		return e.Issue.PullRequest.URL, nil
	case e.PullRequest != nil && e.PullRequest.Links.Self.Href != "":
		return e.PullRequest.Links.Self.Href, nil
	}
	return "", errors.New("event payload does not reference a pull request")
}

// PullRequestInfo resolves the owner/repo/number of the event's pull request.
func (e *Event) PullRequestInfo() (PullRequestInfo, error) {
	u, err := e.PullRequestURL()
	if err != nil {
		return PullRequestInfo{}, err
	}
	return ParsePullRequestURL(u)
}

// ParsePullRequestURL parses both API pull request URLs
// (https://api.github.com/repos/OWNER/REPO/pulls/N) and web URLs
// (https://github.com/OWNER/REPO/pull/N).
func ParsePullRequestURL(raw string) (PullRequestInfo, error) {
	trimmed := strings.TrimPrefix(raw, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")

	for i, part := range parts {
		if part != "pulls" && part != "pull" {
			continue
		}
		if i < 2 || i+1 >= len(parts) {
			break
		}
		number, err := strconv.Atoi(parts[i+1])
		if err != nil || number <= 0 {
			return PullRequestInfo{}, fmt.Errorf("invalid pull request number in URL %q", raw)
		}
		return PullRequestInfo{Owner: parts[i-2], Repo: parts[i-1], Number: number}, nil
	}
	return PullRequestInfo{}, fmt.Errorf("unable to parse pull request URL %q", raw)
}
