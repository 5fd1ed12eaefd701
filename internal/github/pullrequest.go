package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v81/github"
)

// PullRequestSnapshot is an immutable picture of the pull request taken the
// first time it is requested in a run. A review posted mid-run is not
// observed; the orchestrator's stages all see the same approver set.
type PullRequestSnapshot struct {
	Info    PullRequestInfo
	HeadSHA string
	// Approvers holds the logins of users with an APPROVED review.
	Approvers []string
}

// PullRequestSnapshot fetches (once) the pull request head SHA and the set
// of approving reviewers. Repeated calls for the same pull request return
// the cached snapshot; concurrent first calls are deduplicated.
func (c *Client) PullRequestSnapshot(ctx context.Context, info PullRequestInfo) (*PullRequestSnapshot, error) {
	key := "pr:" + info.String()

	c.mu.Lock()
	if snap, ok := c.snapshots[key]; ok {
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		snap, err := c.fetchPullRequestSnapshot(ctx, info)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snapshots[key] = snap
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PullRequestSnapshot), nil
}

func (c *Client) fetchPullRequestSnapshot(ctx context.Context, info PullRequestInfo) (*PullRequestSnapshot, error) {
	pr, _, err := c.Client.PullRequests.Get(ctx, info.Owner, info.Repo, info.Number)
	if err != nil {
		return nil, fmt.Errorf("get pull request %s: %w", info, err)
	}

	var approvers []string
	seen := make(map[string]struct{})
	opts := &github.ListOptions{PerPage: 100}
	for {
		reviews, resp, err := c.Client.PullRequests.ListReviews(ctx, info.Owner, info.Repo, info.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("list reviews for %s: %w", info, err)
		}
		for _, review := range reviews {
			if !strings.EqualFold(review.GetState(), "approved") {
				continue
			}
			login := review.GetUser().GetLogin()
			if login == "" {
				continue
			}
			if _, dup := seen[login]; dup {
				continue
			}
			seen[login] = struct{}{}
			approvers = append(approvers, login)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return &PullRequestSnapshot{
		Info:      info,
		HeadSHA:   pr.GetHead().GetSHA(),
		Approvers: approvers,
	}, nil
}

// Merge merges the pull request with the default merge method.
func (c *Client) Merge(ctx context.Context, info PullRequestInfo, message string) error {
	result, _, err := c.Client.PullRequests.Merge(ctx, info.Owner, info.Repo, info.Number, message, nil)
	if err != nil {
		return fmt.Errorf("merge %s: %w", info, err)
	}
	if !result.GetMerged() {
		return fmt.Errorf("merge %s: %s", info, result.GetMessage())
	}
	return nil
}
