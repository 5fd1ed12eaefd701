package github

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-github/v81/github"
)

// BotCommentHeader marks the single comment the bot owns on each pull
// request. All bot state shown to the author is appended to this comment
// rather than posted as new comments.
const BotCommentHeader = "**PRGate Bot Info**"

// UpsertBotComment records value in the bot's info comment on the pull
// request, creating the comment if it does not exist yet.
//
// When findPattern is non-nil and already matches the comment body, the
// matched text is replaced with value if replaceIfExists is set, and left
// alone otherwise. When findPattern is nil or does not match, value is
// appended as a new line.
func (c *Client) UpsertBotComment(ctx context.Context, info PullRequestInfo, value string, findPattern *regexp.Regexp, replaceIfExists bool) error {
	comment, err := c.findBotComment(ctx, info)
	if err != nil {
		return err
	}
	if comment == nil {
		created, _, err := c.Client.Issues.CreateComment(ctx, info.Owner, info.Repo, info.Number, &github.IssueComment{
			Body: github.Ptr(BotCommentHeader),
		})
		if err != nil {
			return fmt.Errorf("create bot comment on %s: %w", info, err)
		}
		comment = created
	}

	body := comment.GetBody()
	if findPattern != nil && findPattern.MatchString(body) {
		if !replaceIfExists {
			return nil
		}
		body = findPattern.ReplaceAllString(body, value)
	} else {
		body = body + "\n" + value
	}

	if _, _, err := c.Client.Issues.EditComment(ctx, info.Owner, info.Repo, comment.GetID(), &github.IssueComment{
		Body: github.Ptr(body),
	}); err != nil {
		return fmt.Errorf("edit bot comment on %s: %w", info, err)
	}
	return nil
}

func (c *Client) findBotComment(ctx context.Context, info PullRequestInfo) (*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.Client.Issues.ListComments(ctx, info.Owner, info.Repo, info.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("list comments on %s: %w", info, err)
		}
		for _, comment := range comments {
			if strings.Contains(comment.GetBody(), BotCommentHeader) {
				return comment, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}
