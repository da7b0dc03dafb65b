package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
)

// deprecatedTopic marks repositories of plugins that are no longer maintained.
const deprecatedTopic = "deprecated"

func (c *Connector) repository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}
	return r, nil
}

// Fetch clones the upstream repository into p.LocalDir, or resets an existing
// clone to the upstream default branch.
func (c *Connector) Fetch(ctx context.Context, p *models.Plugin) error {
	if p.LocalDir == "" {
		return fmt.Errorf("plugin %s has no local directory", p.Name)
	}
	c.logger.Info().
		Str("plugin", p.Name).
		Str("repository", c.cfg.SourceOrg+"/"+p.Repository).
		Str("dir", p.LocalDir).
		Msg("Fetching repository")
	return c.git.Clone(ctx, c.remoteURL(c.cfg.SourceOrg, p.Repository), p.LocalDir)
}

func (c *Connector) Restore(ctx context.Context, p *models.Plugin) error {
	return c.git.Restore(ctx, p.LocalDir)
}

func (c *Connector) IsArchived(ctx context.Context, p *models.Plugin) (bool, error) {
	r, err := c.repository(ctx, c.cfg.SourceOrg, p.Repository)
	if err != nil {
		return false, err
	}
	return r.GetArchived(), nil
}

// IsDeprecated reports whether the upstream repository carries the deprecated topic.
func (c *Connector) IsDeprecated(ctx context.Context, p *models.Plugin) (bool, error) {
	r, err := c.repository(ctx, c.cfg.SourceOrg, p.Repository)
	if err != nil {
		return false, err
	}
	for _, topic := range r.Topics {
		if strings.EqualFold(topic, deprecatedTopic) {
			return true, nil
		}
	}
	return false, nil
}

// Fork creates the fork of the upstream repository unless it exists.
func (c *Connector) Fork(ctx context.Context, p *models.Plugin) error {
	owner, err := c.owner(ctx)
	if err != nil {
		return err
	}
	if _, err := c.repository(ctx, owner, p.Repository); err == nil {
		c.logger.Debug().Str("plugin", p.Name).Str("owner", owner).Msg("Fork already exists")
		return nil
	} else if !isNotFound(err) {
		return err
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	opts := &github.RepositoryCreateForkOptions{DefaultBranchOnly: true}
	if c.cfg.ForkOrg != "" {
		opts.Organization = c.cfg.ForkOrg
	}
	_, _, err = c.client.Repositories.CreateFork(ctx, c.cfg.SourceOrg, p.Repository, opts)
	var accepted *github.AcceptedError
	if err != nil && !errors.As(err, &accepted) {
		return fmt.Errorf("failed to fork %s/%s: %w", c.cfg.SourceOrg, p.Repository, err)
	}
	c.logger.Info().Str("plugin", p.Name).Str("owner", owner).Msg("Fork created")
	return nil
}

// Sync merges the upstream default branch into the fork's default branch.
func (c *Connector) Sync(ctx context.Context, p *models.Plugin) error {
	owner, err := c.owner(ctx)
	if err != nil {
		return err
	}
	fork, err := c.repository(ctx, owner, p.Repository)
	if err != nil {
		return err
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	branch := fork.GetDefaultBranch()
	_, _, err = c.client.Repositories.MergeUpstream(ctx, owner, p.Repository, &github.RepoMergeUpstreamRequest{
		Branch: github.String(branch),
	})
	if err != nil {
		return fmt.Errorf("failed to sync fork %s/%s: %w", owner, p.Repository, err)
	}
	return nil
}

func (c *Connector) Commit(ctx context.Context, p *models.Plugin, branch, message string) (bool, error) {
	return c.git.Commit(ctx, p.LocalDir, branch, message)
}

// Push pushes branch to the fork.
func (c *Connector) Push(ctx context.Context, p *models.Plugin, branch string) error {
	owner, err := c.owner(ctx)
	if err != nil {
		return err
	}
	return c.git.Push(ctx, p.LocalDir, c.remoteURL(owner, p.Repository), branch)
}

func (c *Connector) ChangedFiles(ctx context.Context, p *models.Plugin) ([]string, error) {
	return c.git.ChangedFiles(ctx, p.LocalDir)
}

// openPullRequests lists open upstream pull requests whose head is on the fork,
// narrowed to branch when it is not empty.
func (c *Connector) openPullRequests(ctx context.Context, p *models.Plugin, owner, branch string) ([]*github.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if branch != "" {
		opts.Head = owner + ":" + branch
	}

	var out []*github.PullRequest
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		prs, resp, err := c.client.PullRequests.List(ctx, c.cfg.SourceOrg, p.Repository, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests: %w", err)
		}
		for _, pr := range prs {
			if strings.EqualFold(pr.GetHead().GetUser().GetLogin(), owner) {
				out = append(out, pr)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// OpenChangeRequest opens a pull request from the fork branch against the
// upstream default branch, or updates the title and body of the open one.
func (c *Connector) OpenChangeRequest(ctx context.Context, p *models.Plugin, cr interfaces.ChangeRequest) (string, error) {
	owner, err := c.owner(ctx)
	if err != nil {
		return "", err
	}
	existing, err := c.openPullRequests(ctx, p, owner, cr.Branch)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		pr := existing[0]
		if err := c.wait(ctx); err != nil {
			return "", err
		}
		updated, _, err := c.client.PullRequests.Edit(ctx, c.cfg.SourceOrg, p.Repository, pr.GetNumber(), &github.PullRequest{
			Title: github.String(cr.Title),
			Body:  github.String(cr.Body),
		})
		if err != nil {
			return "", fmt.Errorf("failed to update pull request #%d: %w", pr.GetNumber(), err)
		}
		c.logger.Info().Str("plugin", p.Name).Str("url", updated.GetHTMLURL()).Msg("Pull request updated")
		return updated.GetHTMLURL(), nil
	}

	upstream, err := c.repository(ctx, c.cfg.SourceOrg, p.Repository)
	if err != nil {
		return "", err
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	created, _, err := c.client.PullRequests.Create(ctx, c.cfg.SourceOrg, p.Repository, &github.NewPullRequest{
		Title: github.String(cr.Title),
		Head:  github.String(owner + ":" + cr.Branch),
		Base:  github.String(upstream.GetDefaultBranch()),
		Body:  github.String(cr.Body),
		Draft: github.Bool(cr.Draft),
	})
	if err != nil {
		return "", fmt.Errorf("failed to open pull request: %w", err)
	}
	c.logger.Info().Str("plugin", p.Name).Str("url", created.GetHTMLURL()).Msg("Pull request opened")
	return created.GetHTMLURL(), nil
}

// DeleteFork deletes the fork unless a pull request from it is still open.
// A missing fork counts as not deleted.
func (c *Connector) DeleteFork(ctx context.Context, p *models.Plugin) (bool, error) {
	owner, err := c.owner(ctx)
	if err != nil {
		return false, err
	}
	fork, err := c.repository(ctx, owner, p.Repository)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !fork.GetFork() {
		return false, fmt.Errorf("refusing to delete %s/%s: not a fork", owner, p.Repository)
	}

	open, err := c.openPullRequests(ctx, p, owner, "")
	if err != nil {
		return false, err
	}
	if len(open) > 0 {
		c.logger.Info().Str("plugin", p.Name).Int("open", len(open)).Msg("Fork kept, pull requests are open")
		return false, nil
	}

	if err := c.wait(ctx); err != nil {
		return false, err
	}
	if _, err := c.client.Repositories.Delete(ctx, owner, p.Repository); err != nil {
		return false, fmt.Errorf("failed to delete fork %s/%s: %w", owner, p.Repository, err)
	}
	c.logger.Info().Str("plugin", p.Name).Str("owner", owner).Msg("Fork deleted")
	return true, nil
}
