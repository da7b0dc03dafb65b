package github

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
)

// upstreamRef records the fetched state of the remote default branch.
const upstreamRef = "refs/modernizer/upstream"

// Git runs the git executable against working copies. Remote URLs may carry
// a token, so command output is never logged or returned for commands that
// receive one.
type Git struct {
	path   string
	name   string
	email  string
	logger arbor.ILogger
}

// NewGit creates a Git runner. An empty path means "git" on PATH.
func NewGit(path, name, email string, logger arbor.ILogger) *Git {
	if path == "" {
		path = "git"
	}
	if name == "" {
		name = "modernizer"
	}
	if email == "" {
		email = "modernizer@users.noreply.github.com"
	}
	return &Git{path: path, name: name, email: email, logger: logger}
}

// run executes git in dir and returns stdout. Output is captured only when
// secret is false.
func (g *Git) run(ctx context.Context, dir string, secret bool, args ...string) (string, error) {
	g.logger.Debug().Str("dir", dir).Str("command", args[0]).Msg("Running git")
	full := append([]string{"-c", "user.name=" + g.name, "-c", "user.email=" + g.email}, args...)
	cmd := exec.CommandContext(ctx, g.path, full...)
	cmd.Dir = dir

	if secret {
		// Suppress output to avoid leaking token
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("git %s failed: %w", args[0], err)
		}
		return "", nil
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Clone clones remote into dir, or when dir already holds a clone, fetches
// and hard-resets it to the remote default branch. Untracked files are
// removed either way.
func (g *Git) Clone(ctx context.Context, remote, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if _, err := g.run(ctx, dir, true, "fetch", "--depth", "1", remote, "+HEAD:"+upstreamRef); err != nil {
			return fmt.Errorf("failed to fetch repository: %w", err)
		}
		if _, err := g.run(ctx, dir, false, "checkout", "--force", "--detach", upstreamRef); err != nil {
			return err
		}
		return g.Restore(ctx, dir)
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	if _, err := g.run(ctx, filepath.Dir(dir), true, "clone", "--depth", "1", "--single-branch", remote, dir); err != nil {
		return fmt.Errorf("failed to clone repository: %w (ensure git is installed and token has access)", err)
	}
	// the origin URL carries the token
	if _, err := g.run(ctx, dir, false, "remote", "remove", "origin"); err != nil {
		return err
	}
	if _, err := g.run(ctx, dir, false, "update-ref", upstreamRef, "HEAD"); err != nil {
		return err
	}
	return nil
}

// Restore discards every change to the working copy since the last clone or fetch.
func (g *Git) Restore(ctx context.Context, dir string) error {
	if _, err := g.run(ctx, dir, false, "reset", "--hard", "--quiet"); err != nil {
		return err
	}
	if _, err := g.run(ctx, dir, false, "clean", "-fdx", "--quiet"); err != nil {
		return err
	}
	return nil
}

// Commit creates branch at the current state, stages everything and commits.
// It returns false when there was nothing to commit.
func (g *Git) Commit(ctx context.Context, dir, branch, message string) (bool, error) {
	if _, err := g.run(ctx, dir, false, "checkout", "-B", branch); err != nil {
		return false, err
	}
	if _, err := g.run(ctx, dir, false, "add", "--all"); err != nil {
		return false, err
	}
	status, err := g.run(ctx, dir, false, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(status) == "" {
		return false, nil
	}
	if _, err := g.run(ctx, dir, false, "commit", "--quiet", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// Push force-pushes branch to remote.
func (g *Git) Push(ctx context.Context, dir, remote, branch string) error {
	if _, err := g.run(ctx, dir, true, "push", "--force", remote, branch+":"+branch); err != nil {
		return fmt.Errorf("failed to push branch %s: %w", branch, err)
	}
	return nil
}

// ChangedFiles lists paths that differ from the fetched state, including
// untracked files. Ignored files such as build output are not reported.
func (g *Git) ChangedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := g.run(ctx, dir, false, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	committed, err := g.run(ctx, dir, false, "diff", "--name-only", upstreamRef, "HEAD")
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		seen[strings.Trim(path, `"`)] = struct{}{}
	}
	for _, line := range strings.Split(committed, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			seen[line] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}
