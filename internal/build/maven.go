// Package build runs the Maven build of a plugin working copy.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/ladder"
)

// ResolvedDescriptor is where Compile and Verify write the effective descriptor,
// relative to the working copy.
const ResolvedDescriptor = "target/effective-pom.xml"

// maxOutput bounds the captured build output; the tail is kept.
const maxOutput = 64 * 1024

// Options configure the Maven runner.
type Options struct {
	Executable string
	// JavaHomes maps a JDK major version to its installation
	JavaHomes map[int]string
	Timeout   time.Duration
	Offline   bool
	// ExtraArgs are appended to every invocation
	ExtraArgs []string
}

// MavenRunner implements interfaces.BuildRunner by invoking mvn.
type MavenRunner struct {
	opts   Options
	logger arbor.ILogger
}

var _ interfaces.BuildRunner = (*MavenRunner)(nil)

// NewMavenRunner creates a runner. An empty executable means "mvn" on PATH.
func NewMavenRunner(opts Options, logger arbor.ILogger) *MavenRunner {
	if opts.Executable == "" {
		opts.Executable = "mvn"
	}
	return &MavenRunner{opts: opts, logger: logger}
}

// Compile compiles the working copy and writes the resolved descriptor.
func (r *MavenRunner) Compile(ctx context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	return r.run(ctx, dir, jdk, "help:effective-pom", "-Doutput="+ResolvedDescriptor, "compile")
}

func (r *MavenRunner) Clean(ctx context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	return r.run(ctx, dir, jdk, "clean")
}

func (r *MavenRunner) Format(ctx context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	return r.run(ctx, dir, jdk, "spotless:apply")
}

// Verify runs the full build and writes the resolved descriptor again, since
// the clean before it removed the one Compile wrote.
func (r *MavenRunner) Verify(ctx context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	return r.run(ctx, dir, jdk, "help:effective-pom", "-Doutput="+ResolvedDescriptor, "verify")
}

func (r *MavenRunner) run(ctx context.Context, dir string, jdk ladder.Rung, goals ...string) (*interfaces.BuildResult, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	args := []string{"-B", "-ntp", "-Dstyle.color=never"}
	if r.opts.Offline {
		args = append(args, "-o")
	}
	args = append(args, r.opts.ExtraArgs...)
	args = append(args, goals...)

	cmd := exec.CommandContext(ctx, r.opts.Executable, args...)
	cmd.Dir = dir
	cmd.Env = r.environment(jdk)

	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.logger.Info().
		Str("dir", dir).
		Int("jdk", jdk.Major()).
		Strs("goals", goals).
		Msg("Running build")

	start := time.Now()
	err := cmd.Run()
	result := &interfaces.BuildResult{
		Success:  err == nil,
		Output:   out.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		r.logger.Warn().
			Str("dir", dir).
			Int("jdk", jdk.Major()).
			Int("exit_code", exitErr.ExitCode()).
			Msg("Build failed")
	default:
		return result, fmt.Errorf("run %s %s: %w", r.opts.Executable, strings.Join(goals, " "), err)
	}
	return result, nil
}

// environment inherits the process environment and points JAVA_HOME and PATH
// at the JDK configured for the rung, if any.
func (r *MavenRunner) environment(jdk ladder.Rung) []string {
	env := os.Environ()
	home, ok := r.opts.JavaHomes[jdk.Major()]
	if !ok || home == "" {
		r.logger.Debug().Int("jdk", jdk.Major()).Msg("No JAVA_HOME configured for JDK, using environment")
		return env
	}
	out := make([]string, 0, len(env)+2)
	path := filepath.Join(home, "bin")
	for _, kv := range env {
		switch {
		case strings.HasPrefix(kv, "JAVA_HOME="):
			continue
		case strings.HasPrefix(kv, "PATH="):
			path = path + string(os.PathListSeparator) + strings.TrimPrefix(kv, "PATH=")
			continue
		}
		out = append(out, kv)
	}
	return append(out, "JAVA_HOME="+home, "PATH="+path)
}

// tailBuffer keeps the last maxOutput bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - maxOutput; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }

// ParseJavaHomes reads "17=/opt/jdk-17" style entries.
func ParseJavaHomes(entries map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(entries))
	for k, v := range entries {
		r, err := ladder.ParseRung(k)
		if err != nil {
			return nil, fmt.Errorf("java home %q: %w", k, err)
		}
		out[r.Major()] = v
	}
	return out, nil
}
