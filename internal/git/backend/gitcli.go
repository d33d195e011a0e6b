package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultGitBinary      = "git"
	DefaultCommandTimeout = 30 * time.Second

	// commandWaitDelay bounds how long a killed command may keep its output
	// pipes open through surviving children.
	commandWaitDelay = time.Second
)

// CLIOptions configures the git executable backend.
type CLIOptions struct {
	// GitBinary is the git executable; "git" from PATH when empty.
	GitBinary string
	// Timeout bounds each git invocation. DefaultCommandTimeout when zero.
	Timeout time.Duration
}

type gitCLI struct {
	path    string
	bin     string
	timeout time.Duration
}

// runOpts tweaks a single git invocation.
type runOpts struct {
	stdin string
	// allowExit1 treats exit status 1 with empty stderr as success
	// (rev-parse --verify -q, diff --exit-code style commands).
	allowExit1 bool
}

// OpenCLI opens the repository containing repoPath using the git executable.
func OpenCLI(repoPath string, opts CLIOptions) (Backend, error) {
	return openCLI(repoPath, opts)
}

func openCLI(repoPath string, opts CLIOptions) (*gitCLI, error) {
	bin := opts.GitBinary
	if bin == "" {
		bin = defaultGitBinary
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if err := ensureMinGitVersion(bin); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, NewError(KindValidation, "open repository", "", err)
	}
	tmp := &gitCLI{path: abs, bin: bin, timeout: timeout}
	root, err := tmp.runGitCommand(context.Background(), []string{"rev-parse", "--show-toplevel"}, runOpts{}, "git rev-parse")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, NewError(KindParseFailure, "open repository", "git rev-parse returned empty root", nil)
	}
	tmp.path = root
	return tmp, nil
}

func (g *gitCLI) RepoPath() string {
	if g == nil {
		return ""
	}
	return g.path
}

// runGitCommand runs git inside the repository root and returns stdout.
// Failures are classified into *Error kinds: a git that cannot start, dies
// from a signal or exceeds the timeout is KindBackendUnavailable, a non-zero
// exit is KindCommandFailed with stderr as detail.
func (g *gitCLI) runGitCommand(ctx context.Context, args []string, opts runOpts, op string) (string, error) {
	if g == nil || g.path == "" {
		return "", NewError(KindValidation, op, "repository root not set", nil)
	}
	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmdArgs := append([]string{"-C", g.path}, args...)
	cmd := exec.CommandContext(childCtx, g.bin, cmdArgs...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	prepareCommand(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if opts.stdin != "" {
		cmd.Stdin = strings.NewReader(opts.stdin)
	}

	start := time.Now()
	err := cmd.Run()
	slog.Debug("git", slog.String("op", op), slog.Any("args", args), slog.Duration("elapsed", time.Since(start)), slog.Any("err", err))
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(childCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", NewError(KindBackendUnavailable, op, fmt.Sprintf("timed out after %s", g.timeout), context.DeadlineExceeded)
	}
	if ctx.Err() != nil {
		return "", NewError(KindBackendUnavailable, op, "", ctx.Err())
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return "", NewError(KindBackendUnavailable, op, "", err)
	}
	if exitErr.ExitCode() < 0 {
		return "", NewError(KindBackendUnavailable, op, fmt.Sprintf("git terminated: %v", err), err)
	}
	if opts.allowExit1 && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
		return stdout.String(), nil
	}
	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = err.Error()
	}
	return "", NewError(KindCommandFailed, op, detail, err)
}

// prepareCommand makes cancellation of cmd's context end the command even
// when children it started hold stdout or stderr open.
func prepareCommand(cmd *exec.Cmd) {
	setProcessGroup(cmd)
	cmd.WaitDelay = commandWaitDelay
}

// gitPath resolves "git rev-parse --git-path <name>" to an absolute path.
func (g *gitCLI) gitPath(ctx context.Context, name string) (string, error) {
	out, err := g.runGitCommand(ctx, []string{"rev-parse", "--git-path", name}, runOpts{}, "git rev-parse --git-path")
	if err != nil {
		return "", err
	}
	p := strings.TrimSpace(out)
	if p == "" {
		return "", NewError(KindParseFailure, "git rev-parse --git-path", "empty path for "+name, nil)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.path, p)
	}
	return p, nil
}

// resolveCommit returns the commit id of rev, or "" when it does not exist.
func (g *gitCLI) resolveCommit(ctx context.Context, rev string) (string, error) {
	out, err := g.runGitCommand(ctx, []string{"rev-parse", "-q", "--verify", rev + "^{commit}"}, runOpts{allowExit1: true}, "git rev-parse --verify")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// baseline is the tree-ish the index is compared against: HEAD, or HEAD's
// parent while amending. The empty tree stands in for a missing commit.
func (g *gitCLI) baseline(ctx context.Context, amend bool) (string, error) {
	rev := "HEAD"
	if amend {
		rev = "HEAD^"
	}
	sha, err := g.resolveCommit(ctx, rev)
	if err != nil {
		return "", err
	}
	if sha == "" {
		return EmptyTreeHash, nil
	}
	return sha, nil
}

// nulJoin encodes paths for the -z --stdin plumbing modes.
func nulJoin(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte(0)
	}
	return b.String()
}

// batchThenEach runs batch over all paths; when it fails with a per-command
// error it retries each path on its own so results carry per-path outcomes.
// Unavailability of the backend aborts the whole operation.
func batchThenEach(paths []string, batch func([]string) error) ([]PathResult, error) {
	results := make([]PathResult, len(paths))
	for i, p := range paths {
		results[i].Path = p
	}
	if len(paths) == 0 {
		return results, nil
	}
	err := batch(paths)
	if err == nil {
		return results, nil
	}
	if KindOf(err) == KindBackendUnavailable {
		return nil, err
	}
	if len(paths) == 1 {
		results[0].Err = err
		return results, nil
	}
	for i, p := range paths {
		err := batch([]string{p})
		if KindOf(err) == KindBackendUnavailable {
			return nil, err
		}
		results[i].Err = err
	}
	return results, nil
}
