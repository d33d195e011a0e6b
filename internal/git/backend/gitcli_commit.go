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
)

// Commit writes the index as a tree, creates the commit object and moves HEAD,
// running the commit hooks around it the way "git commit" does. The message
// is cleaned up like an edited one: comment lines and surplus blank lines
// are removed.
func (g *gitCLI) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}
	message := opts.Message
	if strings.TrimSpace(message) == "" {
		return "", NewError(KindValidation, "commit", "empty commit message", nil)
	}

	hooksDir, err := g.gitPath(ctx, "hooks")
	if err != nil {
		return "", err
	}
	if opts.Verify {
		progress("Running pre-commit hook")
		if err := g.runHook(ctx, hooksDir, "pre-commit"); err != nil {
			return "", err
		}
	}

	msgFile, err := g.gitPath(ctx, "COMMIT_EDITMSG")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(msgFile, []byte(message), 0o644); err != nil {
		return "", NewError(KindCommandFailed, "write commit message", "", err)
	}
	if err := g.runHook(ctx, hooksDir, "prepare-commit-msg", msgFile, "message"); err != nil {
		return "", err
	}
	if opts.Verify {
		progress("Running commit-msg hook")
		if err := g.runHook(ctx, hooksDir, "commit-msg", msgFile); err != nil {
			return "", err
		}
	}
	edited, err := os.ReadFile(msgFile)
	if err != nil {
		return "", NewError(KindCommandFailed, "read commit message", "", err)
	}
	message, err = g.runGitCommand(ctx, []string{"stripspace", "--strip-comments"}, runOpts{stdin: string(edited)}, "git stripspace")
	if err != nil {
		return "", err
	}
	if message == "" {
		return "", NewError(KindValidation, "commit", "commit message is empty after cleanup", nil)
	}

	progress("Creating tree")
	out, err := g.runGitCommand(ctx, []string{"write-tree"}, runOpts{}, "git write-tree")
	if err != nil {
		return "", err
	}
	tree := strings.TrimSpace(out)
	if tree == "" {
		return "", NewError(KindParseFailure, "git write-tree", "empty tree id", nil)
	}

	head, err := g.resolveCommit(ctx, "HEAD")
	if err != nil {
		return "", err
	}
	var parents []string
	if opts.Amend {
		if head == "" {
			return "", NewError(KindValidation, "commit", "nothing to amend", nil)
		}
		out, err := g.runGitCommand(ctx, []string{"rev-parse", head + "^@"}, runOpts{}, "git rev-parse")
		if err != nil {
			return "", err
		}
		parents = strings.Fields(out)
	} else if head != "" {
		parents = []string{head}
	}

	progress("Creating commit")
	args := []string{"commit-tree", tree}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	args = append(args, "-F", "-")
	out, err = g.runGitCommand(ctx, args, runOpts{stdin: message}, "git commit-tree")
	if err != nil {
		return "", err
	}
	sha := strings.TrimSpace(out)
	if sha == "" {
		return "", NewError(KindParseFailure, "git commit-tree", "empty commit id", nil)
	}

	progress("Updating HEAD")
	reflog := "commit: "
	switch {
	case opts.Amend:
		reflog = "commit (amend): "
	case head == "":
		reflog = "commit (initial): "
	}
	reflog += subjectLine(message)
	updateArgs := []string{"update-ref", "-m", reflog, "HEAD", sha}
	if head != "" {
		updateArgs = append(updateArgs, head)
	}
	if _, err := g.runGitCommand(ctx, updateArgs, runOpts{}, "git update-ref"); err != nil {
		return "", err
	}

	progress("Running post-commit hook")
	if err := g.runHook(ctx, hooksDir, "post-commit"); err != nil {
		slog.Warn("post-commit hook failed", slog.Any("err", err))
	}
	return sha, nil
}

func subjectLine(message string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(first)
}

// runHook executes hooksDir/name when it exists and is executable. A non-zero
// exit is reported as KindHookRejected with the hook's output as detail.
func (g *gitCLI) runHook(ctx context.Context, hooksDir, name string, args ...string) error {
	hookPath := filepath.Join(hooksDir, name)
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return nil
	}
	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(childCtx, hookPath, args...)
	cmd.Dir = g.path
	cmd.Env = append(os.Environ(), "GIT_EDITOR=:")
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	prepareCommand(cmd)
	err = cmd.Run()
	if err == nil {
		return nil
	}
	op := name + " hook"
	if errors.Is(childCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return NewError(KindBackendUnavailable, op, fmt.Sprintf("timed out after %s", g.timeout), context.DeadlineExceeded)
	}
	if ctx.Err() != nil {
		return NewError(KindBackendUnavailable, op, "", ctx.Err())
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return NewError(KindBackendUnavailable, op, "", err)
	}
	detail := strings.TrimSpace(output.String())
	if detail == "" {
		detail = err.Error()
	}
	return NewError(KindHookRejected, op, detail, err)
}
