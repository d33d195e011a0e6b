package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const noNewlineMarker = `\ No newline at end of file`

func (g *gitCLI) Diff(ctx context.Context, opts DiffOptions) (string, error) {
	if opts.Path == "" {
		return "", NewError(KindValidation, "git diff", "path not specified", nil)
	}
	unified := "-U" + strconv.FormatUint(uint64(opts.ContextLines), 10)
	switch {
	case opts.Staged:
		base, err := g.baseline(ctx, opts.Amend)
		if err != nil {
			return "", err
		}
		return g.runGitCommand(ctx, []string{"diff-index", "-p", "--cached", "--no-color", "--no-ext-diff", unified, base, "--", opts.Path}, runOpts{}, "git diff-index -p")
	case opts.Untracked:
		return renderNewFileDiff(g.path, opts.Path, int(opts.ContextLines))
	default:
		if err := g.refreshIndexStat(ctx); err != nil {
			return "", err
		}
		return g.runGitCommand(ctx, []string{"diff-files", "-p", "--no-color", "--no-ext-diff", unified, "--", opts.Path}, runOpts{}, "git diff-files -p")
	}
}

// renderNewFileDiff renders an untracked file as an addition against
// /dev/null, in the format "git diff --no-index" would produce and
// "git apply" accepts.
func renderNewFileDiff(root, path string, contextLines int) (string, error) {
	fullPath := filepath.Join(root, path)
	info, err := os.Lstat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", NewError(KindCommandFailed, "read untracked file", "", err)
	}
	mode := "100644"
	var data []byte
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		mode = "120000"
		target, err := os.Readlink(fullPath)
		if err != nil {
			return "", NewError(KindCommandFailed, "read untracked file", "", err)
		}
		data = []byte(target)
	case info.IsDir():
		return "", nil
	default:
		if info.Mode()&0o111 != 0 {
			mode = "100755"
		}
		if data, err = os.ReadFile(fullPath); err != nil {
			return "", NewError(KindCommandFailed, "read untracked file", "", err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	fmt.Fprintf(&b, "new file mode %s\n", mode)
	if len(data) == 0 {
		return b.String(), nil
	}
	if bytes.IndexByte(data, 0) >= 0 {
		fmt.Fprintf(&b, "Binary files /dev/null and b/%s differ\n", path)
		return b.String(), nil
	}

	ud := difflib.UnifiedDiff{
		A:        []string{},
		B:        fileLines(string(data)),
		FromFile: "/dev/null",
		ToFile:   "b/" + path,
		Context:  contextLines,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", NewError(KindCommandFailed, "render untracked diff", "", err)
	}
	b.WriteString(text)
	return b.String(), nil
}

// fileLines splits content into newline-terminated lines. A missing final
// newline is expressed with git's marker line so the result stays applicable.
func fileLines(content string) []string {
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}
	last := lines[len(lines)-1]
	if !strings.HasSuffix(last, "\n") {
		lines[len(lines)-1] = last + "\n" + noNewlineMarker + "\n"
	}
	return lines
}
