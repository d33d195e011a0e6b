package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoRelative(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	got, err := repoRelative(root, sub, []string{"a.txt", "../b.txt", filepath.Join(root, "c", "d.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/a.txt", "b.txt", "c/d.txt"}, got)

	_, err = repoRelative(root, sub, []string{"../../outside.txt"})
	assert.Error(t, err)
	_, err = repoRelative(root, root, []string{"."})
	assert.Error(t, err)
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

// newRepo creates a repository with one committed file and isolates the
// configuration lookup from the user's environment.
func newRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")

	dir := t.TempDir()
	git(t, dir, "init", "-q")
	git(t, dir, "config", "commit.gpgsign", "false")
	git(t, dir, "config", "core.hooksPath", ".git/hooks")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\n"), 0o644))
	git(t, dir, "add", "a.txt")
	git(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run(append([]string{"gitstage"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestStageAndCommit(t *testing.T) {
	dir := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\nTWO\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("new\n"), 0o644))

	out, _, err := runApp(t, "-C", dir, "status", "--short")
	require.NoError(t, err)
	assert.Equal(t, "M a.txt [unstaged]\n? new.txt [unstaged]\n", out)

	out, _, err = runApp(t, "-C", dir, "stage", "a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "M a.txt [staged]")

	out, _, err = runApp(t, "-C", dir, "commit", "-m", "update a")
	require.NoError(t, err)
	assert.Contains(t, out, "update a")
	assert.Equal(t, "update a\n", git(t, dir, "log", "-1", "--format=%s"))

	out, _, err = runApp(t, "-C", dir, "status", "--short")
	require.NoError(t, err)
	assert.Equal(t, "? new.txt [unstaged]\n", out)
}

func TestDiffAndHunks(t *testing.T) {
	dir := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\nTWO\n"), 0o644))

	out, _, err := runApp(t, "-C", dir, "--color", "never", "diff", "a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "-two\n+TWO\n")

	out, _, err = runApp(t, "-C", dir, "hunks", "a.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "0\t@@ -1,2 +1,2 @@"), out)
	assert.Contains(t, out, "+1 -1")

	_, _, err = runApp(t, "-C", dir, "stage-hunk", "a.txt", "0")
	require.NoError(t, err)
	assert.Contains(t, git(t, dir, "diff", "--cached"), "+TWO")
}

func TestDiscardRequiresConfirmation(t *testing.T) {
	dir := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("changed\n"), 0o644))

	_, _, err := runApp(t, "-C", dir, "discard", "a.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	_, _, err = runApp(t, "-C", dir, "discard", "--yes", "a.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestCommitWithoutStagedChangesFails(t *testing.T) {
	dir := newRepo(t)

	_, _, err := runApp(t, "-C", dir, "commit", "-m", "nothing")
	assert.Error(t, err)
}

func TestInvalidGlobalFlags(t *testing.T) {
	dir := newRepo(t)

	_, _, err := runApp(t, "-C", dir, "--color", "sometimes", "status")
	assert.Error(t, err)
	_, _, err = runApp(t, "-C", dir, "--backend", "svn", "status")
	assert.Error(t, err)
}

func TestNativeBackendStatus(t *testing.T) {
	dir := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644))

	out, _, err := runApp(t, "-C", dir, "--backend", "native", "status", "--short")
	require.NoError(t, err)
	assert.Equal(t, "M a.txt [unstaged]\n", out)
}
