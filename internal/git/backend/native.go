package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
)

// native reads repository state with go-git and falls back to the git
// executable for everything that writes, diffs or needs HEAD's parent.
type native struct {
	*gitCLI
	repo *gitlib.Repository
}

// OpenNative opens the repository containing repoPath with go-git. The git
// executable described by opts is still required for mutations.
func OpenNative(repoPath string, opts CLIOptions) (Backend, error) {
	cli, err := openCLI(repoPath, opts)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(cli.path, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, NewError(KindBackendUnavailable, "open repository", "", err)
	}
	return &native{gitCLI: cli, repo: repo}, nil
}

func (n *native) EnumerateStatus(ctx context.Context, opts StatusOptions) ([]StatusEntry, error) {
	if opts.Amend {
		return n.gitCLI.EnumerateStatus(ctx, opts)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindBackendUnavailable, "go-git status", "", err)
	}
	wt, err := n.repo.Worktree()
	if err != nil {
		return nil, NewError(KindCommandFailed, "go-git worktree", "", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, NewError(KindCommandFailed, "go-git status", "", err)
	}
	idx, err := n.repo.Storer.Index()
	if err != nil {
		return nil, NewError(KindCommandFailed, "go-git index", "", err)
	}
	entries := statusEntriesFromGoGit(status, func(path string) (BlobInfo, bool) {
		e, err := idx.Entry(path)
		if err != nil {
			return BlobInfo{}, false
		}
		return BlobInfo{Mode: fmt.Sprintf("%06o", uint32(e.Mode)), SHA: e.Hash.String()}, true
	})
	return entries, nil
}

// statusEntriesFromGoGit converts a go-git status map into ordered entries.
func statusEntriesFromGoGit(status gitlib.Status, lookup func(string) (BlobInfo, bool)) []StatusEntry {
	entries := make([]StatusEntry, 0, len(status))
	for path, st := range status {
		if st.Staging == gitlib.Unmodified && st.Worktree == gitlib.Unmodified {
			continue
		}
		e := StatusEntry{Path: path}
		if st.Staging == gitlib.Untracked || st.Worktree == gitlib.Untracked {
			e.Untracked = true
			e.Unstaged = true
			e.Change = ChangeAdded
			entries = append(entries, e)
			continue
		}
		switch st.Staging {
		case gitlib.Unmodified:
		case gitlib.Added:
			e.Staged = true
			e.Change = ChangeAdded
		case gitlib.Deleted:
			e.Staged = true
			e.Change = ChangeDeleted
		default:
			e.Staged = true
		}
		switch st.Worktree {
		case gitlib.Unmodified:
		case gitlib.Deleted:
			e.Unstaged = true
			e.Change = ChangeDeleted
		default:
			e.Unstaged = true
		}
		if info, ok := lookup(path); ok {
			e.IndexMode, e.IndexSHA = info.Mode, info.SHA
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

func (n *native) BlobInfo(ctx context.Context, path string) (BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return BlobInfo{}, NewError(KindBackendUnavailable, "go-git index", "", err)
	}
	idx, err := n.repo.Storer.Index()
	if err != nil {
		return BlobInfo{}, NewError(KindCommandFailed, "go-git index", "", err)
	}
	e, err := idx.Entry(path)
	if errors.Is(err, gitindex.ErrEntryNotFound) {
		return BlobInfo{}, nil
	}
	if err != nil {
		return BlobInfo{}, NewError(KindCommandFailed, "go-git index", "", err)
	}
	return BlobInfo{Mode: fmt.Sprintf("%06o", uint32(e.Mode)), SHA: e.Hash.String()}, nil
}

func (n *native) HeadMessage(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, NewError(KindBackendUnavailable, "go-git head", "", err)
	}
	ref, err := n.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, NewError(KindCommandFailed, "go-git head", "", err)
	}
	commit, err := n.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", false, NewError(KindCommandFailed, "go-git commit", "", err)
	}
	return commit.Message, true, nil
}
