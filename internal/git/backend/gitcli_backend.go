package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// rawDiffEntry is one record of "git diff-index/diff-files -z" raw output.
type rawDiffEntry struct {
	srcMode string
	dstMode string
	srcSHA  string
	dstSHA  string
	status  byte
	path    string
}

// EnumerateStatus refreshes the index stat information and then collects
// staged, unstaged and untracked paths concurrently.
func (g *gitCLI) EnumerateStatus(ctx context.Context, opts StatusOptions) ([]StatusEntry, error) {
	if err := g.refreshIndexStat(ctx); err != nil {
		return nil, err
	}

	base, err := g.baseline(ctx, opts.Amend)
	if err != nil {
		return nil, err
	}

	var staged, unstaged []rawDiffEntry
	var untracked []string
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		out, err := g.runGitCommand(gctx, []string{"diff-index", "--cached", "-z", "--no-renames", base}, runOpts{}, "git diff-index")
		if err != nil {
			return err
		}
		staged, err = parseRawDiffZ(out)
		return err
	})
	grp.Go(func() error {
		out, err := g.runGitCommand(gctx, []string{"diff-files", "-z", "--no-renames"}, runOpts{}, "git diff-files")
		if err != nil {
			return err
		}
		unstaged, err = parseRawDiffZ(out)
		return err
	})
	grp.Go(func() error {
		out, err := g.runGitCommand(gctx, []string{"ls-files", "--others", "--exclude-standard", "-z"}, runOpts{}, "git ls-files --others")
		if err != nil {
			return err
		}
		untracked = parseNulList(out)
		return nil
	})
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return mergeStatus(staged, unstaged, untracked), nil
}

// refreshIndexStat updates cached stat information in the index; stat-only
// changes would otherwise show up as unstaged modifications. Only an
// unavailable backend is reported, a locked index just leaves stale stats.
func (g *gitCLI) refreshIndexStat(ctx context.Context) error {
	_, err := g.runGitCommand(ctx, []string{"update-index", "-q", "--unmerged", "--ignore-missing", "--refresh"}, runOpts{allowExit1: true}, "git update-index --refresh")
	if err == nil {
		return nil
	}
	if KindOf(err) == KindBackendUnavailable {
		return err
	}
	slog.Debug("index refresh failed", slog.Any("err", err))
	return nil
}

// mergeStatus folds the three enumerations into one entry per path.
func mergeStatus(staged, unstaged []rawDiffEntry, untracked []string) []StatusEntry {
	byPath := make(map[string]*StatusEntry, len(staged)+len(unstaged)+len(untracked))
	get := func(path string) *StatusEntry {
		e, ok := byPath[path]
		if !ok {
			e = &StatusEntry{Path: path}
			byPath[path] = e
		}
		return e
	}

	for _, r := range staged {
		e := get(r.path)
		e.Staged = true
		switch r.status {
		case 'A':
			e.Change = ChangeAdded
		case 'D':
			e.Change = ChangeDeleted
		}
		if r.dstSHA != zeroHash && r.dstMode != "000000" {
			e.IndexMode, e.IndexSHA = r.dstMode, r.dstSHA
		}
	}
	for _, r := range unstaged {
		e := get(r.path)
		e.Unstaged = true
		if r.status == 'D' {
			e.Change = ChangeDeleted
		}
		if r.srcSHA != zeroHash && r.srcMode != "000000" {
			e.IndexMode, e.IndexSHA = r.srcMode, r.srcSHA
		}
	}
	for _, p := range untracked {
		e := get(p)
		e.Untracked = true
		e.Unstaged = true
		e.Change = ChangeAdded
	}

	entries := make([]StatusEntry, 0, len(byPath))
	for _, e := range byPath {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// parseRawDiffZ parses "--raw -z" records: ":<mode> <mode> <sha> <sha> <status>\0<path>\0".
// Renames are disabled by the callers so every record carries a single path.
func parseRawDiffZ(out string) ([]rawDiffEntry, error) {
	fields := strings.Split(out, "\x00")
	var entries []rawDiffEntry
	for i := 0; i < len(fields); i++ {
		meta := fields[i]
		if meta == "" {
			continue
		}
		if meta[0] != ':' {
			return nil, NewError(KindParseFailure, "parse raw diff", fmt.Sprintf("unexpected record %q", meta), nil)
		}
		parts := strings.Fields(meta[1:])
		if len(parts) != 5 || parts[4] == "" {
			return nil, NewError(KindParseFailure, "parse raw diff", fmt.Sprintf("malformed record %q", meta), nil)
		}
		if i+1 >= len(fields) || fields[i+1] == "" {
			return nil, NewError(KindParseFailure, "parse raw diff", fmt.Sprintf("record %q has no path", meta), nil)
		}
		i++
		entries = append(entries, rawDiffEntry{
			srcMode: parts[0],
			dstMode: parts[1],
			srcSHA:  parts[2],
			dstSHA:  parts[3],
			status:  parts[4][0],
			path:    fields[i],
		})
	}
	return entries, nil
}

func parseNulList(out string) []string {
	var paths []string
	for _, p := range strings.Split(out, "\x00") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// parseLsFilesStage parses one "ls-files -s -z" record: "<mode> <sha> <stage>\t<path>".
func parseLsFilesStage(record string) (BlobInfo, string, error) {
	meta, path, ok := strings.Cut(record, "\t")
	if !ok {
		return BlobInfo{}, "", NewError(KindParseFailure, "parse ls-files", fmt.Sprintf("malformed record %q", record), nil)
	}
	parts := strings.Fields(meta)
	if len(parts) != 3 {
		return BlobInfo{}, "", NewError(KindParseFailure, "parse ls-files", fmt.Sprintf("malformed record %q", record), nil)
	}
	return BlobInfo{Mode: parts[0], SHA: parts[1]}, path, nil
}

// parseLsTreeZ parses "ls-tree -z" records: "<mode> <type> <sha>\t<path>".
func parseLsTreeZ(out string) (map[string]BlobInfo, error) {
	entries := map[string]BlobInfo{}
	for _, record := range parseNulList(out) {
		meta, path, ok := strings.Cut(record, "\t")
		parts := strings.Fields(meta)
		if !ok || len(parts) != 3 {
			return nil, NewError(KindParseFailure, "parse ls-tree", fmt.Sprintf("malformed record %q", record), nil)
		}
		entries[path] = BlobInfo{Mode: parts[0], SHA: parts[2]}
	}
	return entries, nil
}

func (g *gitCLI) BlobInfo(ctx context.Context, path string) (BlobInfo, error) {
	out, err := g.runGitCommand(ctx, []string{"ls-files", "-s", "-z", "--", path}, runOpts{}, "git ls-files -s")
	if err != nil {
		return BlobInfo{}, err
	}
	for _, record := range parseNulList(out) {
		info, p, err := parseLsFilesStage(record)
		if err != nil {
			return BlobInfo{}, err
		}
		if p == path {
			return info, nil
		}
	}
	return BlobInfo{}, nil
}

func (g *gitCLI) HeadMessage(ctx context.Context) (string, bool, error) {
	head, err := g.resolveCommit(ctx, "HEAD")
	if err != nil {
		return "", false, err
	}
	if head == "" {
		return "", false, nil
	}
	out, err := g.runGitCommand(ctx, []string{"cat-file", "commit", head}, runOpts{}, "git cat-file")
	if err != nil {
		return "", false, err
	}
	msg, err := parseCommitMessage(out)
	if err != nil {
		return "", false, err
	}
	return msg, true, nil
}

// parseCommitMessage returns the message part of a raw commit object.
func parseCommitMessage(raw string) (string, error) {
	_, msg, ok := strings.Cut(raw, "\n\n")
	if !ok {
		if strings.HasPrefix(raw, "tree ") {
			return "", nil
		}
		return "", NewError(KindParseFailure, "parse commit", "missing header separator", nil)
	}
	return msg, nil
}
