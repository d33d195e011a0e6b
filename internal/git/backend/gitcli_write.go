package backend

import (
	"context"
	"fmt"
	"strings"
)

func (g *gitCLI) Stage(ctx context.Context, paths []string) ([]PathResult, error) {
	return batchThenEach(paths, func(batch []string) error {
		_, err := g.runGitCommand(ctx, []string{"update-index", "--add", "--remove", "-z", "--stdin"}, runOpts{stdin: nulJoin(batch)}, "git update-index --add")
		return err
	})
}

// Unstage resets the index entries of paths to the baseline tree. Paths the
// baseline does not contain are removed from the index.
func (g *gitCLI) Unstage(ctx context.Context, paths []string, opts UnstageOptions) ([]PathResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	base, err := g.baseline(ctx, opts.Amend)
	if err != nil {
		return nil, err
	}
	tree := map[string]BlobInfo{}
	if base != EmptyTreeHash {
		args := append([]string{"ls-tree", "-r", "-z", "--full-tree", base, "--"}, paths...)
		out, err := g.runGitCommand(ctx, args, runOpts{}, "git ls-tree")
		if err != nil {
			return nil, err
		}
		if tree, err = parseLsTreeZ(out); err != nil {
			return nil, err
		}
	}
	return batchThenEach(paths, func(batch []string) error {
		_, err := g.runGitCommand(ctx, []string{"update-index", "-z", "--index-info"}, runOpts{stdin: indexInfoInput(batch, tree)}, "git update-index --index-info")
		return err
	})
}

// indexInfoInput builds "--index-info -z" lines restoring paths to tree.
func indexInfoInput(paths []string, tree map[string]BlobInfo) string {
	var b strings.Builder
	for _, p := range paths {
		if info, ok := tree[p]; ok {
			fmt.Fprintf(&b, "%s %s\t%s\x00", info.Mode, info.SHA, p)
			continue
		}
		fmt.Fprintf(&b, "0 %s\t%s\x00", zeroHash, p)
	}
	return b.String()
}

func (g *gitCLI) Checkout(ctx context.Context, paths []string, opts CheckoutOptions) ([]PathResult, error) {
	if opts.FromIndex {
		return batchThenEach(paths, func(batch []string) error {
			_, err := g.runGitCommand(ctx, []string{"checkout-index", "-q", "-f", "-u", "-z", "--stdin"}, runOpts{stdin: nulJoin(batch)}, "git checkout-index")
			return err
		})
	}
	base, err := g.baseline(ctx, opts.Amend)
	if err != nil {
		return nil, err
	}
	if base == EmptyTreeHash {
		return nil, NewError(KindValidation, "git checkout", "no commit to revert to", nil)
	}
	return batchThenEach(paths, func(batch []string) error {
		args := append([]string{"checkout", base, "--"}, batch...)
		_, err := g.runGitCommand(ctx, args, runOpts{}, "git checkout")
		return err
	})
}

func (g *gitCLI) ApplyPatch(ctx context.Context, patch string, opts ApplyOptions) error {
	if strings.TrimSpace(patch) == "" {
		return NewError(KindValidation, "git apply", "empty patch", nil)
	}
	if !strings.HasSuffix(patch, "\n") {
		patch += "\n"
	}
	args := []string{"apply"}
	if opts.Cached {
		args = append(args, "--cached")
	}
	if opts.Reverse {
		args = append(args, "--reverse")
	}
	if opts.UnidiffZero {
		args = append(args, "--unidiff-zero")
	}
	args = append(args, "--whitespace=nowarn", "-")
	_, err := g.runGitCommand(ctx, args, runOpts{stdin: patch}, "git apply")
	if KindOf(err) == KindCommandFailed {
		e := err.(*Error)
		return &Error{Kind: KindPatchRejected, Op: e.Op, Detail: e.Detail, Err: e.Err}
	}
	return err
}
