package backend

import "context"

// Backend abstracts the version-control plumbing the index controller needs.
//
// The default implementation shells out to the git executable, but the interface
// allows alternative implementations (e.g. pure-Go reads, or test doubles)
// without changing callers. Every method returns either a result or an *Error.
type Backend interface {
	RepoPath() string

	// EnumerateStatus lists every path that differs between work tree, index
	// and baseline commit, ordered by path.
	EnumerateStatus(ctx context.Context, opts StatusOptions) ([]StatusEntry, error)
	// Diff returns the unified diff of a single path.
	Diff(ctx context.Context, opts DiffOptions) (string, error)
	// ApplyPatch feeds patch to git apply. A patch that does not apply
	// yields KindPatchRejected.
	ApplyPatch(ctx context.Context, patch string, opts ApplyOptions) error

	Stage(ctx context.Context, paths []string) ([]PathResult, error)
	Unstage(ctx context.Context, paths []string, opts UnstageOptions) ([]PathResult, error)
	Checkout(ctx context.Context, paths []string, opts CheckoutOptions) ([]PathResult, error)

	// Commit records the index as a new commit and returns its id.
	Commit(ctx context.Context, opts CommitOptions) (string, error)

	// BlobInfo returns the index mode and object id of path; zero when the
	// path is not in the index.
	BlobInfo(ctx context.Context, path string) (BlobInfo, error)
	// HeadMessage returns the message of the HEAD commit; ok is false when
	// HEAD is unborn.
	HeadMessage(ctx context.Context) (message string, ok bool, err error)
}
