package index

import (
	"context"
	"errors"
	"sync"

	gitbackend "github.com/thiagokokada/gitstage/internal/git/backend"
)

type fakeBackend struct {
	repoPath string

	mu sync.Mutex

	enumerateStatusFunc func(ctx context.Context, opts gitbackend.StatusOptions) ([]gitbackend.StatusEntry, error)
	diffFunc            func(opts gitbackend.DiffOptions) (string, error)
	applyPatchFunc      func(patch string, opts gitbackend.ApplyOptions) error
	stageFunc           func(paths []string) ([]gitbackend.PathResult, error)
	unstageFunc         func(paths []string, opts gitbackend.UnstageOptions) ([]gitbackend.PathResult, error)
	checkoutFunc        func(paths []string, opts gitbackend.CheckoutOptions) ([]gitbackend.PathResult, error)
	commitFunc          func(opts gitbackend.CommitOptions) (string, error)
	blobInfoFunc        func(path string) (gitbackend.BlobInfo, error)
	headMessageFunc     func() (string, bool, error)

	enumerateCalls  int
	lastStatusOpts  gitbackend.StatusOptions
	lastDiffOpts    gitbackend.DiffOptions
	lastPatch       string
	lastApplyOpts   gitbackend.ApplyOptions
	lastPaths       []string
	lastCheckout    gitbackend.CheckoutOptions
	lastCommitOpts  gitbackend.CommitOptions
	commitCalls     int
	backendCallsLog []string
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.backendCallsLog = append(f.backendCallsLog, name)
	f.mu.Unlock()
}

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.backendCallsLog...)
}

func (f *fakeBackend) enumerateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enumerateCalls
}

func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) EnumerateStatus(ctx context.Context, opts gitbackend.StatusOptions) ([]gitbackend.StatusEntry, error) {
	f.record("EnumerateStatus")
	f.mu.Lock()
	f.enumerateCalls++
	f.lastStatusOpts = opts
	fn := f.enumerateStatusFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, opts)
	}
	return nil, errors.New("unexpected EnumerateStatus call")
}

func (f *fakeBackend) Diff(_ context.Context, opts gitbackend.DiffOptions) (string, error) {
	f.record("Diff")
	f.mu.Lock()
	f.lastDiffOpts = opts
	f.mu.Unlock()
	if f.diffFunc != nil {
		return f.diffFunc(opts)
	}
	return "", errors.New("unexpected Diff call")
}

func (f *fakeBackend) ApplyPatch(_ context.Context, patch string, opts gitbackend.ApplyOptions) error {
	f.record("ApplyPatch")
	f.mu.Lock()
	f.lastPatch = patch
	f.lastApplyOpts = opts
	f.mu.Unlock()
	if f.applyPatchFunc != nil {
		return f.applyPatchFunc(patch, opts)
	}
	return errors.New("unexpected ApplyPatch call")
}

func (f *fakeBackend) Stage(_ context.Context, paths []string) ([]gitbackend.PathResult, error) {
	f.record("Stage")
	f.mu.Lock()
	f.lastPaths = paths
	f.mu.Unlock()
	if f.stageFunc != nil {
		return f.stageFunc(paths)
	}
	return nil, errors.New("unexpected Stage call")
}

func (f *fakeBackend) Unstage(_ context.Context, paths []string, opts gitbackend.UnstageOptions) ([]gitbackend.PathResult, error) {
	f.record("Unstage")
	f.mu.Lock()
	f.lastPaths = paths
	f.mu.Unlock()
	if f.unstageFunc != nil {
		return f.unstageFunc(paths, opts)
	}
	return nil, errors.New("unexpected Unstage call")
}

func (f *fakeBackend) Checkout(_ context.Context, paths []string, opts gitbackend.CheckoutOptions) ([]gitbackend.PathResult, error) {
	f.record("Checkout")
	f.mu.Lock()
	f.lastPaths = paths
	f.lastCheckout = opts
	f.mu.Unlock()
	if f.checkoutFunc != nil {
		return f.checkoutFunc(paths, opts)
	}
	return nil, errors.New("unexpected Checkout call")
}

func (f *fakeBackend) Commit(_ context.Context, opts gitbackend.CommitOptions) (string, error) {
	f.record("Commit")
	f.mu.Lock()
	f.lastCommitOpts = opts
	f.commitCalls++
	f.mu.Unlock()
	if f.commitFunc != nil {
		return f.commitFunc(opts)
	}
	return "", errors.New("unexpected Commit call")
}

func (f *fakeBackend) BlobInfo(_ context.Context, path string) (gitbackend.BlobInfo, error) {
	f.record("BlobInfo")
	if f.blobInfoFunc != nil {
		return f.blobInfoFunc(path)
	}
	return gitbackend.BlobInfo{}, errors.New("unexpected BlobInfo call")
}

func (f *fakeBackend) HeadMessage(context.Context) (string, bool, error) {
	f.record("HeadMessage")
	if f.headMessageFunc != nil {
		return f.headMessageFunc()
	}
	return "", false, errors.New("unexpected HeadMessage call")
}

func okResults(paths []string) []gitbackend.PathResult {
	res := make([]gitbackend.PathResult, len(paths))
	for i, p := range paths {
		res[i].Path = p
	}
	return res
}

// recordingSink collects events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func eventsOfType[T Event](r *recordingSink) []T {
	var out []T
	for _, e := range r.snapshot() {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
