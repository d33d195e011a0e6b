package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/thiagokokada/gitstage/internal/git/backend"
)

// DefaultContextLines is the number of context lines requested for diffs.
const DefaultContextLines = 3

// State is the refresh state of a Controller.
type State uint8

const (
	StateIdle State = iota
	StateRefreshing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRefreshing:
		return "refreshing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Controller mirrors the index and work tree of one repository as a list of
// ChangedFile values and mediates every change to them. It is the only
// writer of that list. Operations are serialized through a single slot, and
// refreshes run in the background.
type Controller struct {
	backend      backend.Backend
	sink         Sink
	log          *slog.Logger
	contextLines uint

	// ops serializes refreshes and mutations.
	ops *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	state        State
	files        []ChangedFile
	amend        bool
	amendMessage string
	inflight     *refreshRun
	closed       bool
}

// refreshRun is a scheduled or running background refresh. Requests that
// arrive before it finishes share it. err is written before done is closed.
type refreshRun struct {
	id   string
	done chan struct{}
	err  error
}

type Option func(*Controller)

func WithSink(s Sink) Option {
	return func(c *Controller) {
		if s != nil {
			c.sink = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func WithContextLines(n uint) Option {
	return func(c *Controller) { c.contextLines = n }
}

// New creates a controller over b. The backend is borrowed: Close never
// closes it.
func New(b backend.Backend, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:      b,
		sink:         nopSink{},
		log:          slog.Default(),
		contextLines: DefaultContextLines,
		ops:          semaphore.NewWeighted(1),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(slog.String("repo", b.RepoPath()))
	return c
}

// Close stops background work and waits for it to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) RepoPath() string { return c.backend.RepoPath() }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Changes returns a copy of the current collection, ordered by path.
func (c *Controller) Changes() []ChangedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.files)
}

// Lookup returns the current entry for path.
func (c *Controller) Lookup(path string) (ChangedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := slices.BinarySearchFunc(c.files, path, func(f ChangedFile, p string) int {
		switch {
		case f.Path < p:
			return -1
		case f.Path > p:
			return 1
		}
		return 0
	})
	if !ok {
		return ChangedFile{}, false
	}
	return c.files[i], true
}

// Refresh schedules a background re-scan and returns a channel closed when
// the refresh serving this request has finished. A request made while a
// refresh is pending or running joins that refresh.
func (c *Controller) Refresh() <-chan struct{} {
	return c.startRefresh().done
}

// RefreshAndWait schedules a refresh like Refresh and waits for its outcome.
func (c *Controller) RefreshAndWait(ctx context.Context) error {
	run := c.startRefresh()
	select {
	case <-run.done:
		return run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) startRefresh() *refreshRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != nil {
		return c.inflight
	}
	run := &refreshRun{id: uuid.NewString(), done: make(chan struct{})}
	if c.closed {
		run.err = errClosed
		close(run.done)
		return run
	}
	c.inflight = run
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.withOp(c.ctx, func(ctx context.Context) error {
			return c.refreshLocked(ctx, run.id)
		})
		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		run.err = err
		close(run.done)
	}()
	return run
}

var errClosed = backend.NewError(backend.KindValidation, "index", "controller closed", nil)

// withOp runs fn while holding the operation slot.
func (c *Controller) withOp(ctx context.Context, fn func(context.Context) error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errClosed
	}
	if err := c.ops.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.ops.Release(1)
	return fn(ctx)
}

func (c *Controller) emit(e Event) {
	c.sink.Notify(e)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// refreshLocked re-scans the repository and reconciles the collection.
// The caller holds the operation slot.
func (c *Controller) refreshLocked(ctx context.Context, opID string) error {
	log := c.log.With(slog.String("op_id", opID))
	c.setState(StateRefreshing)
	c.emit(RefreshStatus{Op: Op{opID}, Text: "Scanning for changed files"})

	c.mu.Lock()
	amend := c.amend
	c.mu.Unlock()

	entries, err := c.backend.EnumerateStatus(ctx, backend.StatusOptions{Amend: amend})
	if err != nil {
		return c.refreshFailed(log, opID, fmt.Errorf("enumerate status: %w", err))
	}
	c.emit(RefreshStatus{Op: Op{opID}, Text: fmt.Sprintf("Found %d changed file(s)", len(entries))})

	next, err := c.reconcile(ctx, opID, entries)
	if err != nil {
		return c.refreshFailed(log, opID, err)
	}

	c.mu.Lock()
	changed := !slices.Equal(c.files, next)
	c.files = next
	c.state = StateSucceeded
	c.mu.Unlock()

	if changed {
		c.emit(IndexUpdated{Op: Op{opID}, Files: slices.Clone(next)})
	}
	c.emit(RefreshFinished{Op: Op{opID}})
	log.Debug("refresh finished", slog.Int("files", len(next)), slog.Bool("changed", changed), slog.Bool("amend", amend))
	c.setState(StateIdle)
	return nil
}

// reconcile builds the next collection from a status report: one entry per
// path, only paths with a difference, blob info completed from the index.
func (c *Controller) reconcile(ctx context.Context, opID string, entries []backend.StatusEntry) ([]ChangedFile, error) {
	next := make([]ChangedFile, 0, len(entries))
	seen := make(map[string]int, len(entries))
	var missingBlob []int
	for _, e := range entries {
		f := changedFileFromEntry(e)
		if !f.hasChanges() {
			continue
		}
		if i, dup := seen[f.Path]; dup {
			next[i] = mergeDuplicate(next[i], f)
			continue
		}
		seen[f.Path] = len(next)
		next = append(next, f)
	}
	for i, f := range next {
		if f.CommitBlobSHA == "" && f.inIndex() {
			missingBlob = append(missingBlob, i)
		}
	}
	if len(missingBlob) > 0 {
		c.emit(RefreshStatus{Op: Op{opID}, Text: "Reading index entries"})
		for _, i := range missingBlob {
			info, err := c.backend.BlobInfo(ctx, next[i].Path)
			if err != nil {
				return nil, fmt.Errorf("blob info %s: %w", next[i].Path, err)
			}
			if !info.IsZero() {
				next[i].CommitBlobMode, next[i].CommitBlobSHA = info.Mode, info.SHA
			}
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Path < next[j].Path })
	return next, nil
}

func mergeDuplicate(a, b ChangedFile) ChangedFile {
	a.HasStagedChanges = a.HasStagedChanges || b.HasStagedChanges
	a.HasUnstagedChanges = a.HasUnstagedChanges || b.HasUnstagedChanges
	a.Untracked = a.Untracked || b.Untracked
	if b.Status != StatusModified {
		a.Status = b.Status
	}
	if a.CommitBlobSHA == "" {
		a.CommitBlobMode, a.CommitBlobSHA = b.CommitBlobMode, b.CommitBlobSHA
	}
	return a
}

func (c *Controller) refreshFailed(log *slog.Logger, opID string, err error) error {
	c.setState(StateFailed)
	log.Warn("refresh failed", slog.Any("err", err))
	c.emit(RefreshFailed{Op: Op{opID}, Err: err})
	c.setState(StateIdle)
	return err
}
