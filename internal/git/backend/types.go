package backend

// EmptyTreeHash is the object id of the empty tree; used as baseline when
// HEAD is unborn (or has no parent while amending).
const EmptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

const zeroHash = "0000000000000000000000000000000000000000"

// ChangeKind is how a path differs from the baseline commit.
type ChangeKind uint8

const (
	ChangeModified ChangeKind = iota
	ChangeAdded
	ChangeDeleted
)

func (c ChangeKind) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	default:
		return "modified"
	}
}

// StatusEntry is one changed path as reported by EnumerateStatus.
type StatusEntry struct {
	Path string
	// Staged: the index differs from the baseline commit.
	Staged bool
	// Unstaged: the work tree differs from the index.
	Unstaged bool
	// Untracked: the path only exists in the work tree.
	Untracked bool
	Change    ChangeKind

	// Index side of the path; empty when the path is not in the index.
	IndexMode string
	IndexSHA  string
}

type StatusOptions struct {
	// Amend compares the index against HEAD's parent instead of HEAD.
	Amend bool
}

type DiffOptions struct {
	Path   string
	Staged bool
	Amend  bool
	// Untracked renders the work tree file as a new-file diff.
	Untracked    bool
	ContextLines uint
}

type ApplyOptions struct {
	// Cached applies to the index instead of the work tree.
	Cached  bool
	Reverse bool
	// UnidiffZero allows hunks without context lines.
	UnidiffZero bool
}

type UnstageOptions struct {
	Amend bool
}

type CheckoutOptions struct {
	// FromIndex overwrites the work tree with the index; otherwise both index
	// and work tree are restored from the baseline commit.
	FromIndex bool
	Amend     bool
}

type CommitOptions struct {
	Message string
	Verify  bool
	Amend   bool
	// Progress receives a short description of each commit step.
	Progress func(status string)
}

type BlobInfo struct {
	Mode string
	SHA  string
}

func (b BlobInfo) IsZero() bool {
	return b.SHA == "" || b.SHA == zeroHash
}
