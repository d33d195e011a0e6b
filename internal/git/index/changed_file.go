package index

import (
	"fmt"
	"strings"

	"github.com/thiagokokada/gitstage/internal/git/backend"
)

// Status is the relationship of a path between work tree, index and the
// baseline commit.
type Status uint8

const (
	// StatusUntracked marks paths that are new relative to the baseline:
	// never added files as well as files added to the index only.
	StatusUntracked Status = iota
	StatusModified
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusUntracked:
		return "untracked"
	case StatusDeleted:
		return "deleted"
	default:
		return "modified"
	}
}

const zeroSHA = "0000000000000000000000000000000000000000"

// ChangedFile is one path with a difference between work tree, index and
// baseline commit. It is a plain value; the Controller fills and replaces it.
type ChangedFile struct {
	Path   string
	Status Status

	// CommitBlobSHA and CommitBlobMode describe the index entry, which is what
	// a commit made now would record. Empty when the path is not in the index.
	CommitBlobSHA  string
	CommitBlobMode string

	HasStagedChanges   bool
	HasUnstagedChanges bool
	Untracked          bool
}

func NewChangedFile(path string) ChangedFile {
	return ChangedFile{Path: path, Status: StatusModified}
}

// changedFileFromEntry maps a backend status entry onto a ChangedFile.
func changedFileFromEntry(e backend.StatusEntry) ChangedFile {
	f := NewChangedFile(e.Path)
	f.HasStagedChanges = e.Staged
	f.Untracked = e.Untracked
	f.HasUnstagedChanges = e.Unstaged || e.Untracked
	switch {
	case e.Untracked || e.Change == backend.ChangeAdded:
		f.Status = StatusUntracked
	case e.Change == backend.ChangeDeleted:
		f.Status = StatusDeleted
	}
	f.CommitBlobMode = e.IndexMode
	f.CommitBlobSHA = e.IndexSHA
	return f
}

func (f ChangedFile) hasChanges() bool {
	return f.HasStagedChanges || f.HasUnstagedChanges
}

// inIndex reports whether the path is expected to have an index entry.
func (f ChangedFile) inIndex() bool {
	if f.Untracked {
		return false
	}
	// Staged deletions are gone from the index.
	return !(f.Status == StatusDeleted && f.HasStagedChanges && !f.HasUnstagedChanges)
}

// Icon returns the symbolic icon name for the file.
func (f ChangedFile) Icon() string {
	switch f.Status {
	case StatusUntracked:
		return "new"
	case StatusDeleted:
		return "deleted"
	default:
		return "modified"
	}
}

// Symbol returns a one-letter status code: "?" for untracked files, "A" for
// files added to the index, "M" and "D" otherwise.
func (f ChangedFile) Symbol() string {
	switch {
	case f.Untracked:
		return "?"
	case f.Status == StatusUntracked:
		return "A"
	case f.Status == StatusDeleted:
		return "D"
	default:
		return "M"
	}
}

// IndexInfo returns the line "git update-index --index-info" accepts for the
// file. Files without an index entry yield mode 0 and the zero object id,
// which removes the path from the index.
func (f ChangedFile) IndexInfo() string {
	if f.CommitBlobSHA == "" {
		return fmt.Sprintf("0 %s\t%s", zeroSHA, f.Path)
	}
	return fmt.Sprintf("%s %s\t%s", f.CommitBlobMode, f.CommitBlobSHA, f.Path)
}

func (f ChangedFile) String() string {
	var flags []string
	if f.HasStagedChanges {
		flags = append(flags, "staged")
	}
	if f.HasUnstagedChanges {
		flags = append(flags, "unstaged")
	}
	return fmt.Sprintf("%s %s [%s]", f.Symbol(), f.Path, strings.Join(flags, ","))
}
