package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures reported by a Backend and by the index controller.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindBackendUnavailable means the git process could not be started,
	// crashed or timed out. Fatal to the operation, not to the controller.
	KindBackendUnavailable
	// KindCommandFailed means git ran and exited with an error.
	KindCommandFailed
	// KindParseFailure means git output did not have the expected shape.
	KindParseFailure
	// KindPatchRejected means a patch no longer applies; re-diff and retry.
	KindPatchRejected
	// KindHookRejected means a commit hook refused the commit.
	KindHookRejected
	// KindValidation means the request was refused before reaching git.
	KindValidation
	// KindPartialFailure means a batch operation failed for some paths.
	KindPartialFailure
)

func (k Kind) String() string {
	switch k {
	case KindBackendUnavailable:
		return "backend unavailable"
	case KindCommandFailed:
		return "command failed"
	case KindParseFailure:
		return "parse failure"
	case KindPatchRejected:
		return "patch rejected"
	case KindHookRejected:
		return "hook rejected"
	case KindValidation:
		return "validation error"
	case KindPartialFailure:
		return "partial failure"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrBackendUnavailable = &Error{Kind: KindBackendUnavailable}
	ErrCommandFailed      = &Error{Kind: KindCommandFailed}
	ErrParseFailure       = &Error{Kind: KindParseFailure}
	ErrPatchRejected      = &Error{Kind: KindPatchRejected}
	ErrHookRejected       = &Error{Kind: KindHookRejected}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrPartialFailure     = &Error{Kind: KindPartialFailure}
)

// PathResult is the outcome of a batch operation for a single path.
// Err is nil when the path was applied.
type PathResult struct {
	Path string
	Err  error
}

// Error is the error type returned by backends and by the index controller.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	// Paths lists the failed paths of a KindPartialFailure.
	Paths []PathResult
	Err   error
}

func NewError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: strings.TrimSpace(detail), Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Paths) > 0 {
		fmt.Fprintf(&b, " (%d path(s):", len(e.Paths))
		for _, p := range e.Paths {
			b.WriteByte(' ')
			b.WriteString(p.Path)
		}
		b.WriteByte(')')
	}
	if e.Err != nil && e.Detail == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can write errors.Is(err, ErrPatchRejected).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Detail == "" && t.Err == nil
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FailedPaths extracts the per-path failures from results.
func FailedPaths(results []PathResult) []PathResult {
	var failed []PathResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
