package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies repository failures.
type Kind string

const (
	KindRepoAlreadyExists   Kind = "REPO_ALREADY_EXISTS"
	KindBadRepo             Kind = "BAD_REPO"
	KindNoSuchFile          Kind = "NO_SUCH_FILE"
	KindNoSuchBranch        Kind = "NO_SUCH_BRANCH"
	KindNoSuchCommit        Kind = "NO_SUCH_COMMIT"
	KindBranchAlreadyExists Kind = "BRANCH_ALREADY_EXISTS"
	KindBadPosition         Kind = "BAD_POSITION"
	KindNothingToCommit     Kind = "NOTHING_TO_COMMIT"
	KindFileSystem          Kind = "FILE_SYSTEM"
)

// Error is the single error type returned by the repository packages.
// Every kind except KindFileSystem is a validation failure the caller can
// report and recover from.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrRepoAlreadyExists   = &Error{Kind: KindRepoAlreadyExists, Message: "repository already exists"}
	ErrBadRepo             = &Error{Kind: KindBadRepo, Message: "bad repository"}
	ErrNoSuchFile          = &Error{Kind: KindNoSuchFile, Message: "no such file"}
	ErrNoSuchBranch        = &Error{Kind: KindNoSuchBranch, Message: "no such branch"}
	ErrNoSuchCommit        = &Error{Kind: KindNoSuchCommit, Message: "no such commit"}
	ErrBranchAlreadyExists = &Error{Kind: KindBranchAlreadyExists, Message: "branch already exists"}
	ErrBadPosition         = &Error{Kind: KindBadPosition, Message: "bad position"}
	ErrNothingToCommit     = &Error{Kind: KindNothingToCommit, Message: "nothing to commit"}
	ErrFileSystem          = &Error{Kind: KindFileSystem, Message: "file system failure"}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func RepoAlreadyExists(path string) *Error {
	return newError(KindRepoAlreadyExists, "repository already exists at %s", path)
}

func BadRepo(format string, args ...any) *Error {
	return newError(KindBadRepo, format, args...)
}

// Corrupt wraps a parse or integrity failure as KindBadRepo.
func Corrupt(err error, format string, args ...any) *Error {
	e := newError(KindBadRepo, format, args...)
	e.Err = err
	return e
}

func NoSuchFile(path string) *Error {
	return newError(KindNoSuchFile, "no such file: %s", path)
}

func NoSuchBranch(name string) *Error {
	return newError(KindNoSuchBranch, "no such branch: %s", name)
}

func NoSuchCommit(number int) *Error {
	return newError(KindNoSuchCommit, "no such commit: %d", number)
}

func BranchAlreadyExists(name string) *Error {
	return newError(KindBranchAlreadyExists, "branch already exists: %s", name)
}

func BadPosition(format string, args ...any) *Error {
	return newError(KindBadPosition, format, args...)
}

func NothingToCommit() *Error {
	return newError(KindNothingToCommit, "nothing to commit: staging zone is empty")
}

// FileSystem wraps an unrecoverable I/O failure. It aborts the current
// operation; see IsFatal.
func FileSystem(op string, err error) *Error {
	return &Error{Kind: KindFileSystem, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err is an I/O failure rather than a validation error.
func IsFatal(err error) bool {
	return KindOf(err) == KindFileSystem
}
