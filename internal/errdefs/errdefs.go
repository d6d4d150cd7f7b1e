package errdefs

import (
	"context"
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeQuery     ErrorType = "query"
	ErrTypeStorage   ErrorType = "storage"
	ErrTypeFileIndex ErrorType = "file_index"
)

var (
	// ErrCancelled marks a search that was stopped by its caller. Search
	// entry points turn it into an empty result.
	ErrCancelled = errors.New("search cancelled")

	ErrIndexMissing        = errors.New("index not present or not accessible")
	ErrLocationUnreachable = errors.New("search location not reachable")
	ErrInterrupted         = errors.New("interrupted")
	ErrLocked              = errors.New("database is locked")
)

// QueryError is a user-correctable problem with the search string.
type QueryError struct {
	Type   ErrorType
	Search string
	Reason string
}

func NewQueryError(search, reason string) *QueryError {
	return &QueryError{Type: ErrTypeQuery, Search: search, Reason: reason}
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Search, e.Reason)
}

// StorageError wraps an I/O or SQL failure of the index storage.
type StorageError struct {
	Type       ErrorType
	Op         string
	Location   string
	Underlying error
}

func NewStorageError(op, location string, err error) *StorageError {
	return &StorageError{Type: ErrTypeStorage, Op: op, Location: location, Underlying: err}
}

func (e *StorageError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Op, e.Location, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Op, e.Underlying)
}

func (e *StorageError) Unwrap() error {
	return e.Underlying
}

// FileIndexError is raised while (re)indexing a single file. The updater
// logs it, tombstones the document and continues with the next file.
type FileIndexError struct {
	Type       ErrorType
	Path       string
	Underlying error
}

func NewFileIndexError(path string, err error) *FileIndexError {
	return &FileIndexError{Type: ErrTypeFileIndex, Path: path, Underlying: err}
}

func (e *FileIndexError) Error() string {
	return fmt.Sprintf("indexing %s failed: %v", e.Path, e.Underlying)
}

func (e *FileIndexError) Unwrap() error {
	return e.Underlying
}

type Kind int

const (
	KindNone Kind = iota
	KindQuery
	KindIndexMissing
	KindLocationUnreachable
	KindLocked
	KindCancelled
	KindStorage
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindQuery:
		return "query"
	case KindIndexMissing:
		return "index_missing"
	case KindLocationUnreachable:
		return "location_unreachable"
	case KindLocked:
		return "locked"
	case KindCancelled:
		return "cancelled"
	case KindStorage:
		return "storage"
	default:
		return "other"
	}
}

// Classify maps an error returned by the search or update layers to the
// category a caller needs to give actionable guidance.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var qe *QueryError
	switch {
	case errors.As(err, &qe):
		return KindQuery
	case errors.Is(err, ErrIndexMissing):
		return KindIndexMissing
	case errors.Is(err, ErrLocationUnreachable):
		return KindLocationUnreachable
	case errors.Is(err, ErrLocked):
		return KindLocked
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return KindCancelled
	}

	var se *StorageError
	if errors.As(err, &se) {
		return KindStorage
	}
	return KindOther
}

// Message returns a short user-facing explanation for err.
func Message(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindQuery:
		var qe *QueryError
		errors.As(err, &qe)
		return qe.Reason
	case KindIndexMissing:
		return "The index is missing or cannot be opened. Update the index and try again."
	case KindLocationUnreachable:
		return "The search location cannot be reached. Check that the configured directories exist."
	case KindLocked:
		return "The index is being updated right now. Try again when the update has finished."
	case KindCancelled:
		return "The search was cancelled."
	default:
		return err.Error()
	}
}
