package upload

import (
	"context"
	"errors"
)

var (
	// ErrTransport covers network failures, timeouts and non-2xx responses.
	ErrTransport = errors.New("transport error")
	// ErrDecode covers malformed or unparseable response bodies.
	ErrDecode = errors.New("response decode error")
)

// ProgressFunc receives byte-level progress while a batch body is being sent.
type ProgressFunc func(sent, total int64)

// BatchFile is one file of an outgoing batch. EntryID travels with the file
// so the server can correlate results without relying on filename matching.
type BatchFile struct {
	EntryID  string
	Filename string
	Data     []byte
}

// FileResult is one per-file outcome from a completed batch call. EntryID is
// set when the server echoes the correlation field, empty otherwise.
type FileResult struct {
	EntryID   string
	Filename  string
	Status    Status
	Message   string
	Conflicts []ConflictRecord
}

// Transport performs the actual photo API calls. Implementations must report
// byte progress through the callback while sending and return either the full
// per-file result set or an error; partial result sets are not a thing.
type Transport interface {
	UploadBatch(ctx context.Context, files []BatchFile, progress ProgressFunc) ([]FileResult, error)
	ResolveConflicts(ctx context.Context, resolutions []Resolution) (ResolutionOutcome, error)
}
