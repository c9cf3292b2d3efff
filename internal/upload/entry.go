package upload

import (
	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusConflict  Status = "conflict"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether no further server activity is expected for an
// entry in this status. Conflict is terminal for the network operation even
// though a user decision is still outstanding.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusConflict, StatusSkipped:
		return true
	}
	return false
}

// Payload is the raw file content handed over by the caller. The engine keeps
// a reference to it for the duration of the upload; it never copies the bytes.
type Payload struct {
	Name string
	Size int64
	Data []byte
}

// Entry tracks one file through its upload lifecycle.
type Entry struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Status   Status `json:"status"`
	// Progress is a 0-100 percent. It only moves while the entry is
	// uploading and is pinned to 100 on terminal statuses (except transport
	// failures, which reset it to 0).
	Progress  int              `json:"progress"`
	Message   string           `json:"message,omitempty"`
	Conflicts []ConflictRecord `json:"conflicts,omitempty"`

	payload *Payload
}

func newEntry(p Payload) *Entry {
	payload := p
	return &Entry{
		ID:       uuid.New().String(),
		Filename: p.Name,
		Size:     p.Size,
		Status:   StatusPending,
		payload:  &payload,
	}
}

// clone returns a caller-safe copy. The conflicts slice is copied so callers
// cannot mutate engine state through the returned value; the payload reference
// is not exposed at all.
func (e *Entry) clone() Entry {
	c := *e
	c.payload = nil
	if len(e.Conflicts) > 0 {
		c.Conflicts = make([]ConflictRecord, len(e.Conflicts))
		copy(c.Conflicts, e.Conflicts)
	}
	return c
}
