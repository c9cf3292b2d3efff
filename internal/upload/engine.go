package upload

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrEntryNotFound = errors.New("upload entry not found")
	ErrNotConflict   = errors.New("entry is not in conflict status")
	ErrInvalidAction = errors.New("invalid resolution action")
)

// transportFailureMessage deliberately does not distinguish network
// unreachable from a server 5xx; both end the batch the same way.
const transportFailureMessage = "Upload failed: network or server error"

const noResultMessage = "Server returned no result for this file"

// Subscriber receives a snapshot after every engine mutation. Callbacks run
// synchronously on the mutating goroutine and must not block.
type Subscriber func(Snapshot)

type subscriberRef struct {
	id int
	fn Subscriber
}

// Engine owns the upload entry set. It runs at most one batch at a time,
// drains newly added files into follow-up batches until none remain, and
// notifies subscribers after every mutation. All state is in-memory and lost
// when the process exits.
//
// One Engine instance is created at startup and injected into every consumer;
// there is no package-level instance.
type Engine struct {
	transport Transport

	mu          sync.Mutex
	entries     []*Entry
	processing  bool
	generation  uint64
	cancelBatch context.CancelFunc
	subscribers map[int]Subscriber
	nextSubID   int
}

func NewEngine(transport Transport) *Engine {
	return &Engine{
		transport:   transport,
		subscribers: make(map[int]Subscriber),
	}
}

// Subscribe registers an observer and immediately calls it with the current
// snapshot. The returned func unregisters it.
func (e *Engine) Subscribe(fn Subscriber) func() {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	snap := computeSnapshot(e.entries, e.processing)
	e.mu.Unlock()

	e.deliver(snap, []subscriberRef{{id: id, fn: fn}})

	return func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
}

// AddFiles appends one pending entry per payload and starts a batch if none
// is running. Subscribers are notified once for the whole addition.
func (e *Engine) AddFiles(payloads []Payload) []Entry {
	if len(payloads) == 0 {
		return nil
	}

	e.mu.Lock()
	added := make([]Entry, 0, len(payloads))
	for _, p := range payloads {
		en := newEntry(p)
		e.entries = append(e.entries, en)
		added = append(added, en.clone())
	}
	snap, subs := e.publishLocked()
	e.mu.Unlock()

	log.Info().Int("files", len(added)).Msg("[UPLOAD] Files enqueued")
	e.deliver(snap, subs)

	e.StartBatch()
	return added
}

// StartBatch submits all pending entries as one transport call. It is a no-op
// while a batch is already processing or when nothing is pending.
func (e *Engine) StartBatch() {
	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return
	}
	started := e.startBatchLocked()
	if !started {
		e.mu.Unlock()
		return
	}
	snap, subs := e.publishLocked()
	e.mu.Unlock()

	e.deliver(snap, subs)
}

// startBatchLocked transitions every pending entry to uploading and launches
// the transport call. Caller holds the lock and is responsible for notifying.
func (e *Engine) startBatchLocked() bool {
	var batch []*Entry
	for _, en := range e.entries {
		if en.Status == StatusPending {
			batch = append(batch, en)
		}
	}
	if len(batch) == 0 {
		return false
	}

	files := make([]BatchFile, len(batch))
	for i, en := range batch {
		en.Status = StatusUploading
		en.Progress = 0
		files[i] = BatchFile{EntryID: en.ID, Filename: en.Filename, Data: en.payload.Data}
	}

	e.processing = true
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelBatch = cancel
	gen := e.generation

	log.Info().Int("files", len(files)).Msg("[UPLOAD] Batch started")
	go e.runBatch(ctx, gen, files)
	return true
}

func (e *Engine) runBatch(ctx context.Context, gen uint64, files []BatchFile) {
	results, err := e.transport.UploadBatch(ctx, files, func(sent, total int64) {
		e.onProgress(gen, sent, total)
	})
	e.onBatchDone(gen, results, err)
}

// onProgress maps byte progress of the single batch request onto every entry
// still uploading. The batch is one request, so per-file granularity does not
// exist; all in-flight entries share the same percent.
func (e *Engine) onProgress(gen uint64, sent, total int64) {
	percent := 0
	if total > 0 {
		percent = int(sent * 100 / total)
	}
	if percent > 100 {
		percent = 100
	}

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	changed := false
	for _, en := range e.entries {
		if en.Status == StatusUploading && percent > en.Progress {
			en.Progress = percent
			changed = true
		}
	}
	if !changed {
		e.mu.Unlock()
		return
	}
	snap, subs := e.publishLocked()
	e.mu.Unlock()

	e.deliver(snap, subs)
}

func (e *Engine) onBatchDone(gen uint64, results []FileResult, err error) {
	e.mu.Lock()
	if gen != e.generation {
		// Batch was aborted by ClearAll; its outcome no longer applies.
		e.mu.Unlock()
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("[UPLOAD] Batch failed")
		for _, en := range e.entries {
			if en.Status == StatusUploading {
				en.Status = StatusError
				en.Progress = 0
				en.Message = transportFailureMessage
				en.payload = nil
			}
		}
	} else {
		e.applyResultsLocked(results)
	}

	e.processing = false
	e.cancelBatch = nil

	// Drain files that were added while this batch was in flight.
	e.startBatchLocked()

	snap, subs := e.publishLocked()
	e.mu.Unlock()

	e.deliver(snap, subs)
}

func (e *Engine) applyResultsLocked(results []FileResult) {
	for _, res := range results {
		en := e.matchResultLocked(res)
		if en == nil {
			log.Warn().
				Str("filename", res.Filename).
				Msg("[UPLOAD] Result does not match any uploading entry")
			continue
		}

		status := res.Status
		if !status.Terminal() {
			status = StatusError
		}
		en.Status = status
		en.Message = res.Message
		en.Conflicts = res.Conflicts
		en.Progress = 100
		en.payload = nil

		if status == StatusConflict {
			log.Info().
				Str("filename", en.Filename).
				Int("conflicts", len(en.Conflicts)).
				Msg("[UPLOAD] Duplicate conflict reported")
		}
	}

	// A result the server never sent would otherwise leave the entry stuck in
	// uploading forever; surface it as an error instead.
	for _, en := range e.entries {
		if en.Status == StatusUploading {
			log.Warn().Str("filename", en.Filename).Msg("[UPLOAD] No result returned for file")
			en.Status = StatusError
			en.Progress = 100
			en.Message = noResultMessage
			en.payload = nil
		}
	}
}

// matchResultLocked prefers the entry ID correlation field and falls back to
// filename equality against entries still awaiting a result, so duplicate
// filenames within a batch consume entries in order.
func (e *Engine) matchResultLocked(res FileResult) *Entry {
	if res.EntryID != "" {
		for _, en := range e.entries {
			if en.ID == res.EntryID && en.Status == StatusUploading {
				return en
			}
		}
	}
	for _, en := range e.entries {
		if en.Status == StatusUploading && en.Filename == res.Filename {
			return en
		}
	}
	return nil
}

// GetEntries returns caller-safe copies of all entries in insertion order.
func (e *Engine) GetEntries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Entry, len(e.entries))
	for i, en := range e.entries {
		out[i] = en.clone()
	}
	return out
}

// Entry returns a copy of a single entry by ID.
func (e *Engine) Entry(id string) (Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, en := range e.entries {
		if en.ID == id {
			return en.clone(), true
		}
	}
	return Entry{}, false
}

// GetConflicts returns copies of all entries currently in conflict status.
func (e *Engine) GetConflicts() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Entry
	for _, en := range e.entries {
		if en.Status == StatusConflict {
			out = append(out, en.clone())
		}
	}
	return out
}

// Snapshot computes the current progress aggregate.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return computeSnapshot(e.entries, e.processing)
}

// RemoveFile deletes an entry unconditionally, including mid-upload ones.
// Removal does not cancel the batch request the entry is part of; the batch
// is a single request and its eventual result for this file is dropped.
func (e *Engine) RemoveFile(id string) bool {
	e.mu.Lock()
	idx := -1
	for i, en := range e.entries {
		if en.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	e.entries = append(e.entries[:idx], e.entries[idx+1:]...)
	snap, subs := e.publishLocked()
	e.mu.Unlock()

	e.deliver(snap, subs)
	return true
}

// ClearCompleted removes success, error and skipped entries. Conflicted
// entries stay: they require an explicit resolution first.
func (e *Engine) ClearCompleted() int {
	e.mu.Lock()
	kept := e.entries[:0]
	removed := 0
	for _, en := range e.entries {
		switch en.Status {
		case StatusSuccess, StatusError, StatusSkipped:
			removed++
		default:
			kept = append(kept, en)
		}
	}
	e.entries = kept
	if removed == 0 {
		e.mu.Unlock()
		return 0
	}
	snap, subs := e.publishLocked()
	e.mu.Unlock()

	e.deliver(snap, subs)
	return removed
}

// ClearAll aborts the in-flight batch, if any, and discards every entry. Late
// progress or result callbacks from the aborted call are dropped by the
// generation check.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	if e.cancelBatch != nil {
		e.cancelBatch()
		e.cancelBatch = nil
	}
	e.generation++
	e.processing = false
	e.entries = nil
	snap, subs := e.publishLocked()
	e.mu.Unlock()

	log.Info().Msg("[UPLOAD] Queue cleared")
	e.deliver(snap, subs)
}

// ResolveConflict applies the caller's chosen action to a conflicted entry
// and transitions it to success. The action is never auto-applied from the
// server suggestion and is not validated against server-side feasibility.
// Calling this on an entry that is not in conflict status mutates nothing
// and does not notify.
func (e *Engine) ResolveConflict(id string, action Action) (Entry, error) {
	if !action.Valid() {
		return Entry{}, ErrInvalidAction
	}

	e.mu.Lock()
	var target *Entry
	for _, en := range e.entries {
		if en.ID == id {
			target = en
			break
		}
	}
	if target == nil {
		e.mu.Unlock()
		return Entry{}, ErrEntryNotFound
	}
	if target.Status != StatusConflict {
		e.mu.Unlock()
		return Entry{}, ErrNotConflict
	}

	target.Status = StatusSuccess
	target.Progress = 100
	target.Message = resolutionMessage(action)
	target.Conflicts = nil
	resolved := target.clone()
	snap, subs := e.publishLocked()
	e.mu.Unlock()

	log.Info().
		Str("entryId", id).
		Str("action", string(action)).
		Msg("[UPLOAD] Conflict resolved")
	e.deliver(snap, subs)
	return resolved, nil
}

// publishLocked prepares a snapshot and the subscriber list for delivery
// outside the lock, so callbacks can safely read engine state.
func (e *Engine) publishLocked() (Snapshot, []subscriberRef) {
	snap := computeSnapshot(e.entries, e.processing)
	subs := make([]subscriberRef, 0, len(e.subscribers))
	for id, fn := range e.subscribers {
		subs = append(subs, subscriberRef{id: id, fn: fn})
	}
	return snap, subs
}

func (e *Engine) deliver(snap Snapshot, subs []subscriberRef) {
	for _, s := range subs {
		e.deliverOne(snap, s)
	}
}

func (e *Engine) deliverOne(snap Snapshot, s subscriberRef) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("[UPLOAD] Subscriber panicked, unsubscribing")
			e.mu.Lock()
			delete(e.subscribers, s.id)
			e.mu.Unlock()
		}
	}()
	s.fn(snap)
}
