package upload

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type Endpoints struct {
	engine    *Engine
	transport Transport
	maxBytes  int64
}

func NewEndpoints(engine *Engine, transport Transport, maxBatchBytes int64) *Endpoints {
	if maxBatchBytes <= 0 {
		maxBatchBytes = 2 * 1024 * 1024 * 1024
	}
	return &Endpoints{
		engine:    engine,
		transport: transport,
		maxBytes:  maxBatchBytes,
	}
}

type entriesResponse struct {
	Entries []Entry `json:"entries"`
}

func (e *Endpoints) List(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, entriesResponse{Entries: e.engine.GetEntries()})
}

// Add accepts a multipart form with one or more "files" parts, enqueues them
// and auto-starts a batch. It returns the created entries immediately; the
// upload itself is observed via /ws or /uploads/progress.
func (e *Endpoints) Add(ctx *fasthttp.RequestCtx) {
	contentType := string(ctx.Request.Header.ContentType())
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		ctx.Error("Content-Type must be multipart/form-data", fasthttp.StatusBadRequest)
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.Error("Failed to parse multipart form", fasthttp.StatusBadRequest)
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		ctx.Error("No files uploaded", fasthttp.StatusBadRequest)
		return
	}

	var total int64
	payloads := make([]Payload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		total += fh.Size
		if total > e.maxBytes {
			ctx.Error("Batch too large", fasthttp.StatusRequestEntityTooLarge)
			return
		}

		f, err := fh.Open()
		if err != nil {
			ctx.Error("Failed to open uploaded file", fasthttp.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ctx.Error("Failed to read uploaded file", fasthttp.StatusInternalServerError)
			return
		}

		payloads = append(payloads, Payload{
			Name: fh.Filename,
			Size: fh.Size,
			Data: data,
		})
	}

	added := e.engine.AddFiles(payloads)
	writeJSON(ctx, fasthttp.StatusAccepted, entriesResponse{Entries: added})
}

func (e *Endpoints) Progress(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, e.engine.Snapshot())
}

func (e *Endpoints) Remove(ctx *fasthttp.RequestCtx) {
	id, ok := ctx.UserValue("entryID").(string)
	if !ok || id == "" {
		ctx.Error("Entry ID is required", fasthttp.StatusBadRequest)
		return
	}
	if !e.engine.RemoveFile(id) {
		ctx.Error("Entry not found", fasthttp.StatusNotFound)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (e *Endpoints) ClearCompleted(ctx *fasthttp.RequestCtx) {
	removed := e.engine.ClearCompleted()
	writeJSON(ctx, fasthttp.StatusOK, map[string]int{"removed": removed})
}

func (e *Endpoints) ClearAll(ctx *fasthttp.RequestCtx) {
	e.engine.ClearAll()
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (e *Endpoints) Conflicts(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, entriesResponse{Entries: e.engine.GetConflicts()})
}

type resolveRequest struct {
	Action Action `json:"action"`
}

type resolveResponse struct {
	Entry Entry `json:"entry"`
}

// Resolve applies the local resolution and then fires the durable server-side
// resolution best-effort: the local transition is already final, so a failed
// server call is logged, not surfaced.
func (e *Endpoints) Resolve(ctx *fasthttp.RequestCtx) {
	id, ok := ctx.UserValue("entryID").(string)
	if !ok || id == "" {
		ctx.Error("Entry ID is required", fasthttp.StatusBadRequest)
		return
	}

	var req resolveRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.Error("Invalid request body", fasthttp.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		ctx.Error("Invalid resolution action", fasthttp.StatusBadRequest)
		return
	}

	// Capture the conflict records before the local resolution clears them.
	entry, found := e.engine.Entry(id)
	if !found {
		ctx.Error("Entry not found", fasthttp.StatusNotFound)
		return
	}
	resolutions := make([]Resolution, 0, len(entry.Conflicts))
	for _, c := range entry.Conflicts {
		resolutions = append(resolutions, Resolution{
			ConflictID: c.ID,
			Action:     req.Action,
			Conflict:   c,
		})
	}

	resolved, err := e.engine.ResolveConflict(id, req.Action)
	switch {
	case err == nil:
	case err == ErrEntryNotFound:
		ctx.Error("Entry not found", fasthttp.StatusNotFound)
		return
	default:
		ctx.Error("Entry is not in conflict status", fasthttp.StatusConflict)
		return
	}

	if len(resolutions) > 0 {
		go func() {
			callCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			outcome, err := e.transport.ResolveConflicts(callCtx, resolutions)
			if err != nil {
				log.Error().Err(err).Str("entryId", id).Msg("[UPLOAD] Durable resolution call failed")
				return
			}
			log.Info().
				Str("entryId", id).
				Int("resolved", outcome.Resolved).
				Int("failed", outcome.Failed).
				Msg("[UPLOAD] Durable resolution applied")
		}()
	}

	writeJSON(ctx, fasthttp.StatusOK, resolveResponse{Entry: resolved})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
