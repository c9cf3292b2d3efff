package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

const (
	uploadPath  = "/api/photos/upload"
	resolvePath = "/api/photos/resolve-duplicates"

	defaultRequestTimeout = 10 * time.Minute
)

// APIClient talks to the Pictallion photo API. The whole batch goes out as
// one multipart request; each file part is preceded by an entry_ids form
// value carrying the local entry ID for correlation.
type APIClient struct {
	client  *fasthttp.Client
	baseURL string
	token   string
	timeout time.Duration
}

func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &APIClient{
		client:  &fasthttp.Client{},
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
	}
}

type uploadResultWire struct {
	EntryID   string           `json:"entry_id"`
	Filename  string           `json:"filename"`
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	AssetID   string           `json:"asset_id"`
	VersionID string           `json:"version_id"`
	Conflicts []ConflictRecord `json:"conflicts"`
}

type batchUploadResponse struct {
	Results        []uploadResultWire `json:"results"`
	HasConflicts   bool               `json:"has_conflicts"`
	TotalConflicts int                `json:"total_conflicts"`
}

func (c *APIClient) UploadBatch(ctx context.Context, files []BatchFile, progress ProgressFunc) ([]FileResult, error) {
	body, contentType, err := buildBatchBody(files)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch body: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + uploadPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// The counting reader aborts the request body mid-send when ctx is
	// canceled; a response already in flight is bounded by the timeout.
	reader := &progressReader{
		r:        bytes.NewReader(body),
		total:    int64(len(body)),
		ctx:      ctx,
		progress: progress,
	}
	req.SetBodyStream(reader, len(body))

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	code := resp.StatusCode()
	if code < fasthttp.StatusOK || code >= fasthttp.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: server returned status %d", ErrTransport, code)
	}

	var parsed batchUploadResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return translateResults(parsed.Results), nil
}

func (c *APIClient) ResolveConflicts(ctx context.Context, resolutions []Resolution) (ResolutionOutcome, error) {
	if err := ctx.Err(); err != nil {
		return ResolutionOutcome{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	payload, err := json.Marshal(map[string][]Resolution{"resolutions": resolutions})
	if err != nil {
		return ResolutionOutcome{}, fmt.Errorf("failed to encode resolutions: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + resolvePath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.SetBody(payload)

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return ResolutionOutcome{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	code := resp.StatusCode()
	if code < fasthttp.StatusOK || code >= fasthttp.StatusMultipleChoices {
		return ResolutionOutcome{}, fmt.Errorf("%w: server returned status %d", ErrTransport, code)
	}

	var outcome ResolutionOutcome
	if err := json.Unmarshal(resp.Body(), &outcome); err != nil {
		return ResolutionOutcome{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return outcome, nil
}

func buildBatchBody(files []BatchFile) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, f := range files {
		if err := w.WriteField("entry_ids", f.EntryID); err != nil {
			return nil, "", err
		}
		part, err := w.CreateFormFile("files", f.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// translateResults maps wire results onto engine results. Statuses the engine
// does not know become errors instead of leaving entries in limbo.
func translateResults(results []uploadResultWire) []FileResult {
	out := make([]FileResult, len(results))
	for i, r := range results {
		res := FileResult{
			EntryID:   r.EntryID,
			Filename:  r.Filename,
			Message:   r.Message,
			Conflicts: r.Conflicts,
		}
		switch Status(r.Status) {
		case StatusSuccess, StatusError, StatusConflict, StatusSkipped:
			res.Status = Status(r.Status)
		default:
			res.Status = StatusError
			if res.Message == "" {
				res.Message = fmt.Sprintf("Unrecognized result status %q", r.Status)
			}
		}
		out[i] = res
	}
	return out
}

type progressReader struct {
	r        io.Reader
	total    int64
	sent     int64
	ctx      context.Context
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}
