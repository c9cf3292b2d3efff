package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchFixture() []BatchFile {
	return []BatchFile{
		{EntryID: "entry-1", Filename: "a.jpg", Data: []byte("aaaa")},
		{EntryID: "entry-2", Filename: "b.jpg", Data: []byte("bbbb")},
	}
}

func TestAPIClient_UploadBatch_SendsMultipartWithCorrelationIDs(t *testing.T) {
	// given a server that inspects the multipart request
	var gotAuth string
	var gotIDs []string
	var gotFiles []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/photos/upload", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(32<<20))
		gotIDs = r.MultipartForm.Value["entry_ids"]
		for _, fh := range r.MultipartForm.File["files"] {
			gotFiles = append(gotFiles, fh.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"entry_id":"entry-1","filename":"a.jpg","status":"success"},
			{"entry_id":"entry-2","filename":"b.jpg","status":"skipped","message":"Identical file already exists - automatically skipped"}
		],"has_conflicts":false,"total_conflicts":0}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "secret-token", 5*time.Second)

	// when
	var mu sync.Mutex
	var lastSent, total int64
	results, err := client.UploadBatch(context.Background(), batchFixture(), func(sent, t int64) {
		mu.Lock()
		lastSent, total = sent, t
		mu.Unlock()
	})

	// then
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, []string{"entry-1", "entry-2"}, gotIDs)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, gotFiles)

	require.Len(t, results, 2)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, "entry-1", results[0].EntryID)
	assert.Equal(t, StatusSkipped, results[1].Status)
	assert.NotEmpty(t, results[1].Message)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, total, lastSent)
	assert.Greater(t, total, int64(0))
}

func TestAPIClient_UploadBatch_DecodesConflicts(t *testing.T) {
	// given
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{
			"filename":"a.jpg","status":"conflict","message":"1 potential duplicate(s) found",
			"conflicts":[{
				"id":"conf-1",
				"existing_photo":{"id":"fv-1","tier":"silver","fileHash":"abc","mediaAsset":{"originalFilename":"old.jpg"}},
				"new_file":{"tempPath":"uploads/temp/x","originalFilename":"a.jpg","fileHash":"def"},
				"conflict_type":"visually_identical",
				"similarity":100,
				"suggested_action":"keep_both",
				"reasoning":"manual review recommended"
			}]
		}]}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "", time.Second)

	// when
	results, err := client.UploadBatch(context.Background(), batchFixture()[:1], nil)

	// then
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusConflict, results[0].Status)
	require.Len(t, results[0].Conflicts, 1)
	assert.Equal(t, "conf-1", results[0].Conflicts[0].ID)
	assert.Equal(t, ActionKeepBoth, results[0].Conflicts[0].SuggestedAction)
}

func TestAPIClient_UploadBatch_NonSuccessStatusIsTransportError(t *testing.T) {
	// given
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "", time.Second)

	// when
	_, err := client.UploadBatch(context.Background(), batchFixture(), nil)

	// then
	assert.ErrorIs(t, err, ErrTransport)
}

func TestAPIClient_UploadBatch_MalformedBodyIsDecodeError(t *testing.T) {
	// given
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "", time.Second)

	// when
	_, err := client.UploadBatch(context.Background(), batchFixture(), nil)

	// then
	assert.ErrorIs(t, err, ErrDecode)
}

func TestAPIClient_UploadBatch_CanceledContextIsTransportError(t *testing.T) {
	// given
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// when
	_, err := client.UploadBatch(ctx, batchFixture(), nil)

	// then
	assert.ErrorIs(t, err, ErrTransport)
}

func TestAPIClient_ResolveConflicts_PostsTuplesAndDecodesCounts(t *testing.T) {
	// given
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/photos/resolve-duplicates", r.URL.Path)
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		gotBody = body

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"resolved":1,"failed":0}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "", time.Second)
	resolutions := []Resolution{{
		ConflictID: "conf-1",
		Action:     ActionKeepBoth,
		Conflict:   conflictFixture("a.jpg"),
	}}

	// when
	outcome, err := client.ResolveConflicts(context.Background(), resolutions)

	// then
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Resolved)
	assert.Equal(t, 0, outcome.Failed)
	assert.Contains(t, string(gotBody), `"conflict_id":"conf-1"`)
	assert.Contains(t, string(gotBody), `"keep_both"`)
}

func TestTranslateResults_UnknownStatusBecomesError(t *testing.T) {
	// when
	results := translateResults([]uploadResultWire{
		{Filename: "a.jpg", Status: "quarantined"},
		{Filename: "b.jpg", Status: "success"},
	})

	// then
	assert.Equal(t, StatusError, results[0].Status)
	assert.Contains(t, results[0].Message, "quarantined")
	assert.Equal(t, StatusSuccess, results[1].Status)
}
