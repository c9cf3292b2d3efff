package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func entryWith(name string, status Status, progress int) *Entry {
	return &Entry{ID: name, Filename: name, Status: status, Progress: progress}
}

func TestComputeSnapshot_EmptyEntrySet(t *testing.T) {
	// when
	snap := computeSnapshot(nil, false)

	// then
	assert.Equal(t, Snapshot{}, snap)
}

func TestComputeSnapshot_AllTerminalStatusesCountAsCompleted(t *testing.T) {
	// given one entry per terminal status, including conflict
	entries := []*Entry{
		entryWith("a.jpg", StatusSuccess, 100),
		entryWith("b.jpg", StatusError, 100),
		entryWith("c.jpg", StatusSkipped, 100),
		entryWith("d.jpg", StatusConflict, 100),
	}

	// when
	snap := computeSnapshot(entries, false)

	// then
	assert.Equal(t, 4, snap.TotalFiles)
	assert.Equal(t, 4, snap.CompletedFiles)
	assert.Equal(t, 100, snap.OverallProgress)
	assert.Empty(t, snap.CurrentFile)
	assert.False(t, snap.IsActive)
}

func TestComputeSnapshot_FoldsCurrentFileProgressIntoOverall(t *testing.T) {
	// given 1 of 2 files done and the other halfway through
	entries := []*Entry{
		entryWith("done.jpg", StatusSuccess, 100),
		entryWith("half.jpg", StatusUploading, 50),
	}

	// when
	snap := computeSnapshot(entries, true)

	// then 50% completed plus 50/2 in-flight
	assert.Equal(t, 2, snap.TotalFiles)
	assert.Equal(t, 1, snap.CompletedFiles)
	assert.Equal(t, "half.jpg", snap.CurrentFile)
	assert.Equal(t, 75, snap.OverallProgress)
	assert.True(t, snap.IsActive)
}

func TestComputeSnapshot_CurrentFileIsFirstUploadingEntry(t *testing.T) {
	// given several entries uploading at the shared batch percent
	entries := []*Entry{
		entryWith("a.jpg", StatusUploading, 20),
		entryWith("b.jpg", StatusUploading, 20),
		entryWith("c.jpg", StatusPending, 0),
	}

	// when
	snap := computeSnapshot(entries, true)

	// then
	assert.Equal(t, "a.jpg", snap.CurrentFile)
	assert.Equal(t, 0, snap.CompletedFiles)
	assert.Equal(t, 6, snap.OverallProgress) // 20/3
}

func TestComputeSnapshot_ClampsToOneHundred(t *testing.T) {
	// given a degenerate entry reporting beyond-full progress
	entries := []*Entry{
		entryWith("a.jpg", StatusSuccess, 100),
		entryWith("b.jpg", StatusUploading, 400),
	}

	// when
	snap := computeSnapshot(entries, true)

	// then
	assert.LessOrEqual(t, snap.OverallProgress, 100)
	assert.GreaterOrEqual(t, snap.OverallProgress, 0)
}

func TestComputeSnapshot_ActiveWhileBatchCallInFlight(t *testing.T) {
	// given a processing flag set but entries not yet transitioned
	entries := []*Entry{entryWith("a.jpg", StatusPending, 0)}

	// when
	snap := computeSnapshot(entries, true)

	// then
	assert.True(t, snap.IsActive)
	assert.Equal(t, 0, snap.CompletedFiles)
	assert.Equal(t, 0, snap.OverallProgress)
}
