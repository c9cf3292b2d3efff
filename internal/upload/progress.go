package upload

// Snapshot is a derived, point-in-time aggregate over the entry set. It is
// recomputed on demand and never stored.
type Snapshot struct {
	TotalFiles      int    `json:"totalFiles"`
	CompletedFiles  int    `json:"completedFiles"`
	CurrentFile     string `json:"currentFile,omitempty"`
	OverallProgress int    `json:"overallProgress"`
	IsActive        bool   `json:"isActive"`
}

// computeSnapshot aggregates the entry set. Conflicted entries count as
// completed: the network operation finished even though a user decision is
// still pending. Overall progress folds the shared batch percent of the
// in-flight entries into the completed fraction and clamps to 0-100.
func computeSnapshot(entries []*Entry, processing bool) Snapshot {
	snap := Snapshot{
		TotalFiles: len(entries),
		IsActive:   processing,
	}

	current := 0
	for _, e := range entries {
		switch {
		case e.Status.Terminal():
			snap.CompletedFiles++
		case e.Status == StatusUploading:
			if snap.CurrentFile == "" {
				snap.CurrentFile = e.Filename
				current = e.Progress
			}
			snap.IsActive = true
		}
	}

	if snap.TotalFiles == 0 {
		return snap
	}

	overall := float64(snap.CompletedFiles) / float64(snap.TotalFiles) * 100
	if snap.CurrentFile != "" {
		overall += float64(current) / float64(snap.TotalFiles)
	}
	if overall > 100 {
		overall = 100
	}
	if overall < 0 {
		overall = 0
	}
	snap.OverallProgress = int(overall)
	return snap
}
