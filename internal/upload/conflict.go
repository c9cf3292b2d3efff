package upload

import "fmt"

type ConflictType string

const (
	ConflictTypeIdenticalContent  ConflictType = "identical_md5"
	ConflictTypeVisuallyIdentical ConflictType = "visually_identical"
	ConflictTypeSimilarMetadata   ConflictType = "similar_metadata"
)

type Action string

const (
	ActionKeepExisting   Action = "keep_existing"
	ActionReplaceWithNew Action = "replace_with_new"
	ActionKeepBoth       Action = "keep_both"
)

func (a Action) Valid() bool {
	switch a {
	case ActionKeepExisting, ActionReplaceWithNew, ActionKeepBoth:
		return true
	}
	return false
}

// ConflictRecord describes one potential duplicate reported by the photo API.
// The engine preserves it unmodified for display; classification, similarity
// and the suggested action are server output and never recomputed locally.
type ConflictRecord struct {
	ID              string        `json:"id"`
	ExistingAsset   ExistingAsset `json:"existing_photo"`
	NewAsset        NewAsset      `json:"new_file"`
	ConflictType    ConflictType  `json:"conflict_type"`
	Similarity      float64       `json:"similarity"` // 0-100
	SuggestedAction Action        `json:"suggested_action"`
	Reasoning       string        `json:"reasoning"`
}

// ExistingAsset identifies the already-stored file a new upload collides with.
type ExistingAsset struct {
	ID             string         `json:"id"`
	FilePath       string         `json:"filePath"`
	Tier           string         `json:"tier"`
	FileHash       string         `json:"fileHash"`
	PerceptualHash string         `json:"perceptualHash,omitempty"`
	FileSize       int64          `json:"fileSize"`
	CreatedAt      string         `json:"createdAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	MediaAsset     MediaAssetRef  `json:"mediaAsset"`
}

type MediaAssetRef struct {
	OriginalFilename string `json:"originalFilename"`
}

// NewAsset describes the candidate file the server is holding in temp storage.
type NewAsset struct {
	TempPath         string         `json:"tempPath"`
	OriginalFilename string         `json:"originalFilename"`
	FileHash         string         `json:"fileHash"`
	PerceptualHash   string         `json:"perceptualHash,omitempty"`
	FileSize         int64          `json:"fileSize"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Resolution is one durable-resolution request tuple for the photo API.
type Resolution struct {
	ConflictID string         `json:"conflict_id"`
	Action     Action         `json:"action"`
	Conflict   ConflictRecord `json:"conflict"`
}

// ResolutionOutcome is the per-batch result of a durable resolution call.
type ResolutionOutcome struct {
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

func resolutionMessage(action Action) string {
	switch action {
	case ActionKeepExisting:
		return "Conflict resolved: keep existing file"
	case ActionReplaceWithNew:
		return "Conflict resolved: replace with new file"
	case ActionKeepBoth:
		return "Conflict resolved: keep both files"
	}
	return fmt.Sprintf("Conflict resolved: %s", action)
}
