package models

// Thesis is the downstream record created when an approved proposal entry is
// consumed. Its lifecycle past creation is owned by other subsystems; the
// workflow core only stamps its id back onto the originating entry.
type Thesis struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	GroupPath   string   `json:"groupPath"`
	SourceSetID string   `json:"sourceSetId"`
	SourceEntry string   `json:"sourceEntryId"`
	CreatedBy   string   `json:"createdBy"`
	Chapters    []string `json:"chapters"`
	CreatedAt   string   `json:"createdAt"`
}
