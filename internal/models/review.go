package models

import "time"

// ReviewEvent is an append-only audit record of a reviewer decision. Rows are
// written once and never mutated or deleted.
type ReviewEvent struct {
	ID          string         `db:"id" json:"id"`
	SetID       string         `db:"set_id" json:"setId"`
	EntryID     string         `db:"entry_id" json:"entryId"`
	GroupPath   string         `db:"group_path" json:"groupPath"`
	Stage       ReviewStage    `db:"stage" json:"stage"`
	Decision    ReviewDecision `db:"decision" json:"decision"`
	ReviewerUID string         `db:"reviewer_uid" json:"reviewerUid"`
	Notes       string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// ReviewEventFilter constrains review history queries.
type ReviewEventFilter struct {
	SetID     string
	EntryID   string
	GroupPath string
	Stage     ReviewStage
	Limit     int
	Offset    int
}
