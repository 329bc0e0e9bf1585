// Package normalize converts raw JSON documents, including partially written
// or legacy-shaped ones, into typed proposal records. It never fails: a
// malformed field defaults to a neutral value so one corrupt historical entry
// cannot block rendering the rest of a set.
package normalize

import (
	"time"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/workflow"
)

// Set builds a typed ProposalSet from a raw document body.
func Set(raw map[string]any) models.ProposalSet {
	set := models.ProposalSet{
		ID:             Str(raw["id"]),
		GroupPath:      Str(raw["groupPath"]),
		SetNumber:      Int(raw["setNumber"]),
		CreatedBy:      Str(raw["createdBy"]),
		SubmittedBy:    Str(raw["submittedBy"]),
		SubmittedAt:    Timestamp(raw["submittedAt"]),
		UsedBy:         Str(raw["usedBy"]),
		UsedAsThesisAt: Timestamp(raw["usedAsThesisAt"]),
		CreatedAt:      Timestamp(raw["createdAt"]),
		UpdatedAt:      Timestamp(raw["updatedAt"]),
		Entries:        []models.ProposalEntry{},
	}

	if items, ok := raw["entries"].([]any); ok {
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				set.Entries = append(set.Entries, Entry(m))
			}
		}
	}

	// Awaiting flags are derived, never trusted from storage.
	set.AwaitingModerator, set.AwaitingChair, set.AwaitingHead = workflow.ComputeAwaiting(set.Entries)
	return set
}

// Entry builds a typed ProposalEntry from a raw entry body.
func Entry(raw map[string]any) models.ProposalEntry {
	entry := models.ProposalEntry{
		ID:               Str(raw["id"]),
		Title:            Str(raw["title"]),
		Description:      Str(raw["description"]),
		ProblemStatement: Str(raw["problemStatement"]),
		ExpectedOutcome:  Str(raw["expectedOutcome"]),
		Keywords:         StrSlice(raw["keywords"]),
		Agenda:           Str(raw["agenda"]),
		ESG:              Str(raw["esg"]),
		SDG:              Str(raw["sdg"]),
		ProposedBy:       Str(raw["proposedBy"]),
		UsedBy:           Str(raw["usedBy"]),
		UsedAsThesisAt:   Timestamp(raw["usedAsThesisAt"]),
		ThesisID:         Str(raw["thesisId"]),
		CreatedAt:        Timestamp(raw["createdAt"]),
		UpdatedAt:        Timestamp(raw["updatedAt"]),
	}

	entry.Status = status(raw["status"])
	entry.ModeratorDecision = decision(raw["moderatorDecision"])
	entry.ChairDecision = decision(raw["chairDecision"])
	entry.HeadDecision = decision(raw["headDecision"])
	return entry
}

// status maps whatever shape the stored status takes onto the canonical enum.
func status(v any) models.EntryStatus {
	switch s := v.(type) {
	case string:
		switch models.EntryStatus(s) {
		case models.StatusDraft, models.StatusSubmitted, models.StatusChairReview,
			models.StatusHeadReview, models.StatusHeadApproved,
			models.StatusModeratorRejected, models.StatusChairRejected, models.StatusHeadRejected:
			return models.EntryStatus(s)
		}
		// Pre-migration flat aliases.
		switch s {
		case "pending", "for_review":
			return models.StatusSubmitted
		case "approved":
			return models.StatusHeadApproved
		case "rejected":
			return models.StatusHeadRejected
		}
		return models.StatusDraft
	case map[string]any:
		return legacyStatus(s)
	default:
		return models.StatusDraft
	}
}

// legacyStatus maps the old 2-stage {moderator, head} object onto the 3-stage
// pipeline. The legacy flow had no chair, so a moderator approval lands the
// entry directly in head review.
func legacyStatus(m map[string]any) models.EntryStatus {
	moderator := Str(m["moderator"])
	head := Str(m["head"])

	switch moderator {
	case "rejected":
		return models.StatusModeratorRejected
	case "approved":
		switch head {
		case "approved":
			return models.StatusHeadApproved
		case "rejected":
			return models.StatusHeadRejected
		default:
			return models.StatusHeadReview
		}
	case "pending":
		return models.StatusSubmitted
	default:
		return models.StatusDraft
	}
}

func decision(v any) *models.DecisionRecord {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	rec := &models.DecisionRecord{
		ReviewerUID: Str(m["reviewerUid"]),
		DecidedAt:   Timestamp(m["decidedAt"]),
		Notes:       Str(m["notes"]),
	}
	switch Str(m["decision"]) {
	case string(models.DecisionApproved):
		rec.Decision = models.DecisionApproved
	case string(models.DecisionRejected):
		rec.Decision = models.DecisionRejected
	default:
		return nil
	}
	return rec
}

// Str coerces a raw value into a string, defaulting to "".
func Str(v any) string {
	s, _ := v.(string)
	return s
}

// Int coerces a raw value into an int. JSON numbers decode as float64.
func Int(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

// StrSlice coerces a raw value into a string slice, never nil.
func StrSlice(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Timestamp coerces the timestamp representations seen in stored records into
// a single RFC3339 UTC string: RFC3339 strings pass through re-encoded,
// native times are formatted, epoch milliseconds and {seconds,nanos} objects
// are converted, anything else becomes "".
func Timestamp(v any) string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return ""
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC().Format(time.RFC3339)
		}
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		if t <= 0 {
			return ""
		}
		return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339)
	case int64:
		if t <= 0 {
			return ""
		}
		return time.UnixMilli(t).UTC().Format(time.RFC3339)
	case map[string]any:
		secs := Int(t["seconds"])
		if secs <= 0 {
			return ""
		}
		return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339)
	default:
		return ""
	}
}
