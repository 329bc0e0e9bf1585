// Package workflow holds the pure transition rules of the proposal review
// pipeline: draft → submitted → moderator → chair → head, with per-stage
// rejection and the one-way mark-as-thesis consumption of a head-approved
// entry. It performs no I/O and sees only the canonical status enum.
package workflow

import (
	"fmt"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

// expected maps each review stage to the status an entry must hold before
// that stage may record a decision.
var expected = map[models.ReviewStage]models.EntryStatus{
	models.StageModerator: models.StatusSubmitted,
	models.StageChair:     models.StatusChairReview,
	models.StageHead:      models.StatusHeadReview,
}

var onApprove = map[models.ReviewStage]models.EntryStatus{
	models.StageModerator: models.StatusChairReview,
	models.StageChair:     models.StatusHeadReview,
	models.StageHead:      models.StatusHeadApproved,
}

var onReject = map[models.ReviewStage]models.EntryStatus{
	models.StageModerator: models.StatusModeratorRejected,
	models.StageChair:     models.StatusChairRejected,
	models.StageHead:      models.StatusHeadRejected,
}

// ExpectedStatus returns the status required before the stage can act.
func ExpectedStatus(stage models.ReviewStage) (models.EntryStatus, bool) {
	s, ok := expected[stage]
	return s, ok
}

// Next computes the status an entry moves to when the given stage records the
// given decision. The current status must exactly match the stage's expected
// incoming status, otherwise an invalid-transition error is returned and no
// state is produced.
func Next(current models.EntryStatus, stage models.ReviewStage, decision models.ReviewDecision) (models.EntryStatus, error) {
	want, ok := expected[stage]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown review stage %q", stage))
	}
	if current != want {
		return "", appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("%s decision requires status %q, entry is %q", stage, want, current))
	}
	switch decision {
	case models.DecisionApproved:
		return onApprove[stage], nil
	case models.DecisionRejected:
		return onReject[stage], nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown decision %q", decision))
	}
}

// IsRejected reports whether the status is one of the stage rejections.
func IsRejected(status models.EntryStatus) bool {
	switch status {
	case models.StatusModeratorRejected, models.StatusChairRejected, models.StatusHeadRejected:
		return true
	}
	return false
}

// IsReviewTerminal reports whether an entry can see no further review
// decisions. head_approved is terminal for review purposes even though it can
// still be consumed as a thesis.
func IsReviewTerminal(status models.EntryStatus) bool {
	return IsRejected(status) || status == models.StatusHeadApproved
}

// InPipeline reports whether an entry is submitted and awaiting some
// reviewer.
func InPipeline(status models.EntryStatus) bool {
	switch status {
	case models.StatusSubmitted, models.StatusChairReview, models.StatusHeadReview:
		return true
	}
	return false
}

// ComputeAwaiting derives the per-stage pending flags from the entries. The
// flags are never stored independently; every mutation recomputes them.
func ComputeAwaiting(entries []models.ProposalEntry) (moderator, chair, head bool) {
	for _, e := range entries {
		switch e.Status {
		case models.StatusSubmitted:
			moderator = true
		case models.StatusChairReview:
			chair = true
		case models.StatusHeadReview:
			head = true
		}
	}
	return moderator, chair, head
}

// SetActive reports whether the set still blocks creation of a new cycle: it
// has not been consumed as a thesis and is in draft or under review. A freshly
// created empty set counts as active.
func SetActive(set *models.ProposalSet) bool {
	if set == nil || set.Used() {
		return false
	}
	if len(set.Entries) == 0 {
		return true
	}
	for _, e := range set.Entries {
		if e.Status == models.StatusDraft || InPipeline(e.Status) {
			return true
		}
	}
	return false
}

// CanEditEntries reports whether draft edits are still allowed. Editing is
// all-or-nothing per cycle: once any entry has entered the pipeline the whole
// set is frozen for the students.
func CanEditEntries(set *models.ProposalSet) bool {
	if set == nil || set.Used() {
		return false
	}
	for _, e := range set.Entries {
		if e.Status != models.StatusDraft {
			return false
		}
	}
	return true
}

// Submit flips every draft entry to submitted. It fails when the set has no
// entries or any entry already left draft.
func Submit(set *models.ProposalSet) error {
	if len(set.Entries) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "add at least one proposal entry before submitting")
	}
	if !CanEditEntries(set) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "set has already been submitted")
	}
	for i := range set.Entries {
		set.Entries[i].Status = models.StatusSubmitted
	}
	return nil
}

// CanMarkAsThesis validates the one-way consumption precondition.
func CanMarkAsThesis(set *models.ProposalSet, entry *models.ProposalEntry) error {
	if entry.UsedAsThesisAt != "" || set.Used() {
		return appErrors.Clone(appErrors.ErrAlreadyUsed, "proposal set already produced a thesis")
	}
	if entry.Status != models.StatusHeadApproved {
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("mark as thesis requires status %q, entry is %q", models.StatusHeadApproved, entry.Status))
	}
	return nil
}
