package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

func TestNextLegalTransitions(t *testing.T) {
	cases := []struct {
		current  models.EntryStatus
		stage    models.ReviewStage
		decision models.ReviewDecision
		want     models.EntryStatus
	}{
		{models.StatusSubmitted, models.StageModerator, models.DecisionApproved, models.StatusChairReview},
		{models.StatusSubmitted, models.StageModerator, models.DecisionRejected, models.StatusModeratorRejected},
		{models.StatusChairReview, models.StageChair, models.DecisionApproved, models.StatusHeadReview},
		{models.StatusChairReview, models.StageChair, models.DecisionRejected, models.StatusChairRejected},
		{models.StatusHeadReview, models.StageHead, models.DecisionApproved, models.StatusHeadApproved},
		{models.StatusHeadReview, models.StageHead, models.DecisionRejected, models.StatusHeadRejected},
	}
	for _, tc := range cases {
		got, err := Next(tc.current, tc.stage, tc.decision)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestNextRejectsStatusMismatch(t *testing.T) {
	for _, current := range []models.EntryStatus{
		models.StatusDraft,
		models.StatusChairReview,
		models.StatusHeadApproved,
		models.StatusModeratorRejected,
	} {
		_, err := Next(current, models.StageModerator, models.DecisionApproved)
		require.Error(t, err)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
	}
}

func TestNextRejectsUnknownStageAndDecision(t *testing.T) {
	_, err := Next(models.StatusSubmitted, models.ReviewStage("dean"), models.DecisionApproved)
	assert.Error(t, err)

	_, err = Next(models.StatusSubmitted, models.StageModerator, models.ReviewDecision("maybe"))
	assert.Error(t, err)
}

func TestComputeAwaiting(t *testing.T) {
	entries := []models.ProposalEntry{
		{Status: models.StatusSubmitted},
		{Status: models.StatusModeratorRejected},
	}
	mod, chair, head := ComputeAwaiting(entries)
	assert.True(t, mod)
	assert.False(t, chair)
	assert.False(t, head)

	entries[0].Status = models.StatusChairReview
	mod, chair, head = ComputeAwaiting(entries)
	assert.False(t, mod)
	assert.True(t, chair)
	assert.False(t, head)

	// Rejected entries never raise an awaiting flag again.
	entries[0].Status = models.StatusHeadRejected
	mod, chair, head = ComputeAwaiting(entries)
	assert.False(t, mod)
	assert.False(t, chair)
	assert.False(t, head)
}

func TestSetActive(t *testing.T) {
	assert.False(t, SetActive(nil))

	empty := &models.ProposalSet{}
	assert.True(t, SetActive(empty), "freshly created empty set blocks a new cycle")

	inReview := &models.ProposalSet{Entries: []models.ProposalEntry{{Status: models.StatusHeadReview}}}
	assert.True(t, SetActive(inReview))

	allTerminal := &models.ProposalSet{Entries: []models.ProposalEntry{
		{Status: models.StatusModeratorRejected},
		{Status: models.StatusHeadApproved},
	}}
	assert.False(t, SetActive(allTerminal))

	used := &models.ProposalSet{
		UsedAsThesisAt: "2026-01-10T00:00:00Z",
		Entries:        []models.ProposalEntry{{Status: models.StatusDraft}},
	}
	assert.False(t, SetActive(used))
}

func TestCanEditEntries(t *testing.T) {
	drafts := &models.ProposalSet{Entries: []models.ProposalEntry{
		{Status: models.StatusDraft},
		{Status: models.StatusDraft},
	}}
	assert.True(t, CanEditEntries(drafts))

	// One submitted entry freezes the whole set.
	drafts.Entries[1].Status = models.StatusSubmitted
	assert.False(t, CanEditEntries(drafts))
}

func TestSubmit(t *testing.T) {
	empty := &models.ProposalSet{}
	err := Submit(empty)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	set := &models.ProposalSet{Entries: []models.ProposalEntry{
		{Status: models.StatusDraft},
		{Status: models.StatusDraft},
	}}
	require.NoError(t, Submit(set))
	for _, e := range set.Entries {
		assert.Equal(t, models.StatusSubmitted, e.Status)
	}

	// Submitting twice is an invalid transition.
	err = Submit(set)
	require.Error(t, err)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestCanMarkAsThesis(t *testing.T) {
	set := &models.ProposalSet{}
	entry := &models.ProposalEntry{Status: models.StatusHeadApproved}
	require.NoError(t, CanMarkAsThesis(set, entry))

	notApproved := &models.ProposalEntry{Status: models.StatusHeadReview}
	err := CanMarkAsThesis(set, notApproved)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)

	used := &models.ProposalEntry{Status: models.StatusHeadApproved, UsedAsThesisAt: "2026-01-10T00:00:00Z"}
	err = CanMarkAsThesis(set, used)
	require.Error(t, err)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrAlreadyUsed.Code, appErr.Code)
}
