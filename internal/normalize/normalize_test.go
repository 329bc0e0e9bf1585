package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

func TestSetDefaultsForEmptyDocument(t *testing.T) {
	set := Set(map[string]any{})
	assert.Empty(t, set.ID)
	assert.NotNil(t, set.Entries)
	assert.Empty(t, set.Entries)
	assert.False(t, set.AwaitingModerator)
	assert.False(t, set.AwaitingChair)
	assert.False(t, set.AwaitingHead)
	assert.Empty(t, set.CreatedAt)
}

func TestSetDerivesAwaitingFlags(t *testing.T) {
	set := Set(map[string]any{
		"id": "set-1",
		// Stored flags are stale on purpose; derived values must win.
		"awaitingModerator": false,
		"entries": []any{
			map[string]any{"id": "a", "status": "submitted"},
			map[string]any{"id": "b", "status": "chair_review"},
		},
	})
	assert.True(t, set.AwaitingModerator)
	assert.True(t, set.AwaitingChair)
	assert.False(t, set.AwaitingHead)
}

func TestEntryDefaults(t *testing.T) {
	entry := Entry(map[string]any{"title": "Adaptive Flood Sensors"})
	assert.Equal(t, models.StatusDraft, entry.Status)
	assert.Equal(t, "Adaptive Flood Sensors", entry.Title)
	assert.NotNil(t, entry.Keywords)
	assert.Empty(t, entry.Keywords)
	assert.Nil(t, entry.ModeratorDecision)
}

func TestEntryMalformedFieldsNeverPanic(t *testing.T) {
	entry := Entry(map[string]any{
		"title":             42,
		"keywords":          "not-a-list",
		"status":            []any{"weird"},
		"moderatorDecision": "approved",
		"createdAt":         map[string]any{"bogus": true},
	})
	assert.Empty(t, entry.Title)
	assert.Empty(t, entry.Keywords)
	assert.Equal(t, models.StatusDraft, entry.Status)
	assert.Nil(t, entry.ModeratorDecision)
	assert.Empty(t, entry.CreatedAt)
}

func TestStatusFlatAliases(t *testing.T) {
	cases := map[string]models.EntryStatus{
		"draft":              models.StatusDraft,
		"submitted":          models.StatusSubmitted,
		"pending":            models.StatusSubmitted,
		"for_review":         models.StatusSubmitted,
		"chair_review":       models.StatusChairReview,
		"approved":           models.StatusHeadApproved,
		"rejected":           models.StatusHeadRejected,
		"moderator_rejected": models.StatusModeratorRejected,
		"garbage":            models.StatusDraft,
	}
	for raw, want := range cases {
		entry := Entry(map[string]any{"status": raw})
		assert.Equal(t, want, entry.Status, raw)
	}
}

func TestStatusLegacyNestedShape(t *testing.T) {
	cases := []struct {
		raw  map[string]any
		want models.EntryStatus
	}{
		{map[string]any{"moderator": "pending"}, models.StatusSubmitted},
		{map[string]any{"moderator": "rejected"}, models.StatusModeratorRejected},
		{map[string]any{"moderator": "approved", "head": "pending"}, models.StatusHeadReview},
		{map[string]any{"moderator": "approved", "head": "approved"}, models.StatusHeadApproved},
		{map[string]any{"moderator": "approved", "head": "rejected"}, models.StatusHeadRejected},
		{map[string]any{}, models.StatusDraft},
	}
	for _, tc := range cases {
		entry := Entry(map[string]any{"status": tc.raw})
		assert.Equal(t, tc.want, entry.Status)
	}
}

func TestDecisionRecord(t *testing.T) {
	entry := Entry(map[string]any{
		"status": "chair_review",
		"moderatorDecision": map[string]any{
			"reviewerUid": "mod-1",
			"decision":    "approved",
			"decidedAt":   "2026-02-01T08:30:00Z",
			"notes":       "solid scope",
		},
	})
	require.NotNil(t, entry.ModeratorDecision)
	assert.Equal(t, models.DecisionApproved, entry.ModeratorDecision.Decision)
	assert.Equal(t, "mod-1", entry.ModeratorDecision.ReviewerUID)
	assert.Equal(t, "2026-02-01T08:30:00Z", entry.ModeratorDecision.DecidedAt)

	// A decision object without a recognizable verdict is dropped.
	entry = Entry(map[string]any{
		"moderatorDecision": map[string]any{"reviewerUid": "mod-1", "decision": "undecided"},
	})
	assert.Nil(t, entry.ModeratorDecision)
}

func TestTimestampCoercion(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-15T10:00:00Z", Timestamp("2026-03-15T10:00:00Z"))
	assert.Equal(t, "2026-03-15T10:00:00Z", Timestamp("2026-03-15T18:00:00+08:00"))
	assert.Equal(t, "2026-03-15T10:00:00Z", Timestamp(at))
	assert.Equal(t, "2026-03-15T10:00:00Z", Timestamp(float64(at.UnixMilli())))
	assert.Equal(t, "2026-03-15T10:00:00Z", Timestamp(map[string]any{"seconds": float64(at.Unix())}))

	assert.Empty(t, Timestamp(nil))
	assert.Empty(t, Timestamp(""))
	assert.Empty(t, Timestamp("yesterday"))
	assert.Empty(t, Timestamp(float64(0)))
	assert.Empty(t, Timestamp(map[string]any{"nanos": 12}))
}
