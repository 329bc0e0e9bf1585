package models

// EntryStatus is the canonical workflow state of a proposal entry. Legacy
// record shapes are mapped onto this enum by the normalizer so downstream
// code only ever sees these values.
type EntryStatus string

const (
	StatusDraft             EntryStatus = "draft"
	StatusSubmitted         EntryStatus = "submitted"
	StatusChairReview       EntryStatus = "chair_review"
	StatusHeadReview        EntryStatus = "head_review"
	StatusHeadApproved      EntryStatus = "head_approved"
	StatusModeratorRejected EntryStatus = "moderator_rejected"
	StatusChairRejected     EntryStatus = "chair_rejected"
	StatusHeadRejected      EntryStatus = "head_rejected"
)

// ReviewStage identifies a reviewer role in the approval pipeline.
type ReviewStage string

const (
	StageModerator ReviewStage = "moderator"
	StageChair     ReviewStage = "chair"
	StageHead      ReviewStage = "head"
)

// ReviewDecision is the verdict recorded at a review stage.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// DecisionRecord captures one reviewer's verdict on an entry.
type DecisionRecord struct {
	ReviewerUID string         `json:"reviewerUid"`
	Decision    ReviewDecision `json:"decision"`
	DecidedAt   string         `json:"decidedAt"`
	Notes       string         `json:"notes,omitempty"`
}

// ProposalEntry is one candidate thesis topic inside a set. Timestamps are
// stored as RFC3339 strings, matching the document representation.
type ProposalEntry struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	ProblemStatement  string          `json:"problemStatement,omitempty"`
	ExpectedOutcome   string          `json:"expectedOutcome,omitempty"`
	Keywords          []string        `json:"keywords"`
	Agenda            string          `json:"agenda,omitempty"`
	ESG               string          `json:"esg,omitempty"`
	SDG               string          `json:"sdg,omitempty"`
	ProposedBy        string          `json:"proposedBy"`
	Status            EntryStatus     `json:"status"`
	ModeratorDecision *DecisionRecord `json:"moderatorDecision,omitempty"`
	ChairDecision     *DecisionRecord `json:"chairDecision,omitempty"`
	HeadDecision      *DecisionRecord `json:"headDecision,omitempty"`
	UsedBy            string          `json:"usedBy,omitempty"`
	UsedAsThesisAt    string          `json:"usedAsThesisAt,omitempty"`
	ThesisID          string          `json:"thesisId,omitempty"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
}

// ProposalSet is one review cycle's batch of candidate topics for a group.
type ProposalSet struct {
	ID                string          `json:"id"`
	GroupPath         string          `json:"groupPath"`
	SetNumber         int             `json:"setNumber"`
	CreatedBy         string          `json:"createdBy"`
	Entries           []ProposalEntry `json:"entries"`
	AwaitingModerator bool            `json:"awaitingModerator"`
	AwaitingChair     bool            `json:"awaitingChair"`
	AwaitingHead      bool            `json:"awaitingHead"`
	SubmittedBy       string          `json:"submittedBy,omitempty"`
	SubmittedAt       string          `json:"submittedAt,omitempty"`
	UsedBy            string          `json:"usedBy,omitempty"`
	UsedAsThesisAt    string          `json:"usedAsThesisAt,omitempty"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
}

// Entry returns the entry with the given id, or nil.
func (s *ProposalSet) Entry(entryID string) *ProposalEntry {
	for i := range s.Entries {
		if s.Entries[i].ID == entryID {
			return &s.Entries[i]
		}
	}
	return nil
}

// Used reports whether one of the set's entries was consumed as a thesis.
func (s *ProposalSet) Used() bool {
	return s.UsedAsThesisAt != ""
}
