package dto

import "github.com/noah-isme/thesis-workflow-api/internal/models"

// EntryPayload carries the student-editable fields of a proposal entry.
type EntryPayload struct {
	Title            string   `json:"title" validate:"required,min=5"`
	Description      string   `json:"description" validate:"required"`
	ProblemStatement string   `json:"problemStatement"`
	ExpectedOutcome  string   `json:"expectedOutcome"`
	Keywords         []string `json:"keywords"`
	Agenda           string   `json:"agenda"`
	ESG              string   `json:"esg"`
	SDG              string   `json:"sdg"`
}

// DecisionRequest captures a reviewer verdict on one entry.
type DecisionRequest struct {
	Stage    models.ReviewStage    `json:"stage" validate:"required,oneof=moderator chair head"`
	Decision models.ReviewDecision `json:"decision" validate:"required,oneof=approved rejected"`
	Notes    string                `json:"notes"`
}

// MarkAsThesisResponse returns the identifier of the created thesis record.
type MarkAsThesisResponse struct {
	ThesisID string             `json:"thesisId"`
	Set      models.ProposalSet `json:"set"`
}

// QueueItem is one reviewer work-queue row: the pending set plus its group
// address so the reviewer UI can navigate to it.
type QueueItem struct {
	GroupPath string             `json:"groupPath"`
	Set       models.ProposalSet `json:"set"`
}
