package dto

import "github.com/noah-isme/thesis-workflow-api/internal/models"

// ReportRequest captures POST /reports/proposals payload.
type ReportRequest struct {
	GroupPath string              `json:"groupPath" validate:"required"`
	SetID     string              `json:"setId"`
	Format    models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
