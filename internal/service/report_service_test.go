package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/jobs"
	"github.com/noah-isme/thesis-workflow-api/pkg/storage"
)

type mockReportStore struct {
	jobs map[string]*models.ReportJob
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	if job.ID == "" {
		job.ID = "job-1"
	}
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		ts := *params.FinishedAt
		job.FinishedAt = &ts
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var result []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued {
			result = append(result, *job)
		}
	}
	return result, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	var result []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			result = append(result, *job)
		}
	}
	return result, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

func newTestReportService(t *testing.T, store *mockReportStore, events *mockEventStore) (*ReportService, *mockDispatcher) {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewReportService(store, events, local, signer, nil, zap.NewNop(), ReportServiceConfig{
		ResultTTL: time.Hour,
	})
	dispatcher := &mockDispatcher{}
	svc.SetDispatcher(dispatcher)
	return svc, dispatcher
}

func sampleReviewEvents() *mockEventStore {
	return &mockEventStore{events: []models.ReviewEvent{
		{
			ID:          "ev-1",
			SetID:       "set-1",
			EntryID:     "entry-1",
			GroupPath:   "years/2025-2026/departments/soc/courses/bsit/groups/group-7",
			Stage:       models.StageModerator,
			Decision:    models.DecisionApproved,
			ReviewerUID: "mod-1",
			CreatedAt:   time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:          "ev-2",
			SetID:       "set-1",
			EntryID:     "entry-1",
			GroupPath:   "years/2025-2026/departments/soc/courses/bsit/groups/group-7",
			Stage:       models.StageChair,
			Decision:    models.DecisionRejected,
			ReviewerUID: "chair-1",
			Notes:       "scope too wide",
			CreatedAt:   time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
		},
	}}
}

func TestReportCreateJob(t *testing.T) {
	store := &mockReportStore{}
	svc, dispatcher := newTestReportService(t, store, sampleReviewEvents())

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		GroupPath: "years/2025-2026/departments/soc/courses/bsit/groups/group-7",
		Format:    models.ReportFormatCSV,
	}, "head-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0].ID)
}

func TestReportCreateJobValidation(t *testing.T) {
	svc, _ := newTestReportService(t, &mockReportStore{}, sampleReviewEvents())

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Format: models.ReportFormatCSV}, "head-1")
	assert.Equal(t, "INCOMPLETE_PARAMETERS", errCode(t, err))

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{GroupPath: "g", Format: "xlsx"}, "head-1")
	assert.Equal(t, "VALIDATION_ERROR", errCode(t, err))
}

func TestReportProcessCSVAndDownload(t *testing.T) {
	store := &mockReportStore{}
	svc, _ := newTestReportService(t, store, sampleReviewEvents())

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		GroupPath: "years/2025-2026/departments/soc/courses/bsit/groups/group-7",
		Format:    models.ReportFormatCSV,
	}, "head-1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), jobs.Job{ID: resp.ID}))

	status, err := svc.GetStatus(context.Background(), resp.ID, "head-1", models.RoleHead)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, status.Status)
	require.NotNil(t, status.ResultURL)

	token := extractToken(*status.ResultURL)
	require.NotEmpty(t, token)

	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Set,Entry,Group,Stage,Decision,Reviewer,Notes,Decided At"))
	assert.Contains(t, string(content), "scope too wide")
	assert.Equal(t, models.ReportFormatCSV, download.Format)
}

func TestReportProcessPDF(t *testing.T) {
	store := &mockReportStore{}
	svc, _ := newTestReportService(t, store, sampleReviewEvents())

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		SetID:  "set-1",
		Format: models.ReportFormatPDF,
	}, "head-1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), jobs.Job{ID: resp.ID}))

	job, err := store.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, job.Status)
}

func TestReportStatusOwnership(t *testing.T) {
	store := &mockReportStore{}
	svc, _ := newTestReportService(t, store, sampleReviewEvents())

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{GroupPath: "g", Format: models.ReportFormatCSV}, "head-1")
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), resp.ID, "someone-else", models.RoleModerator)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.GetStatus(context.Background(), resp.ID, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
}

func TestReportResolveDownloadBadToken(t *testing.T) {
	svc, _ := newTestReportService(t, &mockReportStore{}, sampleReviewEvents())

	_, err := svc.ResolveDownload(context.Background(), "not.a.real.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
