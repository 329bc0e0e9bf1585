package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/export"
	"github.com/noah-isme/thesis-workflow-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ReportService runs review-history exports as background jobs: a request
// creates a QUEUED row, a worker renders the file and stores it locally, and
// the result is fetched through a signed one-off download URL.
type ReportService struct {
	repo    reportJobStore
	events  reviewEventStore
	queue   jobDispatcher
	storage exportStorage
	signer  downloadSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	DownloadPath    string
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, events reviewEventStore, storage exportStorage, signer downloadSigner, metrics *MetricsService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/reports/download"
	}
	return &ReportService{
		repo:    repo,
		events:  events,
		storage: storage,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// SetDispatcher wires the worker queue. Called once during startup after the
// queue is built with Process as its handler.
func (s *ReportService) SetDispatcher(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob validates the request, persists the job, and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error) {
	if req.GroupPath == "" && req.SetID == "" {
		return nil, appErrors.Clone(appErrors.ErrIncompleteParameters, "group path or set id is required")
	}
	if req.Format != models.ReportFormatCSV && req.Format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", req.Format))
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report worker queue not started")
	}

	job := &models.ReportJob{
		Type:      models.ReportTypeReviewHistory,
		Params:    models.ReportJobParams{GroupPath: req.GroupPath, SetID: req.SetID, Format: req.Format},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// Process is the queue handler: it renders the export file and finalizes the
// job row. A returned error triggers the queue's retry policy.
func (s *ReportService) Process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", queued.ID, err)
	}
	if job.Status == models.ReportStatusFinished {
		return nil
	}

	processing := models.ReportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing}); err != nil {
		s.logger.Warn("failed to mark report job processing", zap.String("job_id", job.ID), zap.Error(err))
	}

	dataset, err := s.buildDataset(ctx, job.Params)
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Proposal Review History")
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	relPath := fmt.Sprintf("reviews/%s/review-history.%s", job.ID, job.Params.Format)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	finished := models.ReportStatusFinished
	resultURL := fmt.Sprintf("%s/%s", s.cfg.DownloadPath, token)
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finalize report job %s: %w", job.ID, err)
	}
	s.metrics.ObserveReportJob(models.ReportStatusFinished)
	s.logger.Info("report job finished",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Params.Format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return nil
}

// GetStatus exposes job metadata, enforcing ownership for non-admin callers.
func (s *ReportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ReportStatusResponse{
		ID:     job.ID,
		Status: job.Status,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("report cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.ResultURL == nil {
			continue
		}
		token := extractToken(*job.ResultURL)
		if token == "" {
			continue
		}
		_, relPath, _, err := s.signer.Parse(token, true)
		if err != nil {
			continue
		}
		if err := s.storage.Delete(relPath); err != nil {
			s.logger.Warn("failed to delete expired export", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		empty := ""
		if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{ResultURL: &empty}); err != nil {
			s.logger.Warn("failed to clear expired result url", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (s *ReportService) markFailed(ctx context.Context, jobID, message string) {
	failed := models.ReportStatusFailed
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark report job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	s.metrics.ObserveReportJob(models.ReportStatusFailed)
}

func (s *ReportService) buildDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, error) {
	filter := models.ReviewEventFilter{GroupPath: params.GroupPath, SetID: params.SetID, Limit: 500}
	events, err := s.events.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load review events: %w", err)
	}

	headers := []string{"Set", "Entry", "Group", "Stage", "Decision", "Reviewer", "Notes", "Decided At"}
	rows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, map[string]string{
			"Set":        e.SetID,
			"Entry":      e.EntryID,
			"Group":      e.GroupPath,
			"Stage":      string(e.Stage),
			"Decision":   string(e.Decision),
			"Reviewer":   e.ReviewerUID,
			"Notes":      e.Notes,
			"Decided At": e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func extractToken(resultURL string) string {
	idx := strings.LastIndex(resultURL, "/")
	if idx < 0 || idx == len(resultURL)-1 {
		return ""
	}
	return resultURL[idx+1:]
}
