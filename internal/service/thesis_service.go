package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/docpath"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/normalize"
	"github.com/noah-isme/thesis-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

// defaultChapters is the manuscript scaffold every new thesis starts with.
var defaultChapters = []string{
	"Chapter 1: Introduction",
	"Chapter 2: Review of Related Literature",
	"Chapter 3: Methodology",
	"Chapter 4: Results and Discussion",
	"Chapter 5: Conclusion and Recommendations",
}

// ThesisService creates and reads thesis records in the group's theses
// collection. It is the downstream consumer of mark-as-thesis.
type ThesisService struct {
	docs   documentStore
	clock  clock.Clock
	logger *zap.Logger
}

// NewThesisService constructs the service.
func NewThesisService(docs documentStore, logger *zap.Logger, opts ...ThesisServiceOption) *ThesisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ThesisService{docs: docs, clock: clock.System(), logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ThesisServiceOption configures the service.
type ThesisServiceOption func(*ThesisService)

// WithThesisClock overrides the timestamp source, used in tests.
func WithThesisClock(c clock.Clock) ThesisServiceOption {
	return func(s *ThesisService) {
		if c != nil {
			s.clock = c
		}
	}
}

// CreateFromProposal materializes a thesis record from an approved proposal
// entry and returns its id. The caller stamps the id back onto the entry.
func (s *ThesisService) CreateFromProposal(ctx context.Context, pctx docpath.Context, set *models.ProposalSet, entry *models.ProposalEntry) (string, error) {
	if set == nil || entry == nil {
		return "", appErrors.Clone(appErrors.ErrIncompleteParameters, "proposal set and entry are required")
	}

	thesis := models.Thesis{
		ID:          uuid.NewString(),
		Title:       entry.Title,
		GroupPath:   docpath.GroupPath(pctx),
		SourceSetID: set.ID,
		SourceEntry: entry.ID,
		CreatedBy:   entry.ProposedBy,
		Chapters:    defaultChapters,
		CreatedAt:   s.clock.ISO(),
	}

	doc, err := encodeThesis(&thesis)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode thesis record")
	}
	path := docpath.GroupPath(pctx) + "/" + docpath.ColTheses + "/" + thesis.ID
	if err := s.docs.Put(ctx, path, doc); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write thesis record")
	}

	s.logger.Info("thesis created from proposal",
		zap.String("thesis_id", thesis.ID),
		zap.String("set_id", set.ID),
		zap.String("entry_id", entry.ID),
	)
	return thesis.ID, nil
}

// Get loads one thesis record.
func (s *ThesisService) Get(ctx context.Context, pctx docpath.Context, thesisID string) (*models.Thesis, error) {
	if thesisID == "" {
		return nil, appErrors.Clone(appErrors.ErrIncompleteParameters, "thesis id is required")
	}
	path := docpath.GroupPath(pctx) + "/" + docpath.ColTheses + "/" + thesisID
	raw, err := s.docs.Get(ctx, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}

	thesis := models.Thesis{
		ID:          normalize.Str(raw["id"]),
		Title:       normalize.Str(raw["title"]),
		GroupPath:   normalize.Str(raw["groupPath"]),
		SourceSetID: normalize.Str(raw["sourceSetId"]),
		SourceEntry: normalize.Str(raw["sourceEntryId"]),
		CreatedBy:   normalize.Str(raw["createdBy"]),
		Chapters:    normalize.StrSlice(raw["chapters"]),
		CreatedAt:   normalize.Timestamp(raw["createdAt"]),
	}
	return &thesis, nil
}

// List returns the group's thesis records.
func (s *ThesisService) List(ctx context.Context, pctx docpath.Context) ([]models.Thesis, error) {
	docs, err := s.docs.ListCollection(ctx, docpath.GroupPath(pctx)+"/"+docpath.ColTheses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list theses")
	}
	theses := make([]models.Thesis, 0, len(docs))
	for _, raw := range docs {
		theses = append(theses, models.Thesis{
			ID:          normalize.Str(raw["id"]),
			Title:       normalize.Str(raw["title"]),
			GroupPath:   normalize.Str(raw["groupPath"]),
			SourceSetID: normalize.Str(raw["sourceSetId"]),
			SourceEntry: normalize.Str(raw["sourceEntryId"]),
			CreatedBy:   normalize.Str(raw["createdBy"]),
			Chapters:    normalize.StrSlice(raw["chapters"]),
			CreatedAt:   normalize.Timestamp(raw["createdAt"]),
		})
	}
	return theses, nil
}

func encodeThesis(thesis *models.Thesis) (map[string]any, error) {
	payload, err := json.Marshal(thesis)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	stripNulls(doc)
	return doc, nil
}
