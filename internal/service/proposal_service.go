package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/docpath"
	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/normalize"
	"github.com/noah-isme/thesis-workflow-api/internal/workflow"
	"github.com/noah-isme/thesis-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

type documentStore interface {
	Get(ctx context.Context, path string) (map[string]any, error)
	Put(ctx context.Context, path string, doc map[string]any) error
	ListCollection(ctx context.Context, collectionPath string) ([]map[string]any, error)
	CollectionGroup(ctx context.Context, collection, boolField string) ([]map[string]any, error)
}

type reviewEventStore interface {
	Append(ctx context.Context, event *models.ReviewEvent) error
	List(ctx context.Context, filter models.ReviewEventFilter) ([]models.ReviewEvent, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// changeNotifier pushes change notifications to the realtime broker so
// subscribers re-query their snapshots. Notification failures never fail the
// mutation that triggered them.
type changeNotifier interface {
	NotifyGroup(ctx context.Context, groupPath string) error
	NotifyQueue(ctx context.Context, stage models.ReviewStage) error
}

// thesisCreator is the downstream collaborator invoked once per successful
// mark-as-thesis.
type thesisCreator interface {
	CreateFromProposal(ctx context.Context, pctx docpath.Context, set *models.ProposalSet, entry *models.ProposalEntry) (string, error)
}

type queueCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context, stage models.ReviewStage)
}

// ProposalConfig bounds the workflow.
type ProposalConfig struct {
	MaxEntriesPerSet int
	MaxSetsPerGroup  int
}

// ProposalService orchestrates the topic-proposal review workflow: path
// resolution, normalization, state-machine validation, whole-document writes,
// audit, and realtime notification.
type ProposalService struct {
	docs     documentStore
	events   reviewEventStore
	audit    auditLogger
	notifier changeNotifier
	thesis   thesisCreator
	queues   queueCache
	clock    clock.Clock
	config   ProposalConfig
	logger   *zap.Logger
}

// ProposalServiceOption configures the service.
type ProposalServiceOption func(*ProposalService)

// WithThesisCreator installs the downstream thesis collaborator.
func WithThesisCreator(creator thesisCreator) ProposalServiceOption {
	return func(s *ProposalService) {
		if creator != nil {
			s.thesis = creator
		}
	}
}

// WithChangeNotifier installs the realtime notifier.
func WithChangeNotifier(notifier changeNotifier) ProposalServiceOption {
	return func(s *ProposalService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithQueueCache installs the reviewer-queue snapshot cache.
func WithQueueCache(cache queueCache) ProposalServiceOption {
	return func(s *ProposalService) {
		if cache != nil {
			s.queues = cache
		}
	}
}

// WithClock overrides the timestamp source, used in tests.
func WithClock(c clock.Clock) ProposalServiceOption {
	return func(s *ProposalService) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewProposalService constructs the service with defaults.
func NewProposalService(docs documentStore, events reviewEventStore, audit auditLogger, cfg ProposalConfig, logger *zap.Logger, opts ...ProposalServiceOption) *ProposalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxEntriesPerSet <= 0 {
		cfg.MaxEntriesPerSet = 3
	}
	svc := &ProposalService{
		docs:   docs,
		events: events,
		audit:  audit,
		clock:  clock.System(),
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateSet opens a new review cycle for the group. Creation is refused while
// any earlier set for the group is still in draft or under review.
func (s *ProposalService) CreateSet(ctx context.Context, pctx docpath.Context, userID string) (*models.ProposalSet, error) {
	if pctx.GroupID == "" || userID == "" {
		return nil, appErrors.Clone(appErrors.ErrIncompleteParameters, "group id and user id are required")
	}

	existing, err := s.listSets(ctx, pctx)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if workflow.SetActive(&existing[i]) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateActiveRequest,
				fmt.Sprintf("proposal set %d for this group is still active", existing[i].SetNumber))
		}
	}
	if s.config.MaxSetsPerGroup > 0 && len(existing) >= s.config.MaxSetsPerGroup {
		return nil, appErrors.Clone(appErrors.ErrLimitExceeded,
			fmt.Sprintf("group reached the maximum of %d proposal cycles", s.config.MaxSetsPerGroup))
	}

	now := s.clock.ISO()
	set := &models.ProposalSet{
		ID:        uuid.NewString(),
		GroupPath: docpath.GroupPath(pctx),
		SetNumber: len(existing) + 1,
		CreatedBy: userID,
		Entries:   []models.ProposalEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeSet(ctx, pctx, set); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, userID, models.AuditActionSetCreate, set.GroupPath, set.ID, set)
	s.notifyGroup(ctx, set.GroupPath)
	return set, nil
}

// GetSet loads and normalizes one proposal set.
func (s *ProposalService) GetSet(ctx context.Context, pctx docpath.Context, setID string) (*models.ProposalSet, error) {
	if setID == "" {
		return nil, appErrors.Clone(appErrors.ErrIncompleteParameters, "set id is required")
	}
	raw, err := s.docs.Get(ctx, docpath.ProposalDoc(pctx, setID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("proposal set %s not found", setID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal set")
	}
	set := normalize.Set(raw)
	return &set, nil
}

// ListSets returns the group's proposal sets newest first.
func (s *ProposalService) ListSets(ctx context.Context, pctx docpath.Context) ([]models.ProposalSet, error) {
	sets, err := s.listSets(ctx, pctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].CreatedAt > sets[j].CreatedAt
	})
	return sets, nil
}

// AddEntry appends a draft entry to a set that is still editable.
func (s *ProposalService) AddEntry(ctx context.Context, pctx docpath.Context, setID string, payload dto.EntryPayload, userID string) (*models.ProposalSet, error) {
	set, err := s.GetSet(ctx, pctx, setID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanEditEntries(set) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entries can only be added while the set is in draft")
	}
	if len(set.Entries) >= s.config.MaxEntriesPerSet {
		return nil, appErrors.Clone(appErrors.ErrLimitExceeded,
			fmt.Sprintf("a proposal set holds at most %d entries", s.config.MaxEntriesPerSet))
	}

	now := s.clock.ISO()
	entry := models.ProposalEntry{
		ID:               uuid.NewString(),
		Title:            payload.Title,
		Description:      payload.Description,
		ProblemStatement: payload.ProblemStatement,
		ExpectedOutcome:  payload.ExpectedOutcome,
		Keywords:         payload.Keywords,
		Agenda:           payload.Agenda,
		ESG:              payload.ESG,
		SDG:              payload.SDG,
		ProposedBy:       userID,
		Status:           models.StatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if entry.Keywords == nil {
		entry.Keywords = []string{}
	}
	set.Entries = append(set.Entries, entry)
	set.UpdatedAt = now

	if err := s.writeSet(ctx, pctx, set); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, userID, models.AuditActionEntryUpsert, set.GroupPath, entry.ID, entry)
	s.notifyGroup(ctx, set.GroupPath)
	return set, nil
}

// UpdateEntry replaces the editable fields of a draft entry.
func (s *ProposalService) UpdateEntry(ctx context.Context, pctx docpath.Context, setID, entryID string, payload dto.EntryPayload, userID string) (*models.ProposalSet, error) {
	set, err := s.GetSet(ctx, pctx, setID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanEditEntries(set) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entries can only be edited while the set is in draft")
	}
	entry := set.Entry(entryID)
	if entry == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("entry %s not found in set %s", entryID, setID))
	}

	entry.Title = payload.Title
	entry.Description = payload.Description
	entry.ProblemStatement = payload.ProblemStatement
	entry.ExpectedOutcome = payload.ExpectedOutcome
	entry.Keywords = payload.Keywords
	if entry.Keywords == nil {
		entry.Keywords = []string{}
	}
	entry.Agenda = payload.Agenda
	entry.ESG = payload.ESG
	entry.SDG = payload.SDG
	entry.UpdatedAt = s.clock.ISO()
	set.UpdatedAt = entry.UpdatedAt

	if err := s.writeSet(ctx, pctx, set); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, userID, models.AuditActionEntryUpsert, set.GroupPath, entry.ID, entry)
	s.notifyGroup(ctx, set.GroupPath)
	return set, nil
}

// RemoveEntry deletes a draft entry from an editable set.
func (s *ProposalService) RemoveEntry(ctx context.Context, pctx docpath.Context, setID, entryID, userID string) (*models.ProposalSet, error) {
	set, err := s.GetSet(ctx, pctx, setID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanEditEntries(set) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entries can only be removed while the set is in draft")
	}
	kept := set.Entries[:0]
	found := false
	for _, e := range set.Entries {
		if e.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("entry %s not found in set %s", entryID, setID))
	}
	set.Entries = kept
	set.UpdatedAt = s.clock.ISO()

	if err := s.writeSet(ctx, pctx, set); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, userID, models.AuditActionEntryRemove, set.GroupPath, entryID, nil)
	s.notifyGroup(ctx, set.GroupPath)
	return set, nil
}

// SubmitSet moves every draft entry into the moderator queue atomically.
func (s *ProposalService) SubmitSet(ctx context.Context, pctx docpath.Context, setID, userID string) (*models.ProposalSet, error) {
	set, err := s.GetSet(ctx, pctx, setID)
	if err != nil {
		return nil, err
	}
	if err := workflow.Submit(set); err != nil {
		return nil, err
	}
	now := s.clock.ISO()
	set.SubmittedBy = userID
	set.SubmittedAt = now
	set.UpdatedAt = now
	for i := range set.Entries {
		set.Entries[i].UpdatedAt = now
	}

	if err := s.writeSet(ctx, pctx, set); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, userID, models.AuditActionSetSubmit, set.GroupPath, set.ID, set)
	s.notifyGroup(ctx, set.GroupPath)
	s.notifyQueue(ctx, models.StageModerator)
	return set, nil
}

// RecordDecision applies one reviewer verdict to one entry. The entry must be
// in exactly the status the stage expects; otherwise the stored document is
// left untouched and an invalid-transition error is returned.
func (s *ProposalService) RecordDecision(ctx context.Context, pctx docpath.Context, setID, entryID string, req dto.DecisionRequest, reviewerUID string) (*models.ProposalSet, error) {
	if reviewerUID == "" {
		return nil, appErrors.Clone(appErrors.ErrIncompleteParameters, "reviewer id is required")
	}
	set, err := s.GetSet(ctx, pctx, setID)
	if err != nil {
		return nil, err
	}
	// A set that already produced a thesis is frozen for review.
	if set.Used() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyUsed, "proposal set already produced a thesis")
	}
	entry := set.Entry(entryID)
	if entry == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("entry %s not found in set %s", entryID, setID))
	}

	next, err := workflow.Next(entry.Status, req.Stage, req.Decision)
	if err != nil {
		return nil, err
	}

	now := s.clock.ISO()
	record := &models.DecisionRecord{
		ReviewerUID: reviewerUID,
		Decision:    req.Decision,
		DecidedAt:   now,
		Notes:       req.Notes,
	}
	switch req.Stage {
	case models.StageModerator:
		entry.ModeratorDecision = record
	case models.StageChair:
		entry.ChairDecision = record
	case models.StageHead:
		entry.HeadDecision = record
	}
	entry.Status = next
	entry.UpdatedAt = now
	set.UpdatedAt = now

	if err := s.writeSet(ctx, pctx, set); err != nil {
		return nil, err
	}

	event := &models.ReviewEvent{
		SetID:       set.ID,
		EntryID:     entry.ID,
		GroupPath:   set.GroupPath,
		Stage:       req.Stage,
		Decision:    req.Decision,
		ReviewerUID: reviewerUID,
		Notes:       req.Notes,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Warn("failed to append review event", zap.String("set_id", set.ID), zap.Error(err))
	}

	s.emitAudit(ctx, reviewerUID, models.AuditActionDecision, set.GroupPath, entry.ID, record)
	s.notifyGroup(ctx, set.GroupPath)
	s.notifyQueue(ctx, req.Stage)
	if req.Decision == models.DecisionApproved && req.Stage != models.StageHead {
		s.notifyQueue(ctx, nextStage(req.Stage))
	}
	return set, nil
}

// MarkAsThesis consumes a head-approved entry into a new thesis record. The
// operation is one-way and one-time; repeat calls fail with ALREADY_USED.
func (s *ProposalService) MarkAsThesis(ctx context.Context, pctx docpath.Context, setID, entryID, userID string) (*dto.MarkAsThesisResponse, error) {
	if s.thesis == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "thesis collaborator not configured")
	}
	set, err := s.GetSet(ctx, pctx, setID)
	if err != nil {
		return nil, err
	}
	entry := set.Entry(entryID)
	if entry == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("entry %s not found in set %s", entryID, setID))
	}
	if err := workflow.CanMarkAsThesis(set, entry); err != nil {
		return nil, err
	}

	thesisID, err := s.thesis.CreateFromProposal(ctx, pctx, set, entry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create thesis record")
	}

	now := s.clock.ISO()
	entry.UsedBy = userID
	entry.UsedAsThesisAt = now
	entry.ThesisID = thesisID
	entry.UpdatedAt = now
	set.UsedBy = userID
	set.UsedAsThesisAt = now
	set.UpdatedAt = now

	if err := s.writeSet(ctx, pctx, set); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, userID, models.AuditActionMarkAsThesis, set.GroupPath, entry.ID, map[string]string{"thesisId": thesisID})
	s.notifyGroup(ctx, set.GroupPath)
	return &dto.MarkAsThesisResponse{ThesisID: thesisID, Set: *set}, nil
}

// ReviewerQueue returns every set awaiting the stage across all groups,
// oldest submission first so long-waiting groups are reviewed before fresh
// ones.
func (s *ProposalService) ReviewerQueue(ctx context.Context, stage models.ReviewStage) ([]dto.QueueItem, error) {
	field, err := AwaitingField(stage)
	if err != nil {
		return nil, err
	}

	cacheKey := queueCacheKey(stage)
	if s.queues != nil {
		var cached []dto.QueueItem
		if hit, err := s.queues.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	docs, err := s.docs.CollectionGroup(ctx, docpath.ColProposals, field)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query reviewer queue")
	}

	items := make([]dto.QueueItem, 0, len(docs))
	for _, raw := range docs {
		set := normalize.Set(raw)
		// Re-check against derived flags; stored flags may be stale.
		if !awaitingStage(&set, stage) {
			continue
		}
		items = append(items, dto.QueueItem{GroupPath: set.GroupPath, Set: set})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Set.SubmittedAt < items[j].Set.SubmittedAt
	})

	if s.queues != nil {
		if err := s.queues.Set(ctx, cacheKey, items); err != nil {
			s.logger.Warn("failed to cache reviewer queue", zap.String("stage", string(stage)), zap.Error(err))
		}
	}
	return items, nil
}

// ReviewHistory returns the chronological audit trail for a set.
func (s *ProposalService) ReviewHistory(ctx context.Context, filter models.ReviewEventFilter) ([]models.ReviewEvent, error) {
	events, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review history")
	}
	return events, nil
}

func (s *ProposalService) listSets(ctx context.Context, pctx docpath.Context) ([]models.ProposalSet, error) {
	docs, err := s.docs.ListCollection(ctx, docpath.ProposalsCollection(pctx))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposal sets")
	}
	sets := make([]models.ProposalSet, 0, len(docs))
	for _, raw := range docs {
		sets = append(sets, normalize.Set(raw))
	}
	return sets, nil
}

// writeSet recomputes the derived flags, strips null-valued fields, and
// writes the full document back. Whole-document writes preserve normalizer
// repairs and avoid partial-patch drift.
func (s *ProposalService) writeSet(ctx context.Context, pctx docpath.Context, set *models.ProposalSet) error {
	set.AwaitingModerator, set.AwaitingChair, set.AwaitingHead = workflow.ComputeAwaiting(set.Entries)

	doc, err := encodeSet(set)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode proposal set")
	}
	if err := s.docs.Put(ctx, docpath.ProposalDoc(pctx, set.ID), doc); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write proposal set")
	}
	return nil
}

func (s *ProposalService) emitAudit(ctx context.Context, userID, action, resource, resourceID string, payload any) {
	if s.audit == nil {
		return
	}
	var newValues []byte
	if payload != nil {
		newValues, _ = json.Marshal(payload)
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "proposal-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *ProposalService) notifyGroup(ctx context.Context, groupPath string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyGroup(ctx, groupPath); err != nil {
		s.logger.Warn("failed to notify group subscribers", zap.String("group_path", groupPath), zap.Error(err))
	}
}

func (s *ProposalService) notifyQueue(ctx context.Context, stage models.ReviewStage) {
	if s.queues != nil {
		s.queues.Invalidate(ctx, stage)
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyQueue(ctx, stage); err != nil {
		s.logger.Warn("failed to notify queue subscribers", zap.String("stage", string(stage)), zap.Error(err))
	}
}

// AwaitingField maps a stage to the derived document field driving its queue.
func AwaitingField(stage models.ReviewStage) (string, error) {
	switch stage {
	case models.StageModerator:
		return "awaitingModerator", nil
	case models.StageChair:
		return "awaitingChair", nil
	case models.StageHead:
		return "awaitingHead", nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown review stage %q", stage))
	}
}

func awaitingStage(set *models.ProposalSet, stage models.ReviewStage) bool {
	switch stage {
	case models.StageModerator:
		return set.AwaitingModerator
	case models.StageChair:
		return set.AwaitingChair
	case models.StageHead:
		return set.AwaitingHead
	}
	return false
}

func nextStage(stage models.ReviewStage) models.ReviewStage {
	switch stage {
	case models.StageModerator:
		return models.StageChair
	case models.StageChair:
		return models.StageHead
	}
	return stage
}

func queueCacheKey(stage models.ReviewStage) string {
	return fmt.Sprintf("queue:%s", stage)
}

// encodeSet converts the typed set into a JSON document body with null
// fields stripped; the store rejects undefined values.
func encodeSet(set *models.ProposalSet) (map[string]any, error) {
	payload, err := json.Marshal(set)
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

func stripNulls(doc map[string]any) {
	for key, value := range doc {
		switch v := value.(type) {
		case nil:
			delete(doc, key)
		case map[string]any:
			stripNulls(v)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					stripNulls(m)
				}
			}
		}
	}
}
