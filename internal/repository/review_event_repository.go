package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

// ReviewEventRepository persists the append-only review audit trail. Rows are
// inserted once; there is intentionally no update or delete.
type ReviewEventRepository struct {
	db *sqlx.DB
}

// NewReviewEventRepository constructs the repository.
func NewReviewEventRepository(db *sqlx.DB) *ReviewEventRepository {
	return &ReviewEventRepository{db: db}
}

// Append inserts a new review event row.
func (r *ReviewEventRepository) Append(ctx context.Context, event *models.ReviewEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO review_events
	(id, set_id, entry_id, group_path, stage, decision, reviewer_uid, notes, created_at)
	VALUES (:id, :set_id, :entry_id, :group_path, :stage, :decision, :reviewer_uid, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append review event: %w", err)
	}
	return nil
}

// List returns events matching the filter in chronological order.
func (r *ReviewEventRepository) List(ctx context.Context, filter models.ReviewEventFilter) ([]models.ReviewEvent, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT id, set_id, entry_id, group_path, stage, decision, reviewer_uid, notes, created_at
FROM review_events`)

	conditions := make([]string, 0, 4)
	if filter.SetID != "" {
		args = append(args, filter.SetID)
		conditions = append(conditions, fmt.Sprintf("set_id = $%d", len(args)))
	}
	if filter.EntryID != "" {
		args = append(args, filter.EntryID)
		conditions = append(conditions, fmt.Sprintf("entry_id = $%d", len(args)))
	}
	if filter.GroupPath != "" {
		args = append(args, filter.GroupPath)
		conditions = append(conditions, fmt.Sprintf("group_path = $%d", len(args)))
	}
	if filter.Stage != "" {
		args = append(args, filter.Stage)
		conditions = append(conditions, fmt.Sprintf("stage = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var events []models.ReviewEvent
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list review events: %w", err)
	}
	return events, nil
}
