package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// DocumentRepository persists the hierarchical document store: one JSONB row
// per document, addressed by its canonical slash-separated path. The leaf
// collection name is denormalized into its own column so queue queries can
// span same-named collections across the whole hierarchy.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get fetches a single document body by address. sql.ErrNoRows passes
// through untouched so callers can map it to their own not-found error.
func (r *DocumentRepository) Get(ctx context.Context, path string) (map[string]any, error) {
	const query = `SELECT doc FROM documents WHERE path = $1`
	var raw []byte
	if err := r.db.GetContext(ctx, &raw, query, path); err != nil {
		return nil, err
	}
	return decodeDoc(raw)
}

// Put writes the full document body at the address, inserting or replacing.
// Whole-document writes keep normalization repairs instead of losing them to
// partial patches.
func (r *DocumentRepository) Put(ctx context.Context, path string, doc map[string]any) error {
	collectionPath, collection, err := splitPath(path)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", path, err)
	}
	const query = `INSERT INTO documents (path, collection_path, collection, doc, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (path) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, path, collectionPath, collection, string(payload)); err != nil {
		return fmt.Errorf("put document %s: %w", path, err)
	}
	return nil
}

// Delete removes a document by address.
func (r *DocumentRepository) Delete(ctx context.Context, path string) error {
	const query = `DELETE FROM documents WHERE path = $1`
	if _, err := r.db.ExecContext(ctx, query, path); err != nil {
		return fmt.Errorf("delete document %s: %w", path, err)
	}
	return nil
}

// ListCollection returns all document bodies directly inside a collection,
// newest first by row creation time.
func (r *DocumentRepository) ListCollection(ctx context.Context, collectionPath string) ([]map[string]any, error) {
	const query = `SELECT doc FROM documents WHERE collection_path = $1 ORDER BY created_at DESC`
	return r.selectDocs(ctx, query, collectionPath)
}

// CollectionGroup queries every collection with the given leaf name across
// the hierarchy, filtered to documents whose boolean field is true. Rows come
// back oldest submission first, the fairness order for reviewer queues.
func (r *DocumentRepository) CollectionGroup(ctx context.Context, collection, boolField string) ([]map[string]any, error) {
	const query = `SELECT doc FROM documents
WHERE collection = $1 AND doc->>$2 = 'true'
ORDER BY doc->>'submittedAt' ASC NULLS LAST`
	return r.selectDocs(ctx, query, collection, boolField)
}

// CountCollection counts documents directly inside a collection.
func (r *DocumentRepository) CountCollection(ctx context.Context, collectionPath string) (int, error) {
	const query = `SELECT COUNT(*) FROM documents WHERE collection_path = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, collectionPath); err != nil {
		return 0, fmt.Errorf("count collection %s: %w", collectionPath, err)
	}
	return count, nil
}

func (r *DocumentRepository) selectDocs(ctx context.Context, query string, args ...interface{}) ([]map[string]any, error) {
	var rows [][]byte
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	docs := make([]map[string]any, 0, len(rows))
	for _, raw := range rows {
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeDoc(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// splitPath separates a document address into its parent collection path and
// leaf collection name. Addresses alternate collection/id segments, so a
// document path always has an even segment count of at least two.
func splitPath(path string) (collectionPath, collection string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("document path %q must alternate collection/id segments", path)
	}
	collectionPath = strings.Join(segments[:len(segments)-1], "/")
	collection = segments[len(segments)-2]
	return collectionPath, collection, nil
}
