package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/middleware"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/service"
)

type memoryDocStore struct {
	docs map[string]map[string]any
}

func (m *memoryDocStore) Get(ctx context.Context, path string) (map[string]any, error) {
	doc, ok := m.docs[path]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return doc, nil
}

func (m *memoryDocStore) Put(ctx context.Context, path string, doc map[string]any) error {
	if m.docs == nil {
		m.docs = make(map[string]map[string]any)
	}
	m.docs[path] = doc
	return nil
}

func (m *memoryDocStore) ListCollection(ctx context.Context, collectionPath string) ([]map[string]any, error) {
	var result []map[string]any
	prefix := collectionPath + "/"
	for path, doc := range m.docs {
		if strings.HasPrefix(path, prefix) && !strings.Contains(path[len(prefix):], "/") {
			result = append(result, doc)
		}
	}
	return result, nil
}

func (m *memoryDocStore) CollectionGroup(ctx context.Context, collection, boolField string) ([]map[string]any, error) {
	var result []map[string]any
	for path, doc := range m.docs {
		segments := strings.Split(path, "/")
		if len(segments) < 2 || segments[len(segments)-2] != collection {
			continue
		}
		if flag, ok := doc[boolField].(bool); ok && flag {
			result = append(result, doc)
		}
	}
	return result, nil
}

type memoryEventStore struct {
	events []models.ReviewEvent
}

func (m *memoryEventStore) Append(ctx context.Context, event *models.ReviewEvent) error {
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryEventStore) List(ctx context.Context, filter models.ReviewEventFilter) ([]models.ReviewEvent, error) {
	return m.events, nil
}

type noopAudit struct{}

func (noopAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error { return nil }

func newTestProposalHandler() (*ProposalHandler, *memoryDocStore) {
	docs := &memoryDocStore{}
	svc := service.NewProposalService(docs, &memoryEventStore{}, noopAudit{},
		service.ProposalConfig{MaxEntriesPerSet: 3}, zap.NewNop())
	return NewProposalHandler(svc, nil), docs
}

func groupParams() gin.Params {
	return gin.Params{
		{Key: "year", Value: "2025-2026"},
		{Key: "department", Value: "SOC"},
		{Key: "course", Value: "BSIT"},
		{Key: "groupId", Value: "group-7"},
	}
}

func testContext(t *testing.T, method, target string, body any, role models.UserRole, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
	return c, recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope
}

func TestProposalHandlerCreateSet(t *testing.T) {
	handler, _ := newTestProposalHandler()

	c, recorder := testContext(t, http.MethodPost, "/proposals", nil, models.RoleStudent, groupParams())
	handler.CreateSet(c)

	require.Equal(t, http.StatusCreated, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(1), data["setNumber"])
	assert.Equal(t, "years/2025-2026/departments/soc/courses/bsit/groups/group-7", data["groupPath"])
}

func TestProposalHandlerDuplicateActiveConflict(t *testing.T) {
	handler, _ := newTestProposalHandler()

	c, _ := testContext(t, http.MethodPost, "/proposals", nil, models.RoleStudent, groupParams())
	handler.CreateSet(c)

	c, recorder := testContext(t, http.MethodPost, "/proposals", nil, models.RoleStudent, groupParams())
	handler.CreateSet(c)

	require.Equal(t, http.StatusConflict, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	errBody := envelope["error"].(map[string]any)
	assert.Equal(t, "DUPLICATE_ACTIVE_REQUEST", errBody["code"])
}

func TestProposalHandlerAddEntryValidation(t *testing.T) {
	handler, _ := newTestProposalHandler()

	c, recorder := testContext(t, http.MethodPost, "/proposals", nil, models.RoleStudent, groupParams())
	handler.CreateSet(c)
	setID := decodeEnvelope(t, recorder)["data"].(map[string]any)["id"].(string)

	params := append(groupParams(), gin.Param{Key: "setId", Value: setID})
	c, recorder = testContext(t, http.MethodPost, "/entries", map[string]any{"title": "abc"}, models.RoleStudent, params)
	handler.AddEntry(c)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestProposalHandlerDecisionRoleGate(t *testing.T) {
	handler, _ := newTestProposalHandler()

	params := append(groupParams(),
		gin.Param{Key: "setId", Value: "set-1"},
		gin.Param{Key: "entryId", Value: "entry-1"},
	)
	body := map[string]any{"stage": "chair", "decision": "approved"}
	c, recorder := testContext(t, http.MethodPost, "/decision", body, models.RoleModerator, params)
	handler.RecordDecision(c)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestProposalHandlerFullFlow(t *testing.T) {
	handler, _ := newTestProposalHandler()

	c, recorder := testContext(t, http.MethodPost, "/proposals", nil, models.RoleStudent, groupParams())
	handler.CreateSet(c)
	setID := decodeEnvelope(t, recorder)["data"].(map[string]any)["id"].(string)

	setParams := append(groupParams(), gin.Param{Key: "setId", Value: setID})
	entryBody := map[string]any{"title": "Smart irrigation scheduling", "description": "IoT and weather data"}
	c, recorder = testContext(t, http.MethodPost, "/entries", entryBody, models.RoleStudent, setParams)
	handler.AddEntry(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	entries := decodeEnvelope(t, recorder)["data"].(map[string]any)["entries"].([]any)
	entryID := entries[0].(map[string]any)["id"].(string)

	c, recorder = testContext(t, http.MethodPost, "/submit", nil, models.RoleStudent, setParams)
	handler.SubmitSet(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	decisionParams := append(setParams, gin.Param{Key: "entryId", Value: entryID})
	body := map[string]any{"stage": "moderator", "decision": "approved"}
	c, recorder = testContext(t, http.MethodPost, "/decision", body, models.RoleModerator, decisionParams)
	handler.RecordDecision(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	data := decodeEnvelope(t, recorder)["data"].(map[string]any)
	updated := data["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "chair_review", updated["status"])
	assert.Equal(t, true, data["awaitingChair"])
}

func TestProposalHandlerQueueRoleGate(t *testing.T) {
	handler, _ := newTestProposalHandler()

	params := gin.Params{{Key: "stage", Value: "head"}}
	c, recorder := testContext(t, http.MethodGet, "/reviews/queue/head", nil, models.RoleModerator, params)
	handler.ReviewerQueue(c)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	c, recorder = testContext(t, http.MethodGet, "/reviews/queue/head", nil, models.RoleHead, params)
	handler.ReviewerQueue(c)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
