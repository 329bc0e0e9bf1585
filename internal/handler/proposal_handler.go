package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/service"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

// ProposalHandler exposes the proposal workflow over HTTP.
type ProposalHandler struct {
	service  *service.ProposalService
	validate *validator.Validate
}

// NewProposalHandler creates a new handler.
func NewProposalHandler(svc *service.ProposalService, validate *validator.Validate) *ProposalHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ProposalHandler{service: svc, validate: validate}
}

// CreateSet godoc
// @Summary Create proposal set
// @Description Open a new proposal review cycle for the group
// @Tags Proposals
// @Produce json
// @Param year path string true "Academic year"
// @Param department path string true "Department"
// @Param course path string true "Course"
// @Param groupId path string true "Group id"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals [post]
func (h *ProposalHandler) CreateSet(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	set, err := h.service.CreateSet(c.Request.Context(), pathContext(c), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, set)
}

// ListSets godoc
// @Summary List proposal sets
// @Description List the group's proposal sets newest first
// @Tags Proposals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals [get]
func (h *ProposalHandler) ListSets(c *gin.Context) {
	sets, err := h.service.ListSets(c.Request.Context(), pathContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sets, nil)
}

// GetSet godoc
// @Summary Get proposal set
// @Description Load a single normalized proposal set
// @Tags Proposals
// @Produce json
// @Param setId path string true "Set id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/{setId} [get]
func (h *ProposalHandler) GetSet(c *gin.Context) {
	set, err := h.service.GetSet(c.Request.Context(), pathContext(c), c.Param("setId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// AddEntry godoc
// @Summary Add proposal entry
// @Description Append a draft topic to an editable set
// @Tags Proposals
// @Accept json
// @Produce json
// @Param setId path string true "Set id"
// @Param payload body dto.EntryPayload true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries [post]
func (h *ProposalHandler) AddEntry(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payload, ok := h.bindEntryPayload(c)
	if !ok {
		return
	}

	set, err := h.service.AddEntry(c.Request.Context(), pathContext(c), c.Param("setId"), payload, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// UpdateEntry godoc
// @Summary Update proposal entry
// @Description Replace the editable fields of a draft entry
// @Tags Proposals
// @Accept json
// @Produce json
// @Param setId path string true "Set id"
// @Param entryId path string true "Entry id"
// @Param payload body dto.EntryPayload true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries/{entryId} [put]
func (h *ProposalHandler) UpdateEntry(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payload, ok := h.bindEntryPayload(c)
	if !ok {
		return
	}

	set, err := h.service.UpdateEntry(c.Request.Context(), pathContext(c), c.Param("setId"), c.Param("entryId"), payload, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// RemoveEntry godoc
// @Summary Remove proposal entry
// @Description Delete a draft entry from an editable set
// @Tags Proposals
// @Produce json
// @Param setId path string true "Set id"
// @Param entryId path string true "Entry id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries/{entryId} [delete]
func (h *ProposalHandler) RemoveEntry(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	set, err := h.service.RemoveEntry(c.Request.Context(), pathContext(c), c.Param("setId"), c.Param("entryId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// SubmitSet godoc
// @Summary Submit proposal set
// @Description Move every draft entry into the moderator queue
// @Tags Proposals
// @Produce json
// @Param setId path string true "Set id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/submit [post]
func (h *ProposalHandler) SubmitSet(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	set, err := h.service.SubmitSet(c.Request.Context(), pathContext(c), c.Param("setId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// RecordDecision godoc
// @Summary Record reviewer decision
// @Description Apply one reviewer verdict to a proposal entry
// @Tags Reviews
// @Accept json
// @Produce json
// @Param setId path string true "Set id"
// @Param entryId path string true "Entry id"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries/{entryId}/decision [post]
func (h *ProposalHandler) RecordDecision(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	if !stageMatchesRole(req.Stage, claims.Role) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role does not review this stage"))
		return
	}

	set, err := h.service.RecordDecision(c.Request.Context(), pathContext(c), c.Param("setId"), c.Param("entryId"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// MarkAsThesis godoc
// @Summary Mark entry as thesis
// @Description Consume a head-approved entry into a new thesis record
// @Tags Proposals
// @Produce json
// @Param setId path string true "Set id"
// @Param entryId path string true "Entry id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries/{entryId}/thesis [post]
func (h *ProposalHandler) MarkAsThesis(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.service.MarkAsThesis(c.Request.Context(), pathContext(c), c.Param("setId"), c.Param("entryId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReviewerQueue godoc
// @Summary Reviewer work queue
// @Description List every set awaiting the stage across all groups, oldest first
// @Tags Reviews
// @Produce json
// @Param stage path string true "Review stage" Enums(moderator, chair, head)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reviews/queue/{stage} [get]
func (h *ProposalHandler) ReviewerQueue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stage := models.ReviewStage(c.Param("stage"))
	if !stageMatchesRole(stage, claims.Role) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role does not review this stage"))
		return
	}

	items, err := h.service.ReviewerQueue(c.Request.Context(), stage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ReviewHistory godoc
// @Summary Review history
// @Description Chronological reviewer decisions filtered by set, entry, or group
// @Tags Reviews
// @Produce json
// @Param setId query string false "Set id"
// @Param entryId query string false "Entry id"
// @Param groupPath query string false "Group path"
// @Success 200 {object} response.Envelope
// @Router /reviews/history [get]
func (h *ProposalHandler) ReviewHistory(c *gin.Context) {
	filter := models.ReviewEventFilter{
		SetID:     c.Query("setId"),
		EntryID:   c.Query("entryId"),
		GroupPath: c.Query("groupPath"),
		Stage:     models.ReviewStage(c.Query("stage")),
	}
	events, err := h.service.ReviewHistory(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

func (h *ProposalHandler) bindEntryPayload(c *gin.Context) (dto.EntryPayload, bool) {
	var payload dto.EntryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return payload, false
	}
	if err := h.validate.Struct(payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return payload, false
	}
	return payload, true
}

// stageMatchesRole ties reviewer roles to the stage they may act on. Admins
// may act on any stage.
func stageMatchesRole(stage models.ReviewStage, role models.UserRole) bool {
	if role == models.RoleAdmin {
		return true
	}
	switch stage {
	case models.StageModerator:
		return role == models.RoleModerator
	case models.StageChair:
		return role == models.RoleChair
	case models.StageHead:
		return role == models.RoleHead
	}
	return false
}
