package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/service"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

// ThesisHandler exposes read access to thesis records created by the workflow.
type ThesisHandler struct {
	theses *service.ThesisService
}

// NewThesisHandler constructs handler.
func NewThesisHandler(theses *service.ThesisService) *ThesisHandler {
	return &ThesisHandler{theses: theses}
}

// List godoc
// @Summary List group theses
// @Tags Theses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/theses [get]
func (h *ThesisHandler) List(c *gin.Context) {
	theses, err := h.theses.List(c.Request.Context(), pathContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, theses, nil)
}

// Get godoc
// @Summary Get thesis
// @Tags Theses
// @Produce json
// @Param thesisId path string true "Thesis id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{year}/{department}/{course}/{groupId}/theses/{thesisId} [get]
func (h *ThesisHandler) Get(c *gin.Context) {
	thesis, err := h.theses.Get(c.Request.Context(), pathContext(c), c.Param("thesisId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thesis, nil)
}
