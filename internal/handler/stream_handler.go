package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/internal/realtime"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

// StreamHandler serves live proposal snapshots over server-sent events.
type StreamHandler struct {
	broker *realtime.Broker
	logger *zap.Logger
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *realtime.Broker, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{broker: broker, logger: logger}
}

// Group godoc
// @Summary Stream group proposal snapshots
// @Description Server-sent events; each event is the full, normalized list of the group's proposal sets
// @Tags Streams
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /groups/{year}/{department}/{course}/{groupId}/proposals/stream [get]
func (h *StreamHandler) Group(c *gin.Context) {
	// Slow consumers skip intermediate snapshots; the latest one wins.
	updates := make(chan []models.ProposalSet, 1)
	handler := func(sets []models.ProposalSet) {
		select {
		case updates <- sets:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- sets
		}
	}

	cancel, err := h.broker.SubscribeGroup(c.Request.Context(), pathContext(c), handler, func(err error) {
		h.logger.Warn("group stream snapshot failed", zap.Error(err))
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cancel()

	h.stream(c, func() (string, any, bool) {
		select {
		case <-c.Request.Context().Done():
			return "", nil, false
		case snapshot := <-updates:
			return "proposals", snapshot, true
		}
	})
}

// Queue godoc
// @Summary Stream reviewer queue snapshots
// @Description Server-sent events; each event is the stage's full pending queue, oldest submission first
// @Tags Streams
// @Produce text/event-stream
// @Param stage path string true "Review stage" Enums(moderator, chair, head)
// @Success 200 {string} string "event stream"
// @Router /reviews/queue/{stage}/stream [get]
func (h *StreamHandler) Queue(c *gin.Context) {
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

	updates := make(chan []dto.QueueItem, 1)
	handler := func(items []dto.QueueItem) {
		select {
		case updates <- items:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- items
		}
	}

	cancel, err := h.broker.SubscribeQueue(c.Request.Context(), stage, handler, func(err error) {
		h.logger.Warn("queue stream snapshot failed", zap.String("stage", string(stage)), zap.Error(err))
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cancel()

	h.stream(c, func() (string, any, bool) {
		select {
		case <-c.Request.Context().Done():
			return "", nil, false
		case snapshot := <-updates:
			return "queue", snapshot, true
		}
	})
}

func (h *StreamHandler) stream(c *gin.Context, next func() (string, any, bool)) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		event, payload, ok := next()
		if !ok {
			return false
		}
		c.SSEvent(event, payload)
		return true
	})
}
