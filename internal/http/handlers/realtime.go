package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/http/response"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/events?projectId=
//
// Streams the caller's job events. Events only ever reach their owner, so the
// optional project filter needs no ownership check of its own.
func (h *RealtimeHandler) JobEvents(c *gin.Context) {
	userID := ctxutil.ActorID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondAPIError(c, apierr.Unauthorized("not authenticated"))
		return
	}
	projectID := uuid.Nil
	if v := strings.TrimSpace(c.Query("projectId")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.RespondAPIError(c, apierr.Validation("invalid project id"))
			return
		}
		projectID = id
	}

	client := h.hub.Register(userID, projectID)
	defer h.hub.Unregister(client)
	h.log.Debug("job event stream open", "user_id", userID, "client_id", client.ID)
	h.hub.Serve(c.Writer, c.Request, client)
}
