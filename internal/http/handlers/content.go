package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	contentrepo "github.com/yungbote/visiblee-backend/internal/data/repos/content"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/http/response"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/services"
)

type ContentHandler struct {
	content services.ContentService
}

func NewContentHandler(content services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

type setStatusReq struct {
	IDs    []uuid.UUID `json:"ids"`
	Status string      `json:"status"`
}

// GET /api/projects/:id/content?status=&platform=&limit=&offset=
func (h *ContentHandler) List(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	f := contentrepo.ListFilter{
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		st, ok := content.ParseStatus(v)
		if !ok {
			response.RespondAPIError(c, apierr.Validation("unknown status %q", v))
			return
		}
		f.Status = st
	}
	if v := strings.TrimSpace(c.Query("platform")); v != "" {
		p, ok := content.ParsePlatform(v)
		if !ok {
			response.RespondAPIError(c, apierr.Validation("unknown platform %q", v))
			return
		}
		f.Platform = p
	}
	items, err := h.content.List(dbcOf(c), projectID, f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"data": items, "count": len(items)})
}

// POST /api/projects/:id/content
func (h *ContentHandler) Add(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req services.AddContentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.Validation("invalid request body: %v", err))
		return
	}
	item, err := h.content.Add(dbcOf(c), projectID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"item": item})
}

// POST /api/projects/:id/content/status
func (h *ContentHandler) SetStatus(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.Validation("invalid request body: %v", err))
		return
	}
	n, err := h.content.SetStatus(dbcOf(c), projectID, req.IDs, req.Status)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"updated": n})
}

// GET /api/projects/:id/content/stats
func (h *ContentHandler) Stats(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	st, err := h.content.Stats(dbcOf(c), projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, st)
}
