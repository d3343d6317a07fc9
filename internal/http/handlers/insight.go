package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/visiblee-backend/internal/http/response"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/services"
)

type InsightHandler struct {
	insights services.InsightService
}

func NewInsightHandler(insights services.InsightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// GET /api/projects/:id/score
func (h *InsightHandler) GetScore(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	score, err := h.insights.Score(dbcOf(c), projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"score": score})
}

// GET /api/projects/:id/briefs?limit=50
func (h *InsightHandler) ListBriefs(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	briefs, err := h.insights.ListBriefs(dbcOf(c), projectID, queryInt(c, "limit", 0))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"briefs": briefs})
}

// PATCH /api/briefs/:id
func (h *InsightHandler) UpdateBrief(c *gin.Context) {
	briefID, err := uuidParam(c, "id", "brief")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.Validation("invalid request body: %v", err))
		return
	}
	brief, err := h.insights.UpdateBriefStatus(dbcOf(c), briefID, req.Status)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"brief": brief})
}

// DELETE /api/briefs/:id
func (h *InsightHandler) DeleteBrief(c *gin.Context) {
	briefID, err := uuidParam(c, "id", "brief")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if err := h.insights.DeleteBrief(dbcOf(c), briefID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/projects/:id/suggestions?limit=50
func (h *InsightHandler) ListSuggestions(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	list, err := h.insights.ListSuggestions(dbcOf(c), projectID, queryInt(c, "limit", 0))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"suggestions": list})
}
