package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/http/response"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services"
)

type AnalysisHandler struct {
	log        *logger.Logger
	dispatcher services.JobDispatcher
}

func NewAnalysisHandler(log *logger.Logger, dispatcher services.JobDispatcher) *AnalysisHandler {
	return &AnalysisHandler{log: log.With("handler", "AnalysisHandler"), dispatcher: dispatcher}
}

type crawlReq struct {
	URL       string  `json:"url"`
	MaxDepth  int     `json:"maxDepth"`
	MaxPages  int     `json:"maxPages"`
	RateLimit float64 `json:"rateLimit"`
}

type searchPlatformsReq struct {
	Brand                 string   `json:"brand"`
	Platforms             []string `json:"platforms"`
	MaxResultsPerPlatform int      `json:"maxResultsPerPlatform"`
}

type fetchReq struct {
	ContentItemIDs []uuid.UUID `json:"contentItemIds"`
}

// POST /api/projects/:id/analysis/:jobType
func (h *AnalysisHandler) DispatchAnalysis(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	jobType, ok := jobs.ParseJobType(c.Param("jobType"))
	if !ok || jobType.Queue() != jobs.QueueAnalysis {
		response.RespondAPIError(c, apierr.Validation("unknown analysis job type %q", c.Param("jobType")))
		return
	}
	h.dispatch(c, projectID, jobType, services.DispatchOptions{})
}

// POST /api/projects/:id/discovery/crawl
func (h *AnalysisHandler) Crawl(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req crawlReq
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.dispatch(c, projectID, jobs.TypeCrawlSite, services.DispatchOptions{
		URL:       req.URL,
		MaxDepth:  req.MaxDepth,
		MaxPages:  req.MaxPages,
		RateLimit: req.RateLimit,
	})
}

// POST /api/projects/:id/discovery/search
func (h *AnalysisHandler) SearchPlatforms(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req searchPlatformsReq
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.dispatch(c, projectID, jobs.TypeSearchPlatforms, services.DispatchOptions{
		Brand:                 req.Brand,
		Platforms:             req.Platforms,
		MaxResultsPerPlatform: req.MaxResultsPerPlatform,
	})
}

// POST /api/projects/:id/discovery/fetch
func (h *AnalysisHandler) Fetch(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req fetchReq
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.dispatch(c, projectID, jobs.TypeFetchContent, services.DispatchOptions{ContentItemIDs: req.ContentItemIDs})
}

func (h *AnalysisHandler) dispatch(c *gin.Context, projectID uuid.UUID, jobType jobs.JobType, opts services.DispatchOptions) {
	res, err := h.dispatcher.Dispatch(c.Request.Context(), projectID, jobType, opts)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, res)
}
