package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/visiblee-backend/internal/http/response"
	"github.com/yungbote/visiblee-backend/internal/services"
)

type JobHandler struct {
	jobs       services.JobService
	dispatcher services.JobDispatcher
}

func NewJobHandler(jobs services.JobService, dispatcher services.JobDispatcher) *JobHandler {
	return &JobHandler{jobs: jobs, dispatcher: dispatcher}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuidParam(c, "id", "job")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	job, err := h.jobs.GetByIDForRequestUser(dbcOf(c), jobID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/projects/:id/jobs?limit=20
func (h *JobHandler) ListProjectJobs(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	list, err := h.jobs.ListForProject(dbcOf(c), projectID, queryInt(c, "limit", 0))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": list})
}

// POST /api/jobs/:id/restart
func (h *JobHandler) RestartJob(c *gin.Context) {
	jobID, err := uuidParam(c, "id", "job")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	res, err := h.dispatcher.Restart(c.Request.Context(), jobID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, res)
}
