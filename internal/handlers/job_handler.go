package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Worker statistics and the scheduled jobs with their last run
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	respond(c, http.StatusOK, h.jobService.GetStatus(), "")
}

// Run executes a scheduled job outside its schedule
// @Summary Run a scheduled job now
// @Tags Jobs
// @Produce json
// @Param name path string true "Job name"
// @Security BearerAuth
// @Success 202 {object} Response
// @Failure 404 {object} Response
// @Router /jobs/{name}/run [post]
func (h *JobHandler) Run(c *gin.Context) {
	name := c.Param("name")
	if err := h.jobService.RunNow(name); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"job": name}, "Job executed")
}
