package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/linkhub/pkg/api/types"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/jobs"
	"github.com/urmzd/linkhub/pkg/schema"
)

// JobHistory reads finished job runs of the served house.
type JobHistory interface {
	Recent(ctx context.Context, limit int) ([]jobs.Result, error)
	Get(ctx context.Context, id string) (jobs.Result, error)
}

// JobsHandler handles bulk job endpoints
type JobsHandler struct {
	house     *house.House
	validator *schema.Validator
	history   JobHistory
}

// NewJobsHandler creates a new jobs handler. history may be nil.
func NewJobsHandler(h *house.House, validator *schema.Validator, history JobHistory) *JobsHandler {
	return &JobsHandler{house: h, validator: validator, history: history}
}

// ListJobs handles GET /jobs
// @Summary      List jobs
// @Description  Returns the running jobs and the most recent finished runs
// @Tags         jobs
// @Produce      json
// @Param        limit  query     int  false  "Number of finished runs (default 20)"
// @Success      200    {object}  types.ListJobsResponse
// @Router       /jobs [get]
func (h *JobsHandler) ListJobs(c *gin.Context) {
	resp := types.ListJobsResponse{Running: h.house.Jobs().Running()}

	if h.history != nil {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit <= 0 {
			limit = 20
		}
		recent, err := h.history.Recent(c.Request.Context(), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.Recent = recent
	}

	c.JSON(http.StatusOK, resp)
}

// GetJob handles GET /jobs/:kind
// @Summary      Get the running job of a kind
// @Tags         jobs
// @Produce      json
// @Param        kind  path      string  true  "Job kind"
// @Success      200   {object}  types.JobResponse
// @Failure      400   {object}  types.ErrorResponse  "Unknown kind"
// @Failure      404   {object}  types.ErrorResponse  "No job of that kind is running"
// @Router       /jobs/{kind} [get]
func (h *JobsHandler) GetJob(c *gin.Context) {
	kind, err := jobs.ParseKind(c.Param("kind"))
	if err != nil {
		writeError(c, err)
		return
	}

	job, ok := h.house.Jobs().Active(kind)
	if !ok {
		writeError(c, fmt.Errorf("%w: no %s job running", jobs.ErrNoSuchJob, kind))
		return
	}

	c.JSON(http.StatusOK, types.JobResponse{Job: job.Snapshot()})
}

// ScheduleJob handles POST /jobs/:kind
// @Summary      Schedule a bulk job
// @Description  Starts a job of the given kind. remove-device and remove-gateway require a device address.
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        kind     path      string                    true   "Job kind"
// @Param        request  body      types.ScheduleJobRequest  false  "Job parameters"
// @Success      202      {object}  types.JobResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      409      {object}  types.ErrorResponse  "A job of that kind is already running"
// @Router       /jobs/{kind} [post]
func (h *JobsHandler) ScheduleJob(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", device.ErrValidation, err))
		return
	}

	var payload map[string]any
	if len(raw) > 0 {
		if payload, err = h.validator.ValidateJSON(nil, raw); err != nil {
			writeError(c, err)
			return
		}
	}

	kind, params, err := h.validator.ParseJob(c.Param("kind"), payload)
	if err != nil {
		writeError(c, err)
		return
	}

	job, err := h.house.Schedule(kind, params, nil)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, types.JobResponse{Job: job.Snapshot()})
}

// CancelJob handles DELETE /jobs/:kind
// @Summary      Cancel a running job
// @Description  Requests cancellation; the job stops after the device in progress
// @Tags         jobs
// @Produce      json
// @Param        kind  path      string  true  "Job kind"
// @Success      202   {object}  types.JobResponse
// @Failure      400   {object}  types.ErrorResponse  "Unknown kind"
// @Failure      404   {object}  types.ErrorResponse  "No job of that kind is running"
// @Router       /jobs/{kind} [delete]
func (h *JobsHandler) CancelJob(c *gin.Context) {
	kind, err := jobs.ParseKind(c.Param("kind"))
	if err != nil {
		writeError(c, err)
		return
	}

	job, ok := h.house.Jobs().Active(kind)
	if !ok {
		writeError(c, fmt.Errorf("%w: no %s job running", jobs.ErrNoSuchJob, kind))
		return
	}
	if err := h.house.Cancel(job); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, types.JobResponse{Job: job.Snapshot()})
}

// GetRun handles GET /runs/:id
// @Summary      Get a finished job run
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  types.JobRunResponse
// @Failure      404  {object}  types.ErrorResponse  "Run not found"
// @Router       /runs/{id} [get]
func (h *JobsHandler) GetRun(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not_found", Message: "job history is disabled"})
		return
	}

	run, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.JobRunResponse{Run: run})
}
