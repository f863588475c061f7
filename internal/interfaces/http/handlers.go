package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finclose/close-engine/internal/application/service"
	"github.com/finclose/close-engine/internal/domain/approval"
	"github.com/finclose/close-engine/internal/domain/stepgraph"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService service.ApprovalService
	workflowService service.WorkflowService
	auditService    service.AuditService
	exportService   service.ExportService
	maxLogRangeDays int
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	workflowService service.WorkflowService,
	auditService service.AuditService,
	exportService service.ExportService,
	maxLogRangeDays int,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService: approvalService,
		workflowService: workflowService,
		auditService:    auditService,
		exportService:   exportService,
		maxLogRangeDays: maxLogRangeDays,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateBatchRequest is the body for POST /v1/batches
type CreateBatchRequest struct {
	BatchID     string `json:"batch_id" binding:"required"`
	BatchDate   string `json:"batch_date" binding:"required"`
	DataSummary string `json:"data_summary"`
}

// RejectRequest is the body for rejection endpoints
type RejectRequest struct {
	Reason string `json:"reason"`
}

// CommentRequest is the body for POST /v1/report-comments
type CommentRequest struct {
	BatchID string `json:"batch_id" binding:"required"`
	Text    string `json:"text"`
}

// StepCommentRequest is the body for step comment posts
type StepCommentRequest struct {
	Text string `json:"text"`
}

// AssignRequest is the body for step owner assignment
type AssignRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// DueDateRequest is the body for step due date updates
type DueDateRequest struct {
	DueDate string `json:"due_date" binding:"required"`
}

// TaskRequest is the body for adding a checklist task
type TaskRequest struct {
	Name string `json:"name" binding:"required"`
	Link string `json:"link"`
}

// DecisionResponse is returned by approve/reject endpoints
type DecisionResponse struct {
	BatchID   string `json:"batch_id"`
	NewStatus string `json:"new_status"`
	Reopened  bool   `json:"reopened"`
	Revision  int64  `json:"revision"`
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, approval.ErrValidation), errors.Is(err, service.ErrEmptyComment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, approval.ErrPrerequisiteNotMet),
		errors.Is(err, approval.ErrAlreadyApproved),
		errors.Is(err, stepgraph.ErrTasksIncomplete),
		errors.Is(err, stepgraph.ErrStepBlocked),
		errors.Is(err, service.ErrBatchExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrBatchNotFound),
		errors.Is(err, stepgraph.ErrStepNotFound),
		errors.Is(err, stepgraph.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrInvalidLevel), errors.Is(err, approval.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		// ErrInvalidGraph lands here: a corrupt stored workflow is a
		// server fault, not a caller error.
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	c.JSON(statusForError(err), Response{
		Success: false,
		Error:   err.Error(),
	})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// setRevision exposes the batch revision as an ETag for staleness checks
func setRevision(c *gin.Context, revision int64) {
	c.Header("ETag", `"`+strconv.FormatInt(revision, 10)+`"`)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateBatch handles POST /v1/batches
func (h *Handlers) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "batch_id and batch_date are required")
		return
	}
	batchDate, err := time.Parse("2006-01-02", req.BatchDate)
	if err != nil {
		h.badRequest(c, "batch_date must be YYYY-MM-DD")
		return
	}

	batch, err := h.approvalService.CreateBatch(c.Request.Context(), req.BatchID, batchDate, req.DataSummary)
	if err != nil {
		h.fail(c, err)
		return
	}

	setRevision(c, batch.Revision)
	c.JSON(http.StatusCreated, Response{Success: true, Data: batch})
}

// ListBatches handles GET /v1/batches
func (h *Handlers) ListBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	batches, err := h.approvalService.ListBatches(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: batches})
}

// GetBatch handles GET /v1/batches/:batchId
func (h *Handlers) GetBatch(c *gin.Context) {
	batch, err := h.approvalService.GetBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	setRevision(c, batch.Revision)
	c.JSON(http.StatusOK, Response{Success: true, Data: batch})
}

// LevelStatus handles GET /v1/approvals/level{N}/:batchId. It reports the
// batch status from the level's point of view; an unmet prerequisite is a
// 400 with the precise condition so the caller can render a disabled action.
func (h *Handlers) LevelStatus(level int) gin.HandlerFunc {
	return func(c *gin.Context) {
		batch, err := h.approvalService.GetBatch(c.Request.Context(), c.Param("batchId"))
		if err != nil {
			h.fail(c, err)
			return
		}

		setRevision(c, batch.Revision)
		data := gin.H{
			"batch_id": batch.ID,
			"status":   batch.ApprovalStatus,
			"reopened": batch.Reopened,
			"can_act":  approval.CanAct(batch.ApprovalStatus, level),
			"summary":  batch.DataSummary,
		}

		if !approval.CanAct(batch.ApprovalStatus, level) && batch.ApprovalStatus.Rank() < level {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Data:    data,
				Error:   fmt.Sprintf("level %d approval required first", level-1),
			})
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: data})
	}
}

// Approve handles POST /v1/approvals/level{N}/:batchId/approve
func (h *Handlers) Approve(level int) gin.HandlerFunc {
	return func(c *gin.Context) {
		batch, err := h.approvalService.Approve(c.Request.Context(), c.Param("batchId"), level, callerID(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		setRevision(c, batch.Revision)
		c.JSON(http.StatusOK, Response{Success: true, Data: DecisionResponse{
			BatchID:   batch.ID,
			NewStatus: batch.ApprovalStatus.String(),
			Reopened:  batch.Reopened,
			Revision:  batch.Revision,
		}})
	}
}

// Reject handles POST /v1/approvals/level{N}/:batchId/reject
func (h *Handlers) Reject(level int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RejectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "request body must be JSON with a reason field")
			return
		}
		batch, err := h.approvalService.Reject(c.Request.Context(), c.Param("batchId"), level, callerID(c), req.Reason)
		if err != nil {
			h.fail(c, err)
			return
		}
		setRevision(c, batch.Revision)
		c.JSON(http.StatusOK, Response{Success: true, Data: DecisionResponse{
			BatchID:   batch.ID,
			NewStatus: batch.ApprovalStatus.String(),
			Reopened:  batch.Reopened,
			Revision:  batch.Revision,
		}})
	}
}

// ListRejectFinal handles GET /v1/approvals/reject-final
func (h *Handlers) ListRejectFinal(c *gin.Context) {
	batches, err := h.approvalService.ListFinalApproved(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: batches})
}

// RejectFinal handles POST /v1/approvals/reject-final/:batchId
func (h *Handlers) RejectFinal(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "request body must be JSON with a reason field")
		return
	}
	batch, err := h.approvalService.RejectFinal(c.Request.Context(), c.Param("batchId"), callerID(c), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	setRevision(c, batch.Revision)
	c.JSON(http.StatusOK, Response{Success: true, Data: DecisionResponse{
		BatchID:   batch.ID,
		NewStatus: batch.ApprovalStatus.String(),
		Reopened:  batch.Reopened,
		Revision:  batch.Revision,
	}})
}

// History handles GET /v1/approvals/:batchId/history
func (h *Handlers) History(c *gin.Context) {
	records, err := h.approvalService.History(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ListComments handles GET /v1/report-comments?batchId=...
func (h *Handlers) ListComments(c *gin.Context) {
	batchID := c.Query("batchId")
	if batchID == "" {
		h.badRequest(c, "batchId query parameter is required")
		return
	}
	comments, err := h.approvalService.Comments(c.Request.Context(), batchID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: comments})
}

// AddComment handles POST /v1/report-comments
func (h *Handlers) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "batch_id is required")
		return
	}
	comment, err := h.approvalService.AddComment(c.Request.Context(), req.BatchID, callerID(c), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: comment})
}

// parseDateRange reads startDate/endDate query params; the end date is
// inclusive through end of day. An omitted start date falls back to the
// configured lookback window so the default query stays within the cap.
func (h *Handlers) parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endStr := c.Query("endDate"); endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("endDate must be YYYY-MM-DD")
		}
		end = parsed.AddDate(0, 0, 1).Add(-time.Second)
	}

	startStr := c.Query("startDate")
	if startStr == "" {
		if h.maxLogRangeDays > 0 {
			return end.AddDate(0, 0, -h.maxLogRangeDays).Add(time.Second), end, nil
		}
		return time.Unix(0, 0).UTC(), end, nil
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("startDate must be YYYY-MM-DD")
	}
	return start, end, nil
}

// ApprovalLogs handles GET /v1/approval-logs?startDate&endDate
func (h *Handlers) ApprovalLogs(c *gin.Context) {
	start, end, err := h.parseDateRange(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	records, err := h.auditService.Logs(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ExportApprovalLogs handles GET /v1/approval-logs/export
func (h *Handlers) ExportApprovalLogs(c *gin.Context) {
	start, end, err := h.parseDateRange(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	buf, err := h.exportService.ApprovalLogs(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="approval-logs.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// WorkflowStatus handles GET /v1/monthly-workflow/:batchId
func (h *Handlers) WorkflowStatus(c *gin.Context) {
	status, err := h.workflowService.Status(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// StepDetail handles GET /v1/monthly-workflow/:batchId/steps/:stepId
func (h *Handlers) StepDetail(c *gin.Context) {
	detail, err := h.workflowService.StepDetail(c.Request.Context(), c.Param("batchId"), c.Param("stepId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// CompleteStep handles POST /v1/monthly-workflow/:batchId/steps/:stepId/complete
func (h *Handlers) CompleteStep(c *gin.Context) {
	status, err := h.workflowService.CompleteStep(c.Request.Context(), c.Param("batchId"), c.Param("stepId"), callerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// AssignOwner handles POST /v1/monthly-workflow/:batchId/steps/:stepId/assign
func (h *Handlers) AssignOwner(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "user_id is required")
		return
	}
	step, err := h.workflowService.AssignOwner(c.Request.Context(), c.Param("batchId"), c.Param("stepId"), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: step})
}

// SetDueDate handles POST /v1/monthly-workflow/:batchId/steps/:stepId/due-date
func (h *Handlers) SetDueDate(c *gin.Context) {
	var req DueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "due_date is required")
		return
	}
	due, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		h.badRequest(c, "due_date must be YYYY-MM-DD")
		return
	}
	result, err := h.workflowService.SetDueDate(c.Request.Context(), c.Param("batchId"), c.Param("stepId"), due)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// AddTask handles POST /v1/monthly-workflow/:batchId/steps/:stepId/tasks
func (h *Handlers) AddTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "name is required")
		return
	}
	step, err := h.workflowService.AddTask(c.Request.Context(), c.Param("batchId"), c.Param("stepId"), req.Name, req.Link)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: step})
}

// ToggleTask handles POST /v1/monthly-workflow/:batchId/steps/:stepId/tasks/:taskId/toggle
func (h *Handlers) ToggleTask(c *gin.Context) {
	step, err := h.workflowService.ToggleTask(c.Request.Context(), c.Param("batchId"), c.Param("stepId"), c.Param("taskId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: step})
}

// StepComments handles GET /v1/monthly-workflow/:batchId/steps/:stepId/comments
func (h *Handlers) StepComments(c *gin.Context) {
	comments, err := h.workflowService.StepComments(c.Request.Context(), c.Param("batchId"), c.Param("stepId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: comments})
}

// AddStepComment handles POST /v1/monthly-workflow/:batchId/steps/:stepId/comments
func (h *Handlers) AddStepComment(c *gin.Context) {
	var req StepCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "request body must be JSON with a text field")
		return
	}
	comment, err := h.workflowService.AddStepComment(c.Request.Context(), c.Param("batchId"), c.Param("stepId"), callerID(c), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: comment})
}

// Progress handles GET /v1/monthly-workflow/:batchId/progress
func (h *Handlers) Progress(c *gin.Context) {
	status, err := h.workflowService.Status(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status.Progress})
}

// ExportWorkflow handles GET /v1/monthly-workflow/:batchId/export
func (h *Handlers) ExportWorkflow(c *gin.Context) {
	buf, err := h.exportService.WorkflowStatus(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="workflow-status.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
