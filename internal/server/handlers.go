package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/model"
)

// errorBody is the uniform JSON error envelope.
type errorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// asyncTaskBody is the response to an async submission.
type asyncTaskBody struct {
	Success bool             `json:"success"`
	TaskID  string           `json:"task_id"`
	Status  model.TaskStatus `json:"status"`
	Message string           `json:"message"`
}

// taskStatusBody wraps a task record for polling clients.
type taskStatusBody struct {
	Success bool `json:"success"`
	model.Task
}

// resultBody wraps a synchronous classification result.
type resultBody struct {
	Success bool `json:"success"`
	model.ClassificationResult
}

// reconcileBody reports the outcome of a synchronous reconcile.
type reconcileBody struct {
	Success  bool                       `json:"success"`
	RecordID string                     `json:"record_id"`
	Category string                     `json:"category"`
	Status   model.ReviewStatus         `json:"status"`
	Amount   *float64                   `json:"amount"`
	Result   model.ClassificationResult `json:"result"`
}

func (s *Server) abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorBody{
		Success:   false,
		Error:     err.Error(),
		RequestID: c.GetString("request_id"),
	})
}

// readUpload extracts and size-checks the uploaded file. Type checking
// happens in the engine, where the payload is decoded for the model.
func (s *Server) readUpload(c *gin.Context) ([]byte, string, bool) {
	maxBytes := int64(s.cfg.Uploads.MaxSizeMB) << 20

	header, err := c.FormFile("file")
	if err != nil {
		s.abortError(c, http.StatusBadRequest, errors.New("missing file upload"))
		return nil, "", false
	}

	if header.Size > maxBytes {
		s.abortError(c, http.StatusRequestEntityTooLarge, common.ErrFileTooLarge)
		return nil, "", false
	}

	file, err := header.Open()
	if err != nil {
		s.abortError(c, http.StatusBadRequest, err)
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		s.abortError(c, http.StatusBadRequest, err)
		return nil, "", false
	}
	if int64(len(content)) > maxBytes {
		s.abortError(c, http.StatusRequestEntityTooLarge, common.ErrFileTooLarge)
		return nil, "", false
	}

	filename := header.Filename
	if filename == "" {
		filename = "unknown"
	}

	return content, filename, true
}

// classifyStatus maps engine errors to HTTP statuses.
func classifyStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrUnsupportedFileType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, common.ErrClassifierUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, common.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrStoreWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// categorizeImage handles POST /images/categorize: the synchronous path.
func (s *Server) categorizeImage(c *gin.Context) {
	content, filename, ok := s.readUpload(c)
	if !ok {
		return
	}

	result, err := s.engine.ClassifySynchronously(c.Request.Context(), content, filename)
	if err != nil {
		s.abortError(c, classifyStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, resultBody{Success: true, ClassificationResult: result})
}

// categorizeImageAsync handles POST /images/categorize/async: schedules a
// background job and returns the task id for polling. An optional record_id
// form field attaches reconciliation to the job.
func (s *Server) categorizeImageAsync(c *gin.Context) {
	content, filename, ok := s.readUpload(c)
	if !ok {
		return
	}

	recordID := c.PostForm("record_id")
	taskID := s.engine.ScheduleClassification(content, filename, recordID)

	c.JSON(http.StatusAccepted, asyncTaskBody{
		Success: true,
		TaskID:  taskID,
		Status:  model.TaskPending,
		Message: "Image '" + filename + "' queued for processing",
	})
}

// taskStatus handles GET /images/task/:id. An unknown id yields a 404
// envelope, never an error from the polling call itself.
func (s *Server) taskStatus(c *gin.Context) {
	task, ok := s.engine.TaskStatus(c.Param("id"))
	if !ok {
		s.abortError(c, http.StatusNotFound, common.ErrTaskNotFound)
		return
	}

	c.JSON(http.StatusOK, taskStatusBody{Success: true, Task: task})
}

// reconcileRecord handles POST /records/:id/reconcile: classify the upload
// inline and apply the result to the record.
func (s *Server) reconcileRecord(c *gin.Context) {
	content, filename, ok := s.readUpload(c)
	if !ok {
		return
	}

	recordID := c.Param("id")
	result, decision, err := s.engine.ClassifyAndReconcile(c.Request.Context(), recordID, content, filename)
	if err != nil {
		s.abortError(c, classifyStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, reconcileBody{
		Success:  true,
		RecordID: recordID,
		Category: decision.Category,
		Status:   decision.Status,
		Amount:   decision.AmountOverride,
		Result:   result,
	})
}

// validateRecord handles POST /records/validate: a connectivity check that
// echoes the submitted record id.
func (s *Server) validateRecord(c *gin.Context) {
	var req struct {
		RecordID string `json:"record_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, http.StatusUnprocessableEntity, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "OK",
		"record_id": req.RecordID,
	})
}

// health handles GET /health with per-collaborator checks.
func (s *Server) health(c *gin.Context) {
	checks := s.engine.Health(c.Request.Context())

	status := "healthy"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"version":   s.version,
		"timestamp": time.Now(),
		"checks":    checks,
	})
}
