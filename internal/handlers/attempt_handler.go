package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/services"
	"github.com/edutech-platform/quiz-service/internal/utils"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	exportService  services.ExportService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	exportService services.ExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		exportService:  exportService,
		validator:      validator,
	}
}

// StartAttempt starts a new quiz attempt
// @Summary Start quiz attempt
// @Description Starts a new attempt for a quiz, or resumes the open one
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body validator.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting quiz attempt")

	var req validator.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// SubmitAnswer stores one answer inside an in-progress attempt
// @Summary Submit an answer
// @Description Stores an answer for one question of the attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body validator.SubmitAnswerRequest true "Answer data"
// @Success 200 {object} services.SubmitAnswerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/answers [post]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting answer", "attempt_id", id, "question_id", req.QuestionID)

	resp, err := h.attemptService.SubmitAnswer(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CompleteAttempt finalizes an attempt and grades every question
// @Summary Complete quiz attempt
// @Description Grades all questions, records the score and returns the results
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param completion body validator.CompleteAttemptRequest false "Optional bulk answers"
// @Success 200 {object} services.AttemptResultResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/complete [post]
func (h *AttemptHandler) CompleteAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.CompleteAttemptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Completing quiz attempt", "attempt_id", id)

	result, err := h.attemptService.Complete(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttemptResults returns the graded results of a completed attempt
// @Summary Get attempt results
// @Description Returns per-question results including correct answers
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResultResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/results [get]
func (h *AttemptHandler) GetAttemptResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResults(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAttempts returns the student's attempt history
// @Summary List attempts
// @Description Lists the authenticated student's attempts, newest first
// @Tags attempts
// @Produce json
// @Param quiz_id query uint false "Filter by quiz"
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} services.AttemptListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := validator.AttemptFilters{
		QuizID: h.parseUintQuery(c, "quiz_id"),
		Limit:  h.parseIntQuery(c, "limit", 20),
		Offset: h.parseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AttemptStatus(raw)
		filters.Status = &status
	}

	resp, err := h.attemptService.ListAttempts(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetEligibility reports whether the student may attempt a quiz
// @Summary Check attempt eligibility
// @Description Explains the quota decision for the quiz without starting an attempt
// @Tags attempts
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} services.EligibilityResult
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/eligibility [get]
func (h *AttemptHandler) GetEligibility(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetEligibility(c.Request.Context(), userID, quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportAttempts downloads the attempt history as a spreadsheet
// @Summary Export attempt history
// @Description Streams the student's completed attempts as an XLSX workbook
// @Tags attempts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/export [get]
func (h *AttemptHandler) ExportAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting attempt history")

	workbook, err := h.exportService.AttemptHistoryWorkbook(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("attempt-history-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := workbook.Write(c.Writer); err != nil {
		h.LogError(c, "Failed to stream workbook", err)
	}
}

// handleServiceError maps service errors to HTTP status codes
func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: valErrs,
		})
		return
	}

	var bizErr *services.BusinessRuleError
	if errors.As(err, &bizErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: bizErr.Message,
			Details: bizErr,
		})
		return
	}

	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: permErr.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrQuizNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrAttemptAccessDenied),
		errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrAttemptAlreadyCompleted),
		errors.Is(err, services.ErrAttemptNotCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrQuestionNotInAttempt):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: err.Error()})

	default:
		h.LogError(c, "Unhandled service error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
