package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edutech-platform/quiz-service/internal/services"
	"github.com/edutech-platform/quiz-service/internal/utils"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

type ProgressHandler struct {
	BaseHandler
	masteryService services.MasteryService
	validator      *validator.Validator
}

func NewProgressHandler(
	masteryService services.MasteryService,
	validator *validator.Validator,
	logger utils.Logger,
) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:    NewBaseHandler(logger),
		masteryService: masteryService,
		validator:      validator,
	}
}

// RecordContentView counts a study activity toward topic mastery
// @Summary Record content view
// @Description Counts one notes view, video watch or flashcard review for the topic
// @Tags progress
// @Accept json
// @Produce json
// @Param view body validator.ContentViewRequest true "Content view data"
// @Success 200 {object} models.MasteryRecord
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/content-views [post]
func (h *ProgressHandler) RecordContentView(c *gin.Context) {
	var req validator.ContentViewRequest
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

	h.LogRequest(c, "Recording content view",
		"subject_id", req.SubjectID,
		"topic_id", req.TopicID,
		"content_type", req.ContentType)

	record, err := h.masteryService.RecordContentView(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetTopicCompletion returns the blended topic completion percentage
// @Summary Get topic completion
// @Description Blends study activity and quiz passes into a completion figure
// @Tags progress
// @Produce json
// @Param subject_id path uint true "Subject ID"
// @Param topic_id path uint true "Topic ID"
// @Success 200 {object} services.TopicCompletionResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/subjects/{subject_id}/topics/{topic_id}/completion [get]
func (h *ProgressHandler) GetTopicCompletion(c *gin.Context) {
	subjectID := h.parseIDParam(c, "subject_id")
	if subjectID == 0 {
		return
	}
	topicID := h.parseIDParam(c, "topic_id")
	if topicID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	resp, err := h.masteryService.GetTopicCompletion(c.Request.Context(), userID, subjectID, topicID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStudentProgress returns the student's overall progress
// @Summary Get student progress
// @Description Returns attempt statistics and per-topic mastery
// @Tags progress
// @Produce json
// @Success 200 {object} services.StudentProgressResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress [get]
func (h *ProgressHandler) GetStudentProgress(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	resp, err := h.masteryService.GetStudentProgress(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ProgressHandler) handleServiceError(c *gin.Context, err error) {
	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: valErrs,
		})
		return
	}

	if errors.Is(err, services.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}

	h.LogError(c, "Unhandled service error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
	})
}
