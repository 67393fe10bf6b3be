package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/services"
	"github.com/edutech-platform/quiz-service/internal/utils"
)

type QuizHandler struct {
	BaseHandler
	quizService services.QuizService
}

func NewQuizHandler(quizService services.QuizService, logger utils.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		quizService: quizService,
	}
}

// ListQuizzes lists quizzes visible to the student
// @Summary List quizzes
// @Description Lists quizzes; premium-only quizzes are hidden from free tiers
// @Tags quizzes
// @Produce json
// @Param subject_id query uint false "Filter by subject"
// @Param topic_id query uint false "Filter by topic"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} services.QuizListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes [get]
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := repositories.QuizFilters{
		SubjectID: h.parseUintQuery(c, "subject_id"),
		TopicID:   h.parseUintQuery(c, "topic_id"),
		Limit:     h.parseIntQuery(c, "limit", 20),
		Offset:    h.parseIntQuery(c, "offset", 0),
	}

	resp, err := h.quizService.List(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetQuiz returns one quiz without its question payloads
// @Summary Get quiz
// @Description Returns quiz metadata; questions are only exposed through attempts
// @Tags quizzes
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} models.Quiz
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id} [get]
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	quiz, err := h.quizService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

func (h *QuizHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrQuizNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
	default:
		h.LogError(c, "Unhandled service error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
