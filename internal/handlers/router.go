package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/repositories/casdoor"
	"github.com/edutech-platform/quiz-service/internal/services"
	"github.com/edutech-platform/quiz-service/internal/utils"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

// HandlerManager wires services into HTTP handlers and owns the route
// table.
type HandlerManager struct {
	attemptHandler  *AttemptHandler
	progressHandler *ProgressHandler
	quizHandler     *QuizHandler
	authMiddleware  *CasdoorAuthMiddleware
	repoManager     repositories.RepositoryManager
	logger          utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig casdoor.CasdoorConfig,
	repoManager repositories.RepositoryManager,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), serviceManager.Export(), validator, logger),
		progressHandler: NewProgressHandler(serviceManager.Mastery(), validator, logger),
		quizHandler:     NewQuizHandler(serviceManager.Quiz(), logger),
		authMiddleware:  NewCasdoorAuthMiddleware(casdoorConfig, userRepo),
		repoManager:     repoManager,
		logger:          logger,
	}
}

// SetupRoutes registers all API routes on the router.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		quizzes := v1.Group("/quizzes")
		{
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.GET("/:id/eligibility", hm.withQuizIDAlias(hm.attemptHandler.GetEligibility))
		}

		attempts := v1.Group("/attempts")
		attempts.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent))
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/export", hm.attemptHandler.ExportAttempts)
			attempts.POST("/:id/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/complete", hm.attemptHandler.CompleteAttempt)
			attempts.GET("/:id/results", hm.attemptHandler.GetAttemptResults)
		}

		progress := v1.Group("/progress")
		progress.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent))
		{
			progress.GET("", hm.progressHandler.GetStudentProgress)
			progress.POST("/content-views", hm.progressHandler.RecordContentView)
			progress.GET("/subjects/:subject_id/topics/:topic_id/completion", hm.progressHandler.GetTopicCompletion)
		}
	}
}

// withQuizIDAlias maps the :id path parameter onto :quiz_id so the
// eligibility handler can live under /quizzes.
func (hm *HandlerManager) withQuizIDAlias(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Params = append(c.Params, gin.Param{Key: "quiz_id", Value: c.Param("id")})
		handler(c)
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.repoManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
