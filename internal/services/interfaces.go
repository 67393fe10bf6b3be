package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

// ===== GRADING =====

// GradeResult is the outcome of grading one question. IsCorrect is nil
// when the question could not be graded (open-ended without a model
// answer); such answers earn zero points without failing the attempt.
type GradeResult struct {
	IsCorrect    *bool   `json:"is_correct,omitempty"`
	PointsEarned float64 `json:"points_earned"`
	Feedback     *string `json:"feedback,omitempty"`
}

type GradingService interface {
	// GradeQuestion grades a single submitted answer. A nil or empty
	// answer is an unanswered question worth zero, never an error.
	GradeQuestion(ctx context.Context, question *models.Question, answer json.RawMessage) (*GradeResult, error)
}

// ===== MARKING =====

// MarkRequest asks the marking delegate to score one open-ended answer
// against the question's model answer.
type MarkRequest struct {
	QuestionText  string
	ModelAnswer   string
	MarkingGuide  string
	StudentAnswer string
	MaxPoints     float64
}

type MarkResult struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type MarkingService interface {
	Mark(ctx context.Context, req *MarkRequest) (*MarkResult, error)
}

// ===== QUOTA =====

// EligibilityResult explains a quota decision.
type EligibilityResult struct {
	CanAttempt bool                    `json:"can_attempt"`
	Reason     string                  `json:"reason,omitempty"`
	Tier       models.SubscriptionTier `json:"tier"`
	Allowance  int                     `json:"allowance"`
	Used       int                     `json:"used"`
	IsRetry    bool                    `json:"is_retry"`
}

type QuotaService interface {
	// CanAttempt decides whether the student may start an attempt on
	// the quiz. Premium tiers and retries of already-completed quizzes
	// always pass.
	CanAttempt(ctx context.Context, studentID string, quiz *models.Quiz) (*EligibilityResult, error)

	// RecordCompletion marks the quiz completed for quota purposes.
	// Idempotent on the completed set; the attempt counter increments
	// on every call. Must run inside the caller's transaction via the
	// tx-bound repository.
	RecordCompletion(ctx context.Context, repo repositories.Repository, studentID string, quiz *models.Quiz) error
}

// ===== MASTERY =====

type TopicCompletionResponse struct {
	SubjectID  uint    `json:"subject_id"`
	TopicID    uint    `json:"topic_id"`
	Completion float64 `json:"completion"`

	NotesComponent      float64 `json:"notes_component"`
	VideosComponent     float64 `json:"videos_component"`
	FlashcardsComponent float64 `json:"flashcards_component"`
	QuizzesComponent    float64 `json:"quizzes_component"`
}

type TopicProgress struct {
	SubjectID          uint    `json:"subject_id"`
	TopicID            uint    `json:"topic_id"`
	AttemptedCount     int     `json:"attempted_count"`
	PassedCount        int     `json:"passed_count"`
	AverageScore       float64 `json:"average_score"`
	NotesViewed        int     `json:"notes_viewed"`
	VideosWatched      int     `json:"videos_watched"`
	FlashcardsReviewed int     `json:"flashcards_reviewed"`
	Completion         float64 `json:"completion"`
}

type StudentProgressResponse struct {
	StudentID string                            `json:"student_id"`
	Stats     *repositories.StudentAttemptStats `json:"stats"`
	Topics    []*TopicProgress                  `json:"topics"`
}

type MasteryService interface {
	// RecordAttempt folds a completed attempt percentage into the
	// topic's running average and pass counters. Must run inside the
	// caller's transaction via the tx-bound repository.
	RecordAttempt(ctx context.Context, repo repositories.Repository, studentID string, subjectID, topicID uint, percentage float64) error

	// RecordContentView counts one study activity (notes, video,
	// flashcards) toward the topic.
	RecordContentView(ctx context.Context, studentID string, req *validator.ContentViewRequest) (*models.MasteryRecord, error)

	// GetTopicCompletion blends study activity and quiz passes into a
	// 0-100 completion figure per the configured policy.
	GetTopicCompletion(ctx context.Context, studentID string, subjectID, topicID uint) (*TopicCompletionResponse, error)

	GetStudentProgress(ctx context.Context, studentID string) (*StudentProgressResponse, error)
}

// ===== ATTEMPTS =====

// AttemptQuestionView is a question as shown to a student mid-attempt:
// content sanitized, answer key withheld.
type AttemptQuestionView struct {
	QuestionID uint                `json:"question_id"`
	Type       models.QuestionType `json:"type"`
	Text       string              `json:"text"`
	Points     float64             `json:"points"`
	Content    datatypes.JSON      `json:"content,omitempty"`
}

type AttemptResponse struct {
	AttemptID        uint                  `json:"attempt_id"`
	QuizID           uint                  `json:"quiz_id"`
	QuizTitle        string                `json:"quiz_title"`
	Status           models.AttemptStatus  `json:"status"`
	StartedAt        time.Time             `json:"started_at"`
	TimeLimitMinutes *int                  `json:"time_limit_minutes,omitempty"`
	InstantFeedback  bool                  `json:"instant_feedback"`
	Questions        []AttemptQuestionView `json:"questions"`
}

// SubmitAnswerResponse reports the grade for a stored answer.
// Correctness is always present; the canonical answer and explanation
// are included only when the attempt runs with instant feedback.
type SubmitAnswerResponse struct {
	QuestionID    uint     `json:"question_id"`
	Saved         bool     `json:"saved"`
	IsCorrect     *bool    `json:"is_correct,omitempty"`
	PointsEarned  *float64 `json:"points_earned,omitempty"`
	Feedback      *string  `json:"feedback,omitempty"`
	CorrectAnswer any      `json:"correct_answer,omitempty"`
	Explanation   *string  `json:"explanation,omitempty"`
}

type AttemptResultQuestion struct {
	QuestionID      uint                `json:"question_id"`
	Type            models.QuestionType `json:"type"`
	Text            string              `json:"text"`
	Points          float64             `json:"points"`
	SubmittedAnswer json.RawMessage     `json:"submitted_answer,omitempty"`
	IsCorrect       *bool               `json:"is_correct,omitempty"`
	PointsEarned    float64             `json:"points_earned"`
	Feedback        *string             `json:"feedback,omitempty"`
	CorrectAnswer   any                 `json:"correct_answer,omitempty"`
	Explanation     *string             `json:"explanation,omitempty"`
}

type AttemptResultResponse struct {
	AttemptID   uint                    `json:"attempt_id"`
	QuizID      uint                    `json:"quiz_id"`
	QuizTitle   string                  `json:"quiz_title"`
	Status      models.AttemptStatus    `json:"status"`
	Score       float64                 `json:"score"`
	MaxScore    float64                 `json:"max_score"`
	Percentage  float64                 `json:"percentage"`
	Passed      bool                    `json:"passed"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	Questions   []AttemptResultQuestion `json:"questions,omitempty"`
}

type AttemptSummary struct {
	AttemptID   uint                 `json:"attempt_id"`
	QuizID      uint                 `json:"quiz_id"`
	QuizTitle   string               `json:"quiz_title"`
	Status      models.AttemptStatus `json:"status"`
	Score       float64              `json:"score"`
	MaxScore    float64              `json:"max_score"`
	Percentage  float64              `json:"percentage"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

type AttemptListResponse struct {
	Attempts []AttemptSummary `json:"attempts"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type AttemptService interface {
	Start(ctx context.Context, studentID string, req *validator.StartAttemptRequest) (*AttemptResponse, error)
	SubmitAnswer(ctx context.Context, studentID string, attemptID uint, req *validator.SubmitAnswerRequest) (*SubmitAnswerResponse, error)
	Complete(ctx context.Context, studentID string, attemptID uint, req *validator.CompleteAttemptRequest) (*AttemptResultResponse, error)
	GetResults(ctx context.Context, studentID string, attemptID uint) (*AttemptResultResponse, error)
	GetEligibility(ctx context.Context, studentID string, quizID uint) (*EligibilityResult, error)
	ListAttempts(ctx context.Context, studentID string, filters validator.AttemptFilters) (*AttemptListResponse, error)
}

// ===== EXPORT =====

type ExportService interface {
	// AttemptHistoryWorkbook renders the student's completed attempts
	// as a spreadsheet.
	AttemptHistoryWorkbook(ctx context.Context, studentID string) (*excelize.File, error)
}

// ===== QUIZ CATALOG =====

type QuizListResponse struct {
	Quizzes []*models.Quiz `json:"quizzes"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

type QuizService interface {
	// GetByID returns the quiz without question payloads.
	GetByID(ctx context.Context, id uint) (*models.Quiz, error)

	// List returns quizzes visible to the student; premium-only
	// quizzes are filtered out for non-privileged tiers.
	List(ctx context.Context, studentID string, filters repositories.QuizFilters) (*QuizListResponse, error)
}
