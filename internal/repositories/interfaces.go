package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	SubjectID   *uint  `json:"subject_id"`
	TopicID     *uint  `json:"topic_id"`
	PremiumOnly *bool  `json:"premium_only"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
	SortBy      string `json:"sort_by"`    // "created_at", "title"
	SortOrder   string `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	QuizID    *uint                 `json:"quiz_id"`
	Status    *models.AttemptStatus `json:"status"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type StudentAttemptStats struct {
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	AverageScore      float64 `json:"average_score"`
	BestScore         float64 `json:"best_score"`
}

// ===== REPOSITORY INTERFACES =====

type QuizRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	List(ctx context.Context, tx *gorm.DB, filters QuizFilters) ([]*models.Quiz, int64, error)
}

type QuestionRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	Finalize(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	GetInProgress(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.QuizAttempt, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string) (*StudentAttemptStats, error)
}

type AnswerRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error)
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.AttemptAnswer, error)
}

// QuotaRepository persists per-student usage records. GetOrCreateForUpdate
// takes a row lock inside the caller's transaction so concurrent
// completions for the same key serialize.
type QuotaRepository interface {
	Get(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.QuotaRecord, error)
	GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.QuotaRecord, error)
	Update(ctx context.Context, tx *gorm.DB, record *models.QuotaRecord) error
}

// MasteryRepository persists per-topic aggregates with the same locking
// contract as QuotaRepository.
type MasteryRepository interface {
	Get(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.MasteryRecord, error)
	GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.MasteryRecord, error)
	Update(ctx context.Context, tx *gorm.DB, record *models.MasteryRecord) error
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.MasteryRecord, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
