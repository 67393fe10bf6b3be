package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/cache"
	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	db := a.getDB(tx)
	var attempt models.QuizAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	db := a.getDB(tx)
	var attempt models.QuizAttempt
	if err := db.WithContext(ctx).
		Preload("Quiz").
		Preload("Answers").
		Preload("Answers.Question").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Finalize writes the completed state, guarded on the row still being
// in progress. Zero affected rows means another writer completed the
// attempt first; callers get ErrRecordNotFound and must not apply
// completion side effects again.
func (a *AttemptPostgreSQL) Finalize(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("id = ? AND status = ?", attempt.ID, models.AttemptInProgress).
		Updates(map[string]any{
			"status":       attempt.Status,
			"score":        attempt.Score,
			"max_score":    attempt.MaxScore,
			"percentage":   attempt.Percentage,
			"completed_at": attempt.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeDelete(ctx, a.cacheManager.Fast, fmt.Sprintf("attempt:%d", attempt.ID))
	return nil
}

// GetInProgress returns the student's open attempt on the quiz, if any.
func (a *AttemptPostgreSQL) GetInProgress(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.QuizAttempt, error) {
	db := a.getDB(tx)
	var attempt models.QuizAttempt
	err := db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ? AND status = ?", quizID, studentID, models.AttemptInProgress).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	db := a.getDB(tx)

	query := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("student_id = ?", studentID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var attempts []*models.QuizAttempt
	if err := query.Preload("Quiz").Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string) (*repositories.StudentAttemptStats, error) {
	db := a.getDB(tx)

	stats := &repositories.StudentAttemptStats{}

	var total int64
	if err := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("student_id = ?", studentID).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	stats.TotalAttempts = int(total)

	row := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Select("COUNT(*), COALESCE(AVG(percentage), 0), COALESCE(MAX(percentage), 0)").
		Where("student_id = ? AND status = ?", studentID, models.AttemptCompleted).
		Row()
	if err := row.Scan(&stats.CompletedAttempts, &stats.AverageScore, &stats.BestScore); err != nil {
		return nil, fmt.Errorf("failed to aggregate attempt stats: %w", err)
	}
	return stats, nil
}
