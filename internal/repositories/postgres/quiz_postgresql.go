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

type QuizPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuizPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuizRepository {
	return &QuizPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *QuizPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *QuizPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	db := r.getDB(tx)
	var quiz models.Quiz
	if err := db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

// GetByIDWithQuestions loads the quiz with its question list ordered by
// authored position. Attempt starts snapshot and reshuffle this order.
func (r *QuizPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	db := r.getDB(tx)

	cacheKey := fmt.Sprintf("id:%d:full", id)
	var quiz models.Quiz

	err := r.cacheManager.Quiz.CacheOrExecute(ctx, cacheKey, &quiz, cache.QuizCacheConfig.TTL, func() (interface{}, error) {
		var dbQuiz models.Quiz
		if err := db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("quiz_questions.position ASC")
			}).
			Preload("Questions.Question").
			Preload("Subject").
			Preload("Topic").
			First(&dbQuiz, id).Error; err != nil {
			return nil, err
		}
		return &dbQuiz, nil
	})
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	db := r.getDB(tx)

	query := db.WithContext(ctx).Model(&models.Quiz{})
	query = r.helpers.ApplyQuizFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count quizzes: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var quizzes []*models.Quiz
	if err := query.Find(&quizzes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list quizzes: %w", err)
	}
	return quizzes, total, nil
}
