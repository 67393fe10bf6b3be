package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB, _ *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (r *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Upsert writes the answer, replacing any previous submission for the
// same attempt and question. Resubmitting a question overwrites rather
// than appends.
func (r *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"answer_data", "is_correct", "points_earned", "feedback", "answered_at", "updated_at",
			}),
		}).
		Create(answer).Error
}

func (r *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error) {
	db := r.getDB(tx)
	var answers []*models.AttemptAnswer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt answers: %w", err)
	}
	return answers, nil
}

func (r *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.AttemptAnswer, error) {
	db := r.getDB(tx)
	var answer models.AttemptAnswer
	if err := db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}
