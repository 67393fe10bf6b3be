package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

type QuotaPostgreSQL struct {
	db *gorm.DB
}

func NewQuotaPostgreSQL(db *gorm.DB) repositories.QuotaRepository {
	return &QuotaPostgreSQL{db: db}
}

func (r *QuotaPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *QuotaPostgreSQL) Get(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.QuotaRecord, error) {
	db := r.getDB(tx)
	var record models.QuotaRecord
	err := db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND topic_id = ?", studentID, subjectID, topicID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetOrCreateForUpdate loads the record under a row lock, creating it
// first if absent. Must be called inside a transaction; the lock holds
// until that transaction ends, serializing concurrent completions for
// the same student/subject/topic key.
func (r *QuotaPostgreSQL) GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.QuotaRecord, error) {
	db := r.getDB(tx)

	var record models.QuotaRecord
	err := lockForUpdate(db.WithContext(ctx)).
		Where("student_id = ? AND subject_id = ? AND topic_id = ?", studentID, subjectID, topicID).
		First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to lock quota record: %w", err)
	}

	record = models.QuotaRecord{
		StudentID: studentID,
		SubjectID: subjectID,
		TopicID:   topicID,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create quota record: %w", err)
	}
	return &record, nil
}

func (r *QuotaPostgreSQL) Update(ctx context.Context, tx *gorm.DB, record *models.QuotaRecord) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).Save(record).Error
}
