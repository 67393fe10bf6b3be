package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

type MasteryPostgreSQL struct {
	db *gorm.DB
}

func NewMasteryPostgreSQL(db *gorm.DB) repositories.MasteryRepository {
	return &MasteryPostgreSQL{db: db}
}

func (r *MasteryPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *MasteryPostgreSQL) Get(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.MasteryRecord, error) {
	db := r.getDB(tx)
	var record models.MasteryRecord
	err := db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND topic_id = ?", studentID, subjectID, topicID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetOrCreateForUpdate has the same locking contract as the quota
// repository: call inside a transaction, the row lock serializes
// concurrent read-modify-write cycles per key.
func (r *MasteryPostgreSQL) GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, studentID string, subjectID, topicID uint) (*models.MasteryRecord, error) {
	db := r.getDB(tx)

	var record models.MasteryRecord
	err := lockForUpdate(db.WithContext(ctx)).
		Where("student_id = ? AND subject_id = ? AND topic_id = ?", studentID, subjectID, topicID).
		First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to lock mastery record: %w", err)
	}

	record = models.MasteryRecord{
		StudentID: studentID,
		SubjectID: subjectID,
		TopicID:   topicID,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create mastery record: %w", err)
	}
	return &record, nil
}

func (r *MasteryPostgreSQL) Update(ctx context.Context, tx *gorm.DB, record *models.MasteryRecord) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).Save(record).Error
}

func (r *MasteryPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.MasteryRecord, error) {
	db := r.getDB(tx)
	var records []*models.MasteryRecord
	if err := db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("subject_id ASC, topic_id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list mastery records: %w", err)
	}
	return records, nil
}
