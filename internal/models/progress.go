package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// QuotaRecord tracks a student's quiz usage within one topic of one
// subject. CompletedQuizIDs is a set: retrying a quiz already in the
// set never consumes allowance. AttemptCount counts every completion
// including retries.
type QuotaRecord struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_quota_key"`
	SubjectID uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_quota_key"`
	TopicID   uint   `json:"topic_id" gorm:"not null;uniqueIndex:idx_quota_key"`

	CompletedQuizIDs datatypes.JSON `json:"completed_quiz_ids" gorm:"type:jsonb"`
	AttemptCount     int            `json:"attempt_count" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuotaRecord) TableName() string { return "quota_records" }

func (r *QuotaRecord) CompletedSet() ([]uint, error) {
	if len(r.CompletedQuizIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := json.Unmarshal(r.CompletedQuizIDs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *QuotaRecord) HasCompleted(quizID uint) bool {
	ids, err := r.CompletedSet()
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == quizID {
			return true
		}
	}
	return false
}

// AddCompleted adds the quiz to the set if absent and reports whether
// the set changed.
func (r *QuotaRecord) AddCompleted(quizID uint) (bool, error) {
	ids, err := r.CompletedSet()
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == quizID {
			return false, nil
		}
	}
	ids = append(ids, quizID)
	raw, err := json.Marshal(ids)
	if err != nil {
		return false, err
	}
	r.CompletedQuizIDs = raw
	return true, nil
}

// MasteryRecord aggregates a student's performance and study activity
// within one topic. AverageScore is the running mean of attempt
// percentages.
type MasteryRecord struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_mastery_key"`
	SubjectID uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_mastery_key"`
	TopicID   uint   `json:"topic_id" gorm:"not null;uniqueIndex:idx_mastery_key"`

	AttemptedCount int     `json:"attempted_count" gorm:"default:0"`
	PassedCount    int     `json:"passed_count" gorm:"default:0"`
	AverageScore   float64 `json:"average_score" gorm:"default:0"`

	NotesViewed        int `json:"notes_viewed" gorm:"default:0"`
	VideosWatched      int `json:"videos_watched" gorm:"default:0"`
	FlashcardsReviewed int `json:"flashcards_reviewed" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MasteryRecord) TableName() string { return "mastery_records" }

// ApplyAttempt folds one completed attempt percentage into the running
// mean and pass counters. The old average is weighted by the attempt
// count before this attempt.
func (r *MasteryRecord) ApplyAttempt(percentage float64, passThreshold float64) {
	newCount := r.AttemptedCount + 1
	r.AverageScore = (r.AverageScore*float64(r.AttemptedCount) + percentage) / float64(newCount)
	r.AttemptedCount = newCount
	if percentage >= passThreshold {
		r.PassedCount++
	}
}

// ContentType enumerates the study activities counted toward topic
// completion.
type ContentType string

const (
	ContentNotes      ContentType = "notes"
	ContentVideo      ContentType = "video"
	ContentFlashcards ContentType = "flashcards"
)

func (ct ContentType) IsValid() bool {
	switch ct {
	case ContentNotes, ContentVideo, ContentFlashcards:
		return true
	}
	return false
}
