package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

func (s AttemptStatus) IsValid() bool {
	return s == AttemptInProgress || s == AttemptCompleted
}

type QuizAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey;autoIncrement"`
	QuizID    uint          `json:"quiz_id" gorm:"not null;index"`
	StudentID string        `json:"student_id" gorm:"not null;size:255;index"`
	Status    AttemptStatus `json:"status" gorm:"not null;size:20;default:'in_progress';index"`

	// QuestionOrder is the randomized question ID sequence snapshotted at
	// start time. It is fixed for the attempt's lifetime so concurrent
	// quiz edits cannot reshuffle an attempt in flight.
	QuestionOrder datatypes.JSON `json:"question_order" gorm:"type:jsonb"`

	Score      float64 `json:"score" gorm:"default:0"`
	MaxScore   float64 `json:"max_score" gorm:"default:0"`
	Percentage float64 `json:"percentage" gorm:"default:0"`

	// InstantFeedback and TimeLimitMinutes are copied from the quiz at
	// start so a later quiz edit does not change behavior mid-attempt.
	InstantFeedback  bool `json:"instant_feedback" gorm:"default:false"`
	TimeLimitMinutes *int `json:"time_limit_minutes,omitempty" gorm:"default:null"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Quiz    *Quiz           `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
	Answers []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuizAttempt) TableName() string { return "quiz_attempts" }

func (a *QuizAttempt) IsCompleted() bool { return a.Status == AttemptCompleted }

// OrderedQuestionIDs decodes the question order snapshot.
func (a *QuizAttempt) OrderedQuestionIDs() ([]uint, error) {
	if len(a.QuestionOrder) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := json.Unmarshal(a.QuestionOrder, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ContainsQuestion reports whether the question belongs to the
// attempt's snapshot.
func (a *QuizAttempt) ContainsQuestion(questionID uint) bool {
	ids, err := a.OrderedQuestionIDs()
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == questionID {
			return true
		}
	}
	return false
}

// AttemptAnswer records one submitted answer and its grading outcome.
// IsCorrect is nil for answers that could not be graded (open-ended
// questions without a model answer).
type AttemptAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey;autoIncrement"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	AnswerData   datatypes.JSON `json:"answer_data" gorm:"type:jsonb"`
	IsCorrect    *bool          `json:"is_correct,omitempty"`
	PointsEarned float64        `json:"points_earned" gorm:"default:0"`
	Feedback     *string        `json:"feedback,omitempty" gorm:"type:text"`

	AnsweredAt time.Time `json:"answered_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptAnswer) TableName() string { return "attempt_answers" }
