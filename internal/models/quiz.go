package models

import "time"

type Subject struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"not null;size:255" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subject) TableName() string { return "subjects" }

type Topic struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SubjectID uint      `json:"subject_id" gorm:"not null;index"`
	Name      string    `json:"name" gorm:"not null;size:255" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Topic) TableName() string { return "topics" }

type Quiz struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string `json:"title" gorm:"not null;size:255" validate:"required,min=3,max=255"`
	SubjectID uint   `json:"subject_id" gorm:"not null;index"`
	TopicID   uint   `json:"topic_id" gorm:"not null;index"`

	// PremiumOnly quizzes are visible only to privileged tiers.
	PremiumOnly bool `json:"premium_only" gorm:"default:false"`

	// InstantFeedback controls whether correctness and the canonical
	// answer are revealed on each submission rather than only after
	// completion.
	InstantFeedback bool `json:"instant_feedback" gorm:"default:false"`

	TimeLimitMinutes *int `json:"time_limit_minutes,omitempty" gorm:"default:null" validate:"omitempty,min=1"`

	Subject   *Subject       `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Topic     *Topic         `json:"topic,omitempty" gorm:"foreignKey:TopicID"`
	Questions []QuizQuestion `json:"questions,omitempty" gorm:"foreignKey:QuizID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Quiz) TableName() string { return "quizzes" }

// TotalPoints sums the points of all attached questions.
func (q *Quiz) TotalPoints() float64 {
	total := 0.0
	for _, qq := range q.Questions {
		if qq.Question != nil {
			total += qq.Question.Points
		}
	}
	return total
}

// QuizQuestion links a question into a quiz with its authored position.
// Attempts randomize this order per student at start time.
type QuizQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey;autoIncrement"`
	QuizID     uint `json:"quiz_id" gorm:"not null;index;uniqueIndex:idx_quiz_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_quiz_question"`
	Position   int  `json:"position" gorm:"not null;default:0"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`

	CreatedAt time.Time `json:"created_at"`
}

func (QuizQuestion) TableName() string { return "quiz_questions" }
