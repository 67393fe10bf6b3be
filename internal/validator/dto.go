package validator

import (
	"encoding/json"

	"github.com/edutech-platform/quiz-service/internal/models"
)

// StartAttemptRequest opens a new attempt on a quiz.
type StartAttemptRequest struct {
	QuizID uint `json:"quiz_id" validate:"required"`
}

// SubmitAnswerRequest records one answer inside an in-progress attempt.
// AnswerData is the raw type-specific payload: an option index or text
// for multiple choice, a string for true/false, fill-in-blank and
// open-ended, and a pair map for matching.
type SubmitAnswerRequest struct {
	QuestionID uint            `json:"question_id" validate:"required"`
	AnswerData json.RawMessage `json:"answer_data" validate:"required"`
}

// CompleteAttemptRequest finalizes an attempt. Answers optionally
// carries a bulk question-to-answer map submitted together with the
// completion; entries overwrite any previously stored answers.
type CompleteAttemptRequest struct {
	Answers map[uint]json.RawMessage `json:"answers,omitempty"`
}

// ContentViewRequest records one study activity toward topic mastery.
type ContentViewRequest struct {
	SubjectID   uint               `json:"subject_id" validate:"required"`
	TopicID     uint               `json:"topic_id" validate:"required"`
	ContentType models.ContentType `json:"content_type" validate:"required,content_type"`
}

// AttemptFilters narrows attempt history queries.
type AttemptFilters struct {
	QuizID *uint                 `json:"quiz_id,omitempty"`
	Status *models.AttemptStatus `json:"status,omitempty"`
	Limit  int                   `json:"limit" validate:"min=0,max=100"`
	Offset int                   `json:"offset" validate:"min=0"`
}
