package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// QuestionType enumerates the question kinds the grading engine understands.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillBlank      QuestionType = "fill_blank"
	Matching       QuestionType = "matching"
	OpenEnded      QuestionType = "open_ended"
)

func (qt QuestionType) IsValid() bool {
	switch qt {
	case MultipleChoice, TrueFalse, FillBlank, Matching, OpenEnded:
		return true
	}
	return false
}

// IsAutoGradeable reports whether the type can be scored without the
// external marking delegate.
func (qt QuestionType) IsAutoGradeable() bool {
	return qt != OpenEnded
}

type Question struct {
	ID        uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	SubjectID uint         `json:"subject_id" gorm:"not null;index"`
	TopicID   uint         `json:"topic_id" gorm:"not null;index"`
	Type      QuestionType `json:"type" gorm:"not null;size:30;index" validate:"required"`
	Text      string       `json:"text" gorm:"type:text;not null" validate:"required,min=1"`
	Points    float64      `json:"points" gorm:"not null;default:1" validate:"min=0"`

	// Content holds the type-specific payload (options, correct pairs, ...).
	// The concrete shape is one of the *Content structs below.
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	// ModelAnswer and MarkingGuide are only meaningful for open-ended
	// questions. An open-ended question without a model answer cannot be
	// marked and is recorded as ungraded.
	ModelAnswer  *string `json:"model_answer,omitempty" gorm:"type:text"`
	MarkingGuide *string `json:"marking_guide,omitempty" gorm:"type:text"`
	Explanation  *string `json:"explanation,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string { return "questions" }

// ===== Type-specific content payloads =====

// MultipleChoiceContent stores the option list and the index of the
// correct option. Submissions may reference the option by index or by
// its text.
type MultipleChoiceContent struct {
	Options      []string `json:"options" validate:"required,min=2"`
	CorrectIndex int      `json:"correct_index" validate:"min=0"`
}

// CorrectText returns the text of the correct option, or "" when the
// index is out of range.
func (c *MultipleChoiceContent) CorrectText() string {
	if c.CorrectIndex < 0 || c.CorrectIndex >= len(c.Options) {
		return ""
	}
	return c.Options[c.CorrectIndex]
}

type TrueFalseContent struct {
	CorrectAnswer string `json:"correct_answer" validate:"required,oneof=true false"`
}

type FillBlankContent struct {
	CorrectAnswer string `json:"correct_answer" validate:"required"`
}

// MatchingContent maps each left-hand prompt to its right-hand match.
// A submission is correct when it contains exactly these pairs,
// regardless of order.
type MatchingContent struct {
	CorrectPairs map[string]string `json:"correct_pairs" validate:"required,min=1"`
}

// DecodeContent unmarshals the question content into the payload struct
// for the question's type. Open-ended questions carry no structured
// content and return nil.
func (q *Question) DecodeContent() (any, error) {
	switch q.Type {
	case MultipleChoice:
		var c MultipleChoiceContent
		if err := json.Unmarshal(q.Content, &c); err != nil {
			return nil, fmt.Errorf("invalid multiple choice content for question %d: %w", q.ID, err)
		}
		return &c, nil
	case TrueFalse:
		var c TrueFalseContent
		if err := json.Unmarshal(q.Content, &c); err != nil {
			return nil, fmt.Errorf("invalid true/false content for question %d: %w", q.ID, err)
		}
		return &c, nil
	case FillBlank:
		var c FillBlankContent
		if err := json.Unmarshal(q.Content, &c); err != nil {
			return nil, fmt.Errorf("invalid fill blank content for question %d: %w", q.ID, err)
		}
		return &c, nil
	case Matching:
		var c MatchingContent
		if err := json.Unmarshal(q.Content, &c); err != nil {
			return nil, fmt.Errorf("invalid matching content for question %d: %w", q.ID, err)
		}
		return &c, nil
	case OpenEnded:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported question type: %s", q.Type)
	}
}

// SanitizedContent returns a copy of the content with answer key fields
// removed, safe to hand to a student mid-attempt.
func (q *Question) SanitizedContent() (datatypes.JSON, error) {
	if len(q.Content) == 0 {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(q.Content, &raw); err != nil {
		return nil, fmt.Errorf("invalid content for question %d: %w", q.ID, err)
	}
	switch q.Type {
	case MultipleChoice:
		delete(raw, "correct_index")
	case TrueFalse, FillBlank:
		delete(raw, "correct_answer")
	case Matching:
		pairs, _ := raw["correct_pairs"].(map[string]any)
		left := make([]string, 0, len(pairs))
		right := make([]string, 0, len(pairs))
		for k, v := range pairs {
			left = append(left, k)
			if s, ok := v.(string); ok {
				right = append(right, s)
			}
		}
		delete(raw, "correct_pairs")
		raw["left_items"] = left
		raw["right_items"] = right
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}
