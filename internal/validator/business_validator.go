package validator

import (
	"encoding/json"
	"fmt"

	"github.com/edutech-platform/quiz-service/internal/models"
)

// BusinessValidator checks rules that plain struct tags cannot express,
// mainly that a submitted answer payload has the right shape for the
// question type it targets.
type BusinessValidator struct{}

func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{}
}

// ValidateAnswerPayload checks the submitted payload against the
// question type. A missing or null payload is allowed everywhere; the
// grader treats it as an unanswered question worth zero.
func (bv *BusinessValidator) ValidateAnswerPayload(qt models.QuestionType, payload json.RawMessage) ValidationErrors {
	if isEmptyJSON(payload) {
		return nil
	}

	switch qt {
	case models.MultipleChoice:
		var idx int
		if json.Unmarshal(payload, &idx) == nil {
			return nil
		}
		var text string
		if json.Unmarshal(payload, &text) == nil {
			return nil
		}
		return singleError("answer_data", "multiple choice answers must be an option index or option text")

	case models.TrueFalse, models.FillBlank, models.OpenEnded:
		var text string
		if json.Unmarshal(payload, &text) == nil {
			return nil
		}
		return singleError("answer_data", fmt.Sprintf("%s answers must be a string", qt))

	case models.Matching:
		var pairs map[string]string
		if json.Unmarshal(payload, &pairs) == nil {
			return nil
		}
		return singleError("answer_data", "matching answers must be a map of prompt to match")

	default:
		return singleError("answer_data", fmt.Sprintf("unsupported question type: %s", qt))
	}
}

func isEmptyJSON(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return v == nil
}

func singleError(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}
