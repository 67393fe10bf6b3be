package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edutech-platform/quiz-service/internal/models"
)

// decodeContent unmarshals the question's content payload into the
// given struct type.
func decodeContent[T any](question *models.Question) (*T, error) {
	var content T
	if err := json.Unmarshal(question.Content, &content); err != nil {
		return nil, fmt.Errorf("question %d: invalid content: %w", question.ID, err)
	}
	return &content, nil
}

// compareStrings compares two strings after trimming whitespace,
// optionally case sensitive.
func compareStrings(s1, s2 string, caseSensitive bool) bool {
	s1 = strings.TrimSpace(s1)
	s2 = strings.TrimSpace(s2)
	if !caseSensitive {
		s1 = strings.ToLower(s1)
		s2 = strings.ToLower(s2)
	}
	return s1 == s2
}

// isEmptyAnswer reports whether the payload is absent, JSON null, or an
// empty string.
func isEmptyAnswer(answer json.RawMessage) bool {
	if len(answer) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(answer, &v); err != nil {
		return false
	}
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return true
	}
	return false
}

func incorrectResult(feedback *string) *GradeResult {
	return &GradeResult{
		IsCorrect:    boolPtr(false),
		PointsEarned: 0,
		Feedback:     feedback,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolPtr(b bool) *bool        { return &b }
func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
