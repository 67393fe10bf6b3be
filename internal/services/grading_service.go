package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/edutech-platform/quiz-service/internal/models"
)

type gradingService struct {
	marking MarkingService
	logger  *slog.Logger

	// passThresholdPercent doubles as the correctness cutoff for marked
	// open-ended answers: correct when mark >= threshold% of max points.
	passThresholdPercent float64
}

func NewGradingService(marking MarkingService, logger *slog.Logger, passThresholdPercent float64) GradingService {
	return &gradingService{
		marking:              marking,
		logger:               logger,
		passThresholdPercent: passThresholdPercent,
	}
}

// GradeQuestion grades one submitted answer against its question.
// Auto-gradeable types are all-or-nothing; open-ended questions earn
// partial credit from the marking delegate. Unanswered questions earn
// zero without error so a completion sweep never aborts.
func (s *gradingService) GradeQuestion(ctx context.Context, question *models.Question, answer json.RawMessage) (*GradeResult, error) {
	if !question.Type.IsValid() {
		return nil, fmt.Errorf("question %d: unsupported question type %q", question.ID, question.Type)
	}

	if question.Type == models.OpenEnded {
		return s.gradeOpenEnded(ctx, question, answer)
	}

	if isEmptyAnswer(answer) {
		return incorrectResult(strPtr("No answer submitted")), nil
	}

	var correct bool
	var err error
	switch question.Type {
	case models.MultipleChoice:
		correct, err = s.gradeMultipleChoice(question, answer)
	case models.TrueFalse:
		correct, err = s.gradeTrueFalse(question, answer)
	case models.FillBlank:
		correct, err = s.gradeFillBlank(question, answer)
	case models.Matching:
		correct, err = s.gradeMatching(question, answer)
	}
	if err != nil {
		return nil, err
	}

	result := &GradeResult{IsCorrect: boolPtr(correct)}
	if correct {
		result.PointsEarned = question.Points
	}
	result.Feedback = s.generateFeedback(question.Type, correct)
	return result, nil
}

// gradeOpenEnded delegates to the marking service. A missing model
// answer leaves the answer ungraded (nil correctness, zero points); a
// delegate failure degrades to zero points with diagnostic feedback so
// the attempt still completes.
func (s *gradingService) gradeOpenEnded(ctx context.Context, question *models.Question, answer json.RawMessage) (*GradeResult, error) {
	if question.ModelAnswer == nil || *question.ModelAnswer == "" {
		return &GradeResult{
			IsCorrect:    nil,
			PointsEarned: 0,
			Feedback:     strPtr("This answer requires manual review: no model answer is configured."),
		}, nil
	}

	if isEmptyAnswer(answer) {
		return incorrectResult(strPtr("No answer submitted")), nil
	}

	var studentText string
	if err := json.Unmarshal(answer, &studentText); err != nil {
		return nil, fmt.Errorf("question %d: open-ended answer must be a string: %w", question.ID, err)
	}

	req := &MarkRequest{
		QuestionText:  question.Text,
		ModelAnswer:   *question.ModelAnswer,
		StudentAnswer: studentText,
		MaxPoints:     question.Points,
	}
	if question.MarkingGuide != nil {
		req.MarkingGuide = *question.MarkingGuide
	}

	mark, err := s.marking.Mark(ctx, req)
	if err != nil {
		s.logger.Warn("Marking delegate failed, scoring zero",
			"question_id", question.ID,
			"error", err)
		return incorrectResult(strPtr("Automatic marking was unavailable for this answer. It has been scored 0; contact your teacher for a manual review.")), nil
	}

	score := clamp(mark.Score, 0, question.Points)
	correct := question.Points > 0 && score >= question.Points*s.passThresholdPercent/100

	result := &GradeResult{
		IsCorrect:    boolPtr(correct),
		PointsEarned: score,
	}
	if mark.Feedback != "" {
		result.Feedback = strPtr(mark.Feedback)
	}
	return result, nil
}

// ===== AUTO-GRADED TYPES =====

// gradeMultipleChoice accepts either an option index or the option
// text. Index submissions are preferred; text falls back to a
// normalized comparison with the correct option.
func (s *gradingService) gradeMultipleChoice(question *models.Question, answer json.RawMessage) (bool, error) {
	content, err := decodeContent[models.MultipleChoiceContent](question)
	if err != nil {
		return false, err
	}

	var idx int
	if err := json.Unmarshal(answer, &idx); err == nil {
		return idx == content.CorrectIndex, nil
	}

	var text string
	if err := json.Unmarshal(answer, &text); err != nil {
		return false, fmt.Errorf("question %d: multiple choice answer must be an index or option text", question.ID)
	}
	return compareStrings(text, content.CorrectText(), false), nil
}

func (s *gradingService) gradeTrueFalse(question *models.Question, answer json.RawMessage) (bool, error) {
	content, err := decodeContent[models.TrueFalseContent](question)
	if err != nil {
		return false, err
	}

	var text string
	if err := json.Unmarshal(answer, &text); err != nil {
		return false, fmt.Errorf("question %d: true/false answer must be a string", question.ID)
	}
	return compareStrings(text, content.CorrectAnswer, false), nil
}

func (s *gradingService) gradeFillBlank(question *models.Question, answer json.RawMessage) (bool, error) {
	content, err := decodeContent[models.FillBlankContent](question)
	if err != nil {
		return false, err
	}

	var text string
	if err := json.Unmarshal(answer, &text); err != nil {
		return false, fmt.Errorf("question %d: fill in the blank answer must be a string", question.ID)
	}
	return compareStrings(text, content.CorrectAnswer, false), nil
}

// gradeMatching requires the submitted pairs to equal the correct pairs
// exactly, ignoring order. Any missing, extra or wrong pair fails the
// whole question.
func (s *gradingService) gradeMatching(question *models.Question, answer json.RawMessage) (bool, error) {
	content, err := decodeContent[models.MatchingContent](question)
	if err != nil {
		return false, err
	}

	var submitted map[string]string
	if err := json.Unmarshal(answer, &submitted); err != nil {
		return false, fmt.Errorf("question %d: matching answer must be a map of prompt to match", question.ID)
	}

	if len(submitted) != len(content.CorrectPairs) {
		return false, nil
	}
	for prompt, match := range content.CorrectPairs {
		if submitted[prompt] != match {
			return false, nil
		}
	}
	return true, nil
}

func (s *gradingService) generateFeedback(qt models.QuestionType, correct bool) *string {
	if correct {
		return strPtr("Correct!")
	}
	switch qt {
	case models.Matching:
		return strPtr("Incorrect. One or more pairs were not matched correctly.")
	default:
		return strPtr("Incorrect.")
	}
}
