package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/edutech-platform/quiz-service/internal/events"
	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

// loadOwnedAttempt fetches the attempt and enforces ownership.
func (s *attemptService) loadOwnedAttempt(ctx context.Context, attemptID uint, studentID string) (*models.QuizAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrAttemptAccessDenied
	}
	return attempt, nil
}

// shuffledQuestionIDs returns the quiz's question IDs in random order.
func shuffledQuestionIDs(quiz *models.Quiz) []uint {
	ids := make([]uint, 0, len(quiz.Questions))
	for _, qq := range quiz.Questions {
		ids = append(ids, qq.QuestionID)
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

// buildAttemptResponse renders the attempt for the student using its
// question order snapshot, with answer keys stripped.
func (s *attemptService) buildAttemptResponse(attempt *models.QuizAttempt, quiz *models.Quiz) (*AttemptResponse, error) {
	orderedIDs, err := attempt.OrderedQuestionIDs()
	if err != nil {
		return nil, fmt.Errorf("corrupt question order for attempt %d: %w", attempt.ID, err)
	}

	questionsByID := make(map[uint]*models.Question, len(quiz.Questions))
	for _, qq := range quiz.Questions {
		if qq.Question != nil {
			questionsByID[qq.QuestionID] = qq.Question
		}
	}

	views := make([]AttemptQuestionView, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		question, ok := questionsByID[id]
		if !ok {
			// Question removed from the quiz after the snapshot; it
			// still belongs to this attempt but cannot be displayed.
			s.logger.Warn("Snapshot question missing from quiz", "attempt_id", attempt.ID, "question_id", id)
			continue
		}

		content, err := question.SanitizedContent()
		if err != nil {
			return nil, err
		}
		views = append(views, AttemptQuestionView{
			QuestionID: question.ID,
			Type:       question.Type,
			Text:       question.Text,
			Points:     question.Points,
			Content:    content,
		})
	}

	return &AttemptResponse{
		AttemptID:        attempt.ID,
		QuizID:           quiz.ID,
		QuizTitle:        quiz.Title,
		Status:           attempt.Status,
		StartedAt:        attempt.StartedAt,
		TimeLimitMinutes: attempt.TimeLimitMinutes,
		InstantFeedback:  attempt.InstantFeedback,
		Questions:        views,
	}, nil
}

// buildResultResponse renders the full post-completion breakdown,
// including canonical answers and explanations.
func (s *attemptService) buildResultResponse(attempt *models.QuizAttempt, quiz *models.Quiz, answers []*models.AttemptAnswer, passed bool) *AttemptResultResponse {
	answersByQuestion := make(map[uint]*models.AttemptAnswer, len(answers))
	for _, a := range answers {
		answersByQuestion[a.QuestionID] = a
	}

	questions := make([]AttemptResultQuestion, 0, len(quiz.Questions))
	for _, qq := range quiz.Questions {
		question := qq.Question
		if question == nil {
			continue
		}

		rq := AttemptResultQuestion{
			QuestionID:    question.ID,
			Type:          question.Type,
			Text:          question.Text,
			Points:        question.Points,
			CorrectAnswer: correctAnswerFor(question),
			Explanation:   question.Explanation,
		}
		if answer, ok := answersByQuestion[question.ID]; ok {
			rq.SubmittedAnswer = []byte(answer.AnswerData)
			rq.IsCorrect = answer.IsCorrect
			rq.PointsEarned = answer.PointsEarned
			rq.Feedback = answer.Feedback
		}
		questions = append(questions, rq)
	}

	return &AttemptResultResponse{
		AttemptID:   attempt.ID,
		QuizID:      quiz.ID,
		QuizTitle:   quiz.Title,
		Status:      attempt.Status,
		Score:       attempt.Score,
		MaxScore:    attempt.MaxScore,
		Percentage:  attempt.Percentage,
		Passed:      passed,
		StartedAt:   attempt.StartedAt,
		CompletedAt: attempt.CompletedAt,
		Questions:   questions,
	}
}

// correctAnswerFor extracts the canonical answer for display in
// results. Returns nil when the content cannot be decoded.
func correctAnswerFor(question *models.Question) any {
	switch question.Type {
	case models.MultipleChoice:
		content, err := decodeContent[models.MultipleChoiceContent](question)
		if err != nil {
			return nil
		}
		return map[string]any{
			"index": content.CorrectIndex,
			"text":  content.CorrectText(),
		}
	case models.TrueFalse:
		content, err := decodeContent[models.TrueFalseContent](question)
		if err != nil {
			return nil
		}
		return content.CorrectAnswer
	case models.FillBlank:
		content, err := decodeContent[models.FillBlankContent](question)
		if err != nil {
			return nil
		}
		return content.CorrectAnswer
	case models.Matching:
		content, err := decodeContent[models.MatchingContent](question)
		if err != nil {
			return nil
		}
		return content.CorrectPairs
	case models.OpenEnded:
		if question.ModelAnswer != nil {
			return *question.ModelAnswer
		}
		return nil
	}
	return nil
}

func (s *attemptService) publishCompletionEvent(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz, passed bool) {
	if s.publisher == nil {
		return
	}

	event := &events.Event{
		Type:    events.EventAttemptCompleted,
		Source:  "quiz-service",
		Version: "1.0",
		Data: &events.AttemptCompletedData{
			AttemptID:  attempt.ID,
			QuizID:     quiz.ID,
			StudentID:  attempt.StudentID,
			SubjectID:  quiz.SubjectID,
			TopicID:    quiz.TopicID,
			Score:      attempt.Score,
			MaxScore:   attempt.MaxScore,
			Percentage: attempt.Percentage,
			Passed:     passed,
		},
	}
	if attempt.CompletedAt != nil {
		event.Timestamp = *attempt.CompletedAt
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish completion event",
			"attempt_id", attempt.ID,
			"error", err)
	}
}

// roundTo2 rounds to two decimal places, the precision percentages are
// stored and reported with.
func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
