package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/events"
	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

type attemptHarness struct {
	svc       AttemptService
	db        *gorm.DB
	repo      repositories.Repository
	publisher *events.MockEventPublisher
	marking   *mockMarkingService
	user      *models.User
}

func newAttemptHarness(t *testing.T, users ...*models.User) *attemptHarness {
	t.Helper()

	db := newTestDB(t)
	if len(users) == 0 {
		users = []*models.User{studentUser("student-1", models.TierFree)}
	}
	repo := newTestRepo(db, users...)

	logger := newTestLogger()
	engine := testEngineConfig()
	v := validator.New()

	marking := &mockMarkingService{result: &MarkResult{}}
	grading := NewGradingService(marking, logger, engine.PassThresholdPercent)
	quota := NewQuotaService(repo, logger, engine)
	mastery := NewMasteryService(repo, db, logger, v, engine)
	publisher := events.NewMockEventPublisher(logger)

	return &attemptHarness{
		svc:       NewAttemptService(repo, db, logger, v, grading, quota, mastery, publisher, engine),
		db:        db,
		repo:      repo,
		publisher: publisher,
		marking:   marking,
		user:      users[0],
	}
}

func (h *attemptHarness) start(t *testing.T, quizID uint) *AttemptResponse {
	t.Helper()
	resp, err := h.svc.Start(context.Background(), h.user.ID, &validator.StartAttemptRequest{QuizID: quizID})
	require.NoError(t, err)
	return resp
}

func TestAttemptService_Start(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, &models.Quiz{Title: "Fractions"},
		mcQuestion(t, 1, []string{"1/2", "1/3"}, 0),
		tfQuestion(t, 1, "true"),
	)

	resp := h.start(t, quiz.ID)

	assert.Equal(t, models.AttemptInProgress, resp.Status)
	assert.Equal(t, "Fractions", resp.QuizTitle)
	require.Len(t, resp.Questions, 2)

	// Answer keys never reach a student mid-attempt
	for _, q := range resp.Questions {
		assert.NotContains(t, string(q.Content), "correct_index")
		assert.NotContains(t, string(q.Content), "correct_answer")
	}

	t.Run("starting again resumes the open attempt", func(t *testing.T) {
		again := h.start(t, quiz.ID)
		assert.Equal(t, resp.AttemptID, again.AttemptID)
	})

	t.Run("unknown quiz", func(t *testing.T) {
		_, err := h.svc.Start(ctx, h.user.ID, &validator.StartAttemptRequest{QuizID: 9999})
		assert.ErrorIs(t, err, ErrQuizNotFound)
	})
}

func TestAttemptService_Start_QuestionOrderIsSnapshotted(t *testing.T) {
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil,
		mcQuestion(t, 1, []string{"a", "b"}, 0),
		tfQuestion(t, 1, "true"),
		fillQuestion(t, 1, "x"),
	)

	resp := h.start(t, quiz.ID)

	attempt, err := h.repo.Attempt().GetByID(context.Background(), nil, resp.AttemptID)
	require.NoError(t, err)

	ids, err := attempt.OrderedQuestionIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	// The response question order matches the stored snapshot
	for i, q := range resp.Questions {
		assert.Equal(t, ids[i], q.QuestionID)
	}
}

func TestAttemptService_Start_PremiumOnlyQuiz(t *testing.T) {
	free := studentUser("student-free", models.TierFree)
	premium := studentUser("student-premium", models.TierPremium)
	h := newAttemptHarness(t, free, premium)

	quiz := seedQuiz(t, h.db, &models.Quiz{Title: "Premium quiz", PremiumOnly: true},
		mcQuestion(t, 1, []string{"a", "b"}, 0),
	)

	_, err := h.svc.Start(context.Background(), free.ID, &validator.StartAttemptRequest{QuizID: quiz.ID})
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	_, err = h.svc.Start(context.Background(), premium.ID, &validator.StartAttemptRequest{QuizID: quiz.ID})
	assert.NoError(t, err)
}

func TestAttemptService_Start_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, mcQuestion(t, 1, []string{"a", "b"}, 0))

	// Exhaust the free tier allowance with three other quizzes
	quota := NewQuotaService(h.repo, newTestLogger(), testEngineConfig())
	for i := 0; i < 3; i++ {
		other := &models.Quiz{Title: "Filler", SubjectID: quiz.SubjectID, TopicID: quiz.TopicID}
		require.NoError(t, h.db.Create(other).Error)
		require.NoError(t, quota.RecordCompletion(ctx, h.repo, h.user.ID, other))
	}

	_, err := h.svc.Start(ctx, h.user.ID, &validator.StartAttemptRequest{QuizID: quiz.ID})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestAttemptService_SubmitAnswer(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, mcQuestion(t, 1, []string{"a", "b"}, 0))
	resp := h.start(t, quiz.ID)
	questionID := resp.Questions[0].QuestionID

	t.Run("answer is graded without revealing the canonical answer", func(t *testing.T) {
		answer, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
			QuestionID: questionID,
			AnswerData: json.RawMessage(`0`),
		})
		require.NoError(t, err)
		assert.True(t, answer.Saved)
		require.NotNil(t, answer.IsCorrect)
		assert.True(t, *answer.IsCorrect)
		require.NotNil(t, answer.PointsEarned)
		assert.Equal(t, 1.0, *answer.PointsEarned)
		assert.Nil(t, answer.CorrectAnswer)
		assert.Nil(t, answer.Explanation)
	})

	t.Run("resubmission overwrites the stored answer", func(t *testing.T) {
		_, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
			QuestionID: questionID,
			AnswerData: json.RawMessage(`1`),
		})
		require.NoError(t, err)

		stored, err := h.repo.Answer().GetByAttempt(ctx, nil, resp.AttemptID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.JSONEq(t, `1`, string(stored[0].AnswerData))
		require.NotNil(t, stored[0].IsCorrect)
		assert.False(t, *stored[0].IsCorrect)
	})

	t.Run("question outside the attempt is rejected", func(t *testing.T) {
		_, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
			QuestionID: 9999,
			AnswerData: json.RawMessage(`0`),
		})
		assert.ErrorIs(t, err, ErrQuestionNotInAttempt)
	})

	t.Run("another student's attempt is denied", func(t *testing.T) {
		_, err := h.svc.SubmitAnswer(ctx, "someone-else", resp.AttemptID, &validator.SubmitAnswerRequest{
			QuestionID: questionID,
			AnswerData: json.RawMessage(`0`),
		})
		assert.ErrorIs(t, err, ErrAttemptAccessDenied)
	})

	t.Run("malformed payload for the question type", func(t *testing.T) {
		_, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
			QuestionID: questionID,
			AnswerData: json.RawMessage(`{"not":"an option"}`),
		})
		assert.Error(t, err)
	})
}

func TestAttemptService_SubmitAnswer_InstantFeedback(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, &models.Quiz{Title: "Practice", InstantFeedback: true},
		mcQuestion(t, 1, []string{"a", "b"}, 0),
	)
	resp := h.start(t, quiz.ID)
	require.True(t, resp.InstantFeedback)

	answer, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
		QuestionID: resp.Questions[0].QuestionID,
		AnswerData: json.RawMessage(`0`),
	})
	require.NoError(t, err)
	require.NotNil(t, answer.IsCorrect)
	assert.True(t, *answer.IsCorrect)
	require.NotNil(t, answer.PointsEarned)
	assert.Equal(t, 1.0, *answer.PointsEarned)

	correct, ok := answer.CorrectAnswer.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, correct["index"])
	assert.Equal(t, "a", correct["text"])
}

func TestAttemptService_Complete(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil,
		mcQuestion(t, 1, []string{"a", "b"}, 0),
		tfQuestion(t, 1, "true"),
	)
	resp := h.start(t, quiz.ID)

	for _, q := range resp.Questions {
		var answer json.RawMessage
		switch q.Type {
		case models.MultipleChoice:
			answer = json.RawMessage(`0`)
		case models.TrueFalse:
			answer = json.RawMessage(`"true"`)
		}
		_, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
			QuestionID: q.QuestionID,
			AnswerData: answer,
		})
		require.NoError(t, err)
	}

	result, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.AttemptCompleted, result.Status)
	assert.Equal(t, 2.0, result.Score)
	assert.Equal(t, 2.0, result.MaxScore)
	assert.Equal(t, 100.0, result.Percentage)
	assert.True(t, result.Passed)
	require.NotNil(t, result.CompletedAt)

	t.Run("completion event is published", func(t *testing.T) {
		published := h.publisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventAttemptCompleted, published[0].Type)

		data, ok := published[0].Data.(*events.AttemptCompletedData)
		require.True(t, ok)
		assert.Equal(t, resp.AttemptID, data.AttemptID)
		assert.True(t, data.Passed)
	})

	t.Run("quota and mastery are recorded", func(t *testing.T) {
		quota, err := h.repo.Quota().Get(ctx, nil, h.user.ID, quiz.SubjectID, quiz.TopicID)
		require.NoError(t, err)
		assert.True(t, quota.HasCompleted(quiz.ID))
		assert.Equal(t, 1, quota.AttemptCount)

		mastery, err := h.repo.Mastery().Get(ctx, nil, h.user.ID, quiz.SubjectID, quiz.TopicID)
		require.NoError(t, err)
		assert.Equal(t, 1, mastery.AttemptedCount)
		assert.Equal(t, 1, mastery.PassedCount)
		assert.InDelta(t, 100.0, mastery.AverageScore, 0.001)
	})

	t.Run("completing twice is rejected and keeps the score", func(t *testing.T) {
		_, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{})
		assert.ErrorIs(t, err, ErrAttemptAlreadyCompleted)

		attempt, err := h.repo.Attempt().GetByID(ctx, nil, resp.AttemptID)
		require.NoError(t, err)
		assert.Equal(t, 2.0, attempt.Score)
		assert.Equal(t, 100.0, attempt.Percentage)
	})
}

func TestAttemptService_Complete_UnansweredScoreZero(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil,
		mcQuestion(t, 1, []string{"a", "b"}, 0),
		tfQuestion(t, 1, "true"),
		fillQuestion(t, 1, "x"),
	)
	resp := h.start(t, quiz.ID)

	// Answer only the multiple choice question
	for _, q := range resp.Questions {
		if q.Type == models.MultipleChoice {
			_, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
				QuestionID: q.QuestionID,
				AnswerData: json.RawMessage(`0`),
			})
			require.NoError(t, err)
		}
	}

	result, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, 33.33, result.Percentage)
	assert.False(t, result.Passed)

	// Every question got a graded row, answered or not
	answers, err := h.repo.Answer().GetByAttempt(ctx, nil, resp.AttemptID)
	require.NoError(t, err)
	assert.Len(t, answers, 3)
}

func TestAttemptService_Complete_BulkAnswersOverwrite(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, mcQuestion(t, 1, []string{"a", "b"}, 0))
	resp := h.start(t, quiz.ID)
	questionID := resp.Questions[0].QuestionID

	// Stored answer is wrong; the bulk submission corrects it
	_, err := h.svc.SubmitAnswer(ctx, h.user.ID, resp.AttemptID, &validator.SubmitAnswerRequest{
		QuestionID: questionID,
		AnswerData: json.RawMessage(`1`),
	})
	require.NoError(t, err)

	result, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{
		Answers: map[uint]json.RawMessage{questionID: json.RawMessage(`0`)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, 100.0, result.Percentage)
}

func TestAttemptService_Complete_EmptyQuiz(t *testing.T) {
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil)
	resp := h.start(t, quiz.ID)

	result, err := h.svc.Complete(context.Background(), h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{})
	require.NoError(t, err)
	assert.Zero(t, result.Score)
	assert.Zero(t, result.Percentage)
}

func TestAttemptService_Complete_PublishFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, mcQuestion(t, 1, []string{"a", "b"}, 0))
	resp := h.start(t, quiz.ID)

	h.publisher.FailNext = errors.New("broker down")

	result, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, result.Status)

	// The completion committed even though nothing was published
	attempt, err := h.repo.Attempt().GetByID(ctx, nil, resp.AttemptID)
	require.NoError(t, err)
	assert.True(t, attempt.IsCompleted())
	assert.Empty(t, h.publisher.GetPublishedEvents())
}

func TestAttemptService_GetResults(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, mcQuestion(t, 1, []string{"a", "b"}, 0))
	resp := h.start(t, quiz.ID)

	t.Run("withheld while in progress", func(t *testing.T) {
		_, err := h.svc.GetResults(ctx, h.user.ID, resp.AttemptID)
		assert.ErrorIs(t, err, ErrAttemptNotCompleted)
	})

	_, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{
		Answers: map[uint]json.RawMessage{resp.Questions[0].QuestionID: json.RawMessage(`0`)},
	})
	require.NoError(t, err)

	t.Run("full breakdown after completion", func(t *testing.T) {
		result, err := h.svc.GetResults(ctx, h.user.ID, resp.AttemptID)
		require.NoError(t, err)
		require.Len(t, result.Questions, 1)

		q := result.Questions[0]
		require.NotNil(t, q.IsCorrect)
		assert.True(t, *q.IsCorrect)
		assert.Equal(t, 1.0, q.PointsEarned)

		correct, ok := q.CorrectAnswer.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 0, correct["index"])
		assert.Equal(t, "a", correct["text"])
	})

	t.Run("unknown attempt", func(t *testing.T) {
		_, err := h.svc.GetResults(ctx, h.user.ID, 9999)
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})
}

func TestAttemptService_ListAttempts(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, mcQuestion(t, 1, []string{"a", "b"}, 0))
	resp := h.start(t, quiz.ID)
	_, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{})
	require.NoError(t, err)

	list, err := h.svc.ListAttempts(ctx, h.user.ID, validator.AttemptFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Attempts, 1)
	assert.Equal(t, resp.AttemptID, list.Attempts[0].AttemptID)
	assert.Equal(t, models.AttemptCompleted, list.Attempts[0].Status)

	t.Run("status filter", func(t *testing.T) {
		inProgress := models.AttemptInProgress
		list, err := h.svc.ListAttempts(ctx, h.user.ID, validator.AttemptFilters{Status: &inProgress})
		require.NoError(t, err)
		assert.Zero(t, list.Total)
	})
}

func TestAttemptService_GetEligibility(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, mcQuestion(t, 1, []string{"a", "b"}, 0))

	result, err := h.svc.GetEligibility(ctx, h.user.ID, quiz.ID)
	require.NoError(t, err)
	assert.True(t, result.CanAttempt)

	_, err = h.svc.GetEligibility(ctx, h.user.ID, 9999)
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestAttemptService_Complete_BulkAnswerValidation(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, tfQuestion(t, 1, "true"))
	resp := h.start(t, quiz.ID)
	questionID := resp.Questions[0].QuestionID

	// A JSON bool is not a valid true/false submission; only strings are.
	_, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{
		Answers: map[uint]json.RawMessage{questionID: json.RawMessage(`true`)},
	})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	attempt, err := h.repo.Attempt().GetByID(ctx, nil, resp.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, attempt.Status)

	// The same attempt completes cleanly once the payload is well formed.
	result, err := h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{
		Answers: map[uint]json.RawMessage{questionID: json.RawMessage(`"true"`)},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Percentage)
}

func TestAttemptService_Start_TimeLimitIsSnapshotted(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	limit := 30
	quiz := seedQuiz(t, h.db, &models.Quiz{Title: "Timed drill", TimeLimitMinutes: &limit},
		tfQuestion(t, 1, "true"))

	resp := h.start(t, quiz.ID)
	require.NotNil(t, resp.TimeLimitMinutes)
	assert.Equal(t, 30, *resp.TimeLimitMinutes)

	// Editing the quiz must not change the limit of the open attempt.
	require.NoError(t, h.db.Model(&models.Quiz{}).
		Where("id = ?", quiz.ID).
		Update("time_limit_minutes", 5).Error)

	resumed, err := h.svc.Start(ctx, h.user.ID, &validator.StartAttemptRequest{QuizID: quiz.ID})
	require.NoError(t, err)
	require.Equal(t, resp.AttemptID, resumed.AttemptID)
	require.NotNil(t, resumed.TimeLimitMinutes)
	assert.Equal(t, 30, *resumed.TimeLimitMinutes)
}

func TestAttemptService_Complete_SecondWriterRejected(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t)

	quiz := seedQuiz(t, h.db, nil, tfQuestion(t, 1, "true"))
	resp := h.start(t, quiz.ID)

	attempt, err := h.repo.Attempt().GetByID(ctx, nil, resp.AttemptID)
	require.NoError(t, err)
	now := time.Now()
	attempt.Status = models.AttemptCompleted
	attempt.CompletedAt = &now
	attempt.Score = 1
	attempt.MaxScore = 1
	attempt.Percentage = 100

	require.NoError(t, h.repo.Attempt().Finalize(ctx, nil, attempt))

	// The status predicate leaves nothing for a writer losing the race.
	err = h.repo.Attempt().Finalize(ctx, nil, attempt)
	assert.True(t, repositories.IsNotFoundError(err))

	// And the service maps that outcome to the completed-attempt error,
	// so quota and mastery are never applied twice.
	_, err = h.svc.Complete(ctx, h.user.ID, resp.AttemptID, &validator.CompleteAttemptRequest{})
	assert.ErrorIs(t, err, ErrAttemptAlreadyCompleted)
}
