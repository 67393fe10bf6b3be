package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/config"
	"github.com/edutech-platform/quiz-service/internal/events"
	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

type attemptService struct {
	repo         repositories.Repository
	db           *gorm.DB
	logger       *slog.Logger
	validator    *validator.Validator
	bizValidator *validator.BusinessValidator
	grading      GradingService
	quota        QuotaService
	mastery      MasteryService
	publisher    events.EventPublisher
	engine       config.EngineConfig
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	grading GradingService,
	quota QuotaService,
	mastery MasteryService,
	publisher events.EventPublisher,
	engine config.EngineConfig,
) AttemptService {
	return &attemptService{
		repo:         repo,
		db:           db,
		logger:       logger,
		validator:    v,
		bizValidator: validator.NewBusinessValidator(),
		grading:      grading,
		quota:        quota,
		mastery:      mastery,
		publisher:    publisher,
		engine:       engine,
	}
}

// Start opens an attempt: quota gate, then a randomized question order
// snapshot owned by the attempt. An existing in-progress attempt on the
// same quiz is resumed instead of duplicated.
func (s *attemptService) Start(ctx context.Context, studentID string, req *validator.StartAttemptRequest) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	s.logger.Info("Starting quiz attempt", "quiz_id", req.QuizID, "student_id", studentID)

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, req.QuizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}

	if quiz.PremiumOnly {
		user, err := s.repo.User().GetByID(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
		}
		if user.Tier != models.TierPremium {
			return nil, NewPermissionError("quiz", "attempt", "quiz requires a premium subscription")
		}
	}

	if existing, err := s.repo.Attempt().GetInProgress(ctx, nil, quiz.ID, studentID); err == nil {
		s.logger.Info("Resuming in-progress attempt", "attempt_id", existing.ID)
		return s.buildAttemptResponse(existing, quiz)
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check for open attempt: %w", err)
	}

	eligibility, err := s.quota.CanAttempt(ctx, studentID, quiz)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanAttempt {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, eligibility.Reason)
	}

	order, err := json.Marshal(shuffledQuestionIDs(quiz))
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot question order: %w", err)
	}

	attempt := &models.QuizAttempt{
		QuizID:           quiz.ID,
		StudentID:        studentID,
		Status:           models.AttemptInProgress,
		QuestionOrder:    order,
		MaxScore:         quiz.TotalPoints(),
		InstantFeedback:  quiz.InstantFeedback,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		StartedAt:        time.Now(),
	}
	if err := s.repo.Attempt().Create(ctx, nil, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"question_count", len(quiz.Questions))
	return s.buildAttemptResponse(attempt, quiz)
}

// SubmitAnswer grades and stores one answer. Resubmitting the same
// question overwrites the previous answer. Correctness is reported
// right away; the canonical answer and explanation are withheld
// unless the attempt runs with instant feedback.
func (s *attemptService) SubmitAnswer(ctx context.Context, studentID string, attemptID uint, req *validator.SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.loadOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted() {
		return nil, ErrAttemptAlreadyCompleted
	}

	if !attempt.ContainsQuestion(req.QuestionID) {
		return nil, ErrQuestionNotInAttempt
	}

	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to load question: %w", err)
	}

	if verrs := s.bizValidator.ValidateAnswerPayload(question.Type, req.AnswerData); len(verrs) > 0 {
		return nil, verrs
	}

	grade, err := s.grading.GradeQuestion(ctx, question, req.AnswerData)
	if err != nil {
		return nil, err
	}

	answer := &models.AttemptAnswer{
		AttemptID:    attempt.ID,
		QuestionID:   question.ID,
		AnswerData:   []byte(req.AnswerData),
		IsCorrect:    grade.IsCorrect,
		PointsEarned: grade.PointsEarned,
		Feedback:     grade.Feedback,
		AnsweredAt:   time.Now(),
	}
	if err := s.repo.Answer().Upsert(ctx, nil, answer); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}

	resp := &SubmitAnswerResponse{
		QuestionID:   question.ID,
		Saved:        true,
		IsCorrect:    grade.IsCorrect,
		PointsEarned: floatPtr(grade.PointsEarned),
		Feedback:     grade.Feedback,
	}
	if attempt.InstantFeedback {
		resp.CorrectAnswer = correctAnswerFor(question)
		resp.Explanation = question.Explanation
	}
	return resp, nil
}

// Complete finalizes the attempt in two phases. Phase one is a single
// transaction covering the attempt write, the quota completion and the
// mastery update; phase two publishes the completion event best effort.
// Completing an already-completed attempt is rejected and leaves the
// stored score untouched.
func (s *attemptService) Complete(ctx context.Context, studentID string, attemptID uint, req *validator.CompleteAttemptRequest) (*AttemptResultResponse, error) {
	attempt, err := s.loadOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted() {
		return nil, ErrAttemptAlreadyCompleted
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}

	stored, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return nil, err
	}
	answersByQuestion := make(map[uint]*models.AttemptAnswer, len(stored))
	for _, a := range stored {
		answersByQuestion[a.QuestionID] = a
	}

	// Every quiz question gets a graded row: bulk submissions overwrite
	// stored answers, stored answers keep their grade, everything else
	// is graded as unanswered.
	now := time.Now()
	finalAnswers := make([]*models.AttemptAnswer, 0, len(quiz.Questions))
	// Answers already stored and not overwritten keep their rows; only
	// new grades need writing.
	toWrite := make([]*models.AttemptAnswer, 0, len(quiz.Questions))
	var earned float64
	total := quiz.TotalPoints()

	for _, qq := range quiz.Questions {
		question := qq.Question
		if question == nil {
			continue
		}

		var answer *models.AttemptAnswer
		if bulk, ok := req.Answers[question.ID]; ok && len(bulk) > 0 {
			if verrs := s.bizValidator.ValidateAnswerPayload(question.Type, bulk); len(verrs) > 0 {
				return nil, verrs
			}
			grade, err := s.grading.GradeQuestion(ctx, question, bulk)
			if err != nil {
				return nil, err
			}
			answer = &models.AttemptAnswer{
				AttemptID:    attempt.ID,
				QuestionID:   question.ID,
				AnswerData:   []byte(bulk),
				IsCorrect:    grade.IsCorrect,
				PointsEarned: grade.PointsEarned,
				Feedback:     grade.Feedback,
				AnsweredAt:   now,
			}
			toWrite = append(toWrite, answer)
		} else if prev, ok := answersByQuestion[question.ID]; ok {
			answer = prev
		} else {
			grade, err := s.grading.GradeQuestion(ctx, question, nil)
			if err != nil {
				return nil, err
			}
			answer = &models.AttemptAnswer{
				AttemptID:    attempt.ID,
				QuestionID:   question.ID,
				IsCorrect:    grade.IsCorrect,
				PointsEarned: grade.PointsEarned,
				Feedback:     grade.Feedback,
				AnsweredAt:   now,
			}
			toWrite = append(toWrite, answer)
		}

		earned += answer.PointsEarned
		finalAnswers = append(finalAnswers, answer)
	}

	percentage := 0.0
	if total > 0 {
		percentage = roundTo2(earned / total * 100)
	}
	passed := percentage >= s.engine.PassThresholdPercent

	attempt.Status = models.AttemptCompleted
	attempt.CompletedAt = &now
	attempt.Score = earned
	attempt.MaxScore = total
	attempt.Percentage = percentage

	// Phase one: the authoritative write. Attempt, answers, quota and
	// mastery commit or roll back together.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		for _, answer := range toWrite {
			if err := txRepo.Answer().Upsert(ctx, nil, answer); err != nil {
				return fmt.Errorf("failed to store answer for question %d: %w", answer.QuestionID, err)
			}
		}
		if err := txRepo.Attempt().Finalize(ctx, nil, attempt); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptAlreadyCompleted
			}
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}
		if err := s.quota.RecordCompletion(ctx, txRepo, studentID, quiz); err != nil {
			return err
		}
		return s.mastery.RecordAttempt(ctx, txRepo, studentID, quiz.SubjectID, quiz.TopicID, percentage)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt completed",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"student_id", studentID,
		"score", earned,
		"percentage", percentage,
		"passed", passed)

	// Phase two: best effort. A publish failure is logged, never
	// surfaced; the completion already committed.
	s.publishCompletionEvent(ctx, attempt, quiz, passed)

	return s.buildResultResponse(attempt, quiz, finalAnswers, passed), nil
}

// GetResults returns the full grading breakdown. Valid only for
// completed attempts; canonical answers stay withheld while an attempt
// is open.
func (s *attemptService) GetResults(ctx context.Context, studentID string, attemptID uint) (*AttemptResultResponse, error) {
	attempt, err := s.loadOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsCompleted() {
		return nil, ErrAttemptNotCompleted
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}

	answers, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return nil, err
	}

	passed := attempt.Percentage >= s.engine.PassThresholdPercent
	return s.buildResultResponse(attempt, quiz, answers, passed), nil
}

func (s *attemptService) GetEligibility(ctx context.Context, studentID string, quizID uint) (*EligibilityResult, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	return s.quota.CanAttempt(ctx, studentID, quiz)
}

func (s *attemptService) ListAttempts(ctx context.Context, studentID string, filters validator.AttemptFilters) (*AttemptListResponse, error) {
	if err := s.validator.Validate(&filters); err != nil {
		return nil, err
	}
	if filters.Limit == 0 {
		filters.Limit = 20
	}

	repoFilters := repositories.AttemptFilters{
		QuizID: filters.QuizID,
		Status: filters.Status,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}

	attempts, total, err := s.repo.Attempt().ListByStudent(ctx, nil, studentID, repoFilters)
	if err != nil {
		return nil, err
	}

	summaries := make([]AttemptSummary, 0, len(attempts))
	for _, attempt := range attempts {
		summary := AttemptSummary{
			AttemptID:   attempt.ID,
			QuizID:      attempt.QuizID,
			Status:      attempt.Status,
			Score:       attempt.Score,
			MaxScore:    attempt.MaxScore,
			Percentage:  attempt.Percentage,
			StartedAt:   attempt.StartedAt,
			CompletedAt: attempt.CompletedAt,
		}
		if attempt.Quiz != nil {
			summary.QuizTitle = attempt.Quiz.Title
		}
		summaries = append(summaries, summary)
	}

	return &AttemptListResponse{
		Attempts: summaries,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}
