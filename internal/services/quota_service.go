package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edutech-platform/quiz-service/internal/config"
	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

type quotaService struct {
	repo   repositories.Repository
	logger *slog.Logger
	engine config.EngineConfig
}

func NewQuotaService(repo repositories.Repository, logger *slog.Logger, engine config.EngineConfig) QuotaService {
	return &quotaService{
		repo:   repo,
		logger: logger,
		engine: engine,
	}
}

// CanAttempt applies the quota policy in order: privileged tiers always
// pass, retries of already-completed quizzes are free, and otherwise
// the distinct completed count must sit below the tier allowance.
func (s *quotaService) CanAttempt(ctx context.Context, studentID string, quiz *models.Quiz) (*EligibilityResult, error) {
	user, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}

	result := &EligibilityResult{Tier: user.Tier}

	if user.Tier == models.TierPremium {
		result.CanAttempt = true
		result.Reason = "premium subscription"
		return result, nil
	}

	result.Allowance = s.allowanceFor(user.Tier)

	record, err := s.repo.Quota().Get(ctx, nil, studentID, quiz.SubjectID, quiz.TopicID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to load quota record: %w", err)
		}
		// No usage yet for this topic
		result.CanAttempt = result.Allowance > 0
		if !result.CanAttempt {
			result.Reason = "tier has no quiz allowance"
		}
		return result, nil
	}

	completed, err := record.CompletedSet()
	if err != nil {
		return nil, fmt.Errorf("corrupt quota record %d: %w", record.ID, err)
	}
	result.Used = len(completed)

	if record.HasCompleted(quiz.ID) {
		result.CanAttempt = true
		result.IsRetry = true
		result.Reason = "retry of a completed quiz"
		return result, nil
	}

	if result.Used < result.Allowance {
		result.CanAttempt = true
		return result, nil
	}

	result.Reason = fmt.Sprintf("completed %d of %d allowed quizzes for this topic", result.Used, result.Allowance)
	return result, nil
}

// RecordCompletion adds the quiz to the completed set (idempotent) and
// increments the attempt counter (every call). The caller supplies a
// transaction-bound repository; the row lock taken here serializes
// concurrent completions on the same key.
func (s *quotaService) RecordCompletion(ctx context.Context, repo repositories.Repository, studentID string, quiz *models.Quiz) error {
	record, err := repo.Quota().GetOrCreateForUpdate(ctx, nil, studentID, quiz.SubjectID, quiz.TopicID)
	if err != nil {
		return err
	}

	added, err := record.AddCompleted(quiz.ID)
	if err != nil {
		return fmt.Errorf("corrupt quota record %d: %w", record.ID, err)
	}
	record.AttemptCount++

	if err := repo.Quota().Update(ctx, nil, record); err != nil {
		return fmt.Errorf("failed to update quota record: %w", err)
	}

	s.logger.Debug("Quota completion recorded",
		"student_id", studentID,
		"quiz_id", quiz.ID,
		"newly_completed", added,
		"attempt_count", record.AttemptCount)
	return nil
}

// allowanceFor looks up the tier allowance, falling back to the free
// tier for unknown tiers. A tier downgrade never shrinks the recorded
// completed set; it only lowers the bar future starts are checked
// against.
func (s *quotaService) allowanceFor(tier models.SubscriptionTier) int {
	if allowance, ok := s.engine.TierAllowances[tier]; ok {
		return allowance
	}
	return s.engine.TierAllowances[models.TierFree]
}
