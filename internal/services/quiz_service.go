package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

// quizService is the read-only catalog surface. Quiz authoring lives in
// the content service; this service only lists and resolves quizzes for
// attempts.
type quizService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewQuizService(repo repositories.Repository, logger *slog.Logger) QuizService {
	return &quizService{repo: repo, logger: logger}
}

func (s *quizService) GetByID(ctx context.Context, id uint) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	return quiz, nil
}

func (s *quizService) List(ctx context.Context, studentID string, filters repositories.QuizFilters) (*QuizListResponse, error) {
	user, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}

	// Non-premium tiers never see premium-only quizzes.
	if user.Tier != models.TierPremium {
		notPremium := false
		filters.PremiumOnly = &notPremium
	}

	if filters.Limit == 0 {
		filters.Limit = 20
	}

	quizzes, total, err := s.repo.Quiz().List(ctx, nil, filters)
	if err != nil {
		return nil, err
	}

	return &QuizListResponse{
		Quizzes: quizzes,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}, nil
}
