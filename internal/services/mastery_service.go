package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/config"
	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

type masteryService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	engine    config.EngineConfig
}

func NewMasteryService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, engine config.EngineConfig) MasteryService {
	return &masteryService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		engine:    engine,
	}
}

// RecordAttempt folds one completed attempt percentage into the topic
// aggregate. The new average weights the previous one by the attempt
// count before this attempt. Runs inside the caller's transaction.
func (s *masteryService) RecordAttempt(ctx context.Context, repo repositories.Repository, studentID string, subjectID, topicID uint, percentage float64) error {
	record, err := repo.Mastery().GetOrCreateForUpdate(ctx, nil, studentID, subjectID, topicID)
	if err != nil {
		return err
	}

	record.ApplyAttempt(percentage, s.engine.PassThresholdPercent)

	if err := repo.Mastery().Update(ctx, nil, record); err != nil {
		return fmt.Errorf("failed to update mastery record: %w", err)
	}

	s.logger.Debug("Mastery attempt recorded",
		"student_id", studentID,
		"topic_id", topicID,
		"percentage", percentage,
		"average_score", record.AverageScore,
		"attempted_count", record.AttemptedCount)
	return nil
}

// RecordContentView counts one study activity toward the topic. Each
// call runs its own locked transaction; views from multiple devices for
// the same key serialize instead of losing counts.
func (s *masteryService) RecordContentView(ctx context.Context, studentID string, req *validator.ContentViewRequest) (*models.MasteryRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var record *models.MasteryRecord
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		r, err := txRepo.Mastery().GetOrCreateForUpdate(ctx, nil, studentID, req.SubjectID, req.TopicID)
		if err != nil {
			return err
		}

		switch req.ContentType {
		case models.ContentNotes:
			r.NotesViewed++
		case models.ContentVideo:
			r.VideosWatched++
		case models.ContentFlashcards:
			r.FlashcardsReviewed++
		}

		if err := txRepo.Mastery().Update(ctx, nil, r); err != nil {
			return fmt.Errorf("failed to update mastery record: %w", err)
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Content view recorded",
		"student_id", studentID,
		"topic_id", req.TopicID,
		"content_type", req.ContentType)
	return record, nil
}

// GetTopicCompletion blends the four study signals into one 0-100
// figure. Each signal is capped at its configured target, then
// contributes its weight share.
func (s *masteryService) GetTopicCompletion(ctx context.Context, studentID string, subjectID, topicID uint) (*TopicCompletionResponse, error) {
	record, err := s.repo.Mastery().Get(ctx, nil, studentID, subjectID, topicID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return &TopicCompletionResponse{SubjectID: subjectID, TopicID: topicID}, nil
		}
		return nil, fmt.Errorf("failed to load mastery record: %w", err)
	}

	resp := s.completionFor(record)
	return resp, nil
}

func (s *masteryService) completionFor(record *models.MasteryRecord) *TopicCompletionResponse {
	policy := s.engine.Completion

	resp := &TopicCompletionResponse{
		SubjectID:           record.SubjectID,
		TopicID:             record.TopicID,
		NotesComponent:      weightedSignal(record.NotesViewed, policy.NotesTarget, policy.NotesWeight),
		VideosComponent:     weightedSignal(record.VideosWatched, policy.VideosTarget, policy.VideosWeight),
		FlashcardsComponent: weightedSignal(record.FlashcardsReviewed, policy.FlashcardsTarget, policy.FlashcardsWeight),
		QuizzesComponent:    weightedSignal(record.PassedCount, policy.QuizzesTarget, policy.QuizzesWeight),
	}
	resp.Completion = roundTo2(resp.NotesComponent + resp.VideosComponent + resp.FlashcardsComponent + resp.QuizzesComponent)
	return resp
}

func (s *masteryService) GetStudentProgress(ctx context.Context, studentID string) (*StudentProgressResponse, error) {
	stats, err := s.repo.Attempt().GetStudentStats(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt stats: %w", err)
	}

	records, err := s.repo.Mastery().ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, err
	}

	topics := make([]*TopicProgress, 0, len(records))
	for _, record := range records {
		completion := s.completionFor(record)
		topics = append(topics, &TopicProgress{
			SubjectID:          record.SubjectID,
			TopicID:            record.TopicID,
			AttemptedCount:     record.AttemptedCount,
			PassedCount:        record.PassedCount,
			AverageScore:       roundTo2(record.AverageScore),
			NotesViewed:        record.NotesViewed,
			VideosWatched:      record.VideosWatched,
			FlashcardsReviewed: record.FlashcardsReviewed,
			Completion:         completion.Completion,
		})
	}

	return &StudentProgressResponse{
		StudentID: studentID,
		Stats:     stats,
		Topics:    topics,
	}, nil
}

// weightedSignal caps count at target and scales it into the weight's
// share of the 0-100 range.
func weightedSignal(count, target int, weight float64) float64 {
	if target <= 0 {
		return 0
	}
	ratio := float64(count) / float64(target)
	if ratio > 1 {
		ratio = 1
	}
	return ratio * weight
}
