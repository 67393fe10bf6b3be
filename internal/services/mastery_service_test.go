package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

func newMasteryHarness(t *testing.T) (MasteryService, *testHarnessDeps) {
	t.Helper()
	db := newTestDB(t)
	user := studentUser("student-1", models.TierFree)
	repo := newTestRepo(db, user)
	svc := NewMasteryService(repo, db, newTestLogger(), validator.New(), testEngineConfig())
	return svc, &testHarnessDeps{db: db, repo: repo, user: user}
}

func TestMasteryService_RecordAttempt_RunningAverage(t *testing.T) {
	ctx := context.Background()
	svc, deps := newMasteryHarness(t)

	percentages := []float64{80, 60, 100}
	for _, pct := range percentages {
		require.NoError(t, svc.RecordAttempt(ctx, deps.repo, deps.user.ID, 1, 1, pct))
	}

	record, err := deps.repo.Mastery().Get(ctx, nil, deps.user.ID, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, record.AttemptedCount)
	assert.InDelta(t, 80.0, record.AverageScore, 0.001)
	// 80 and 100 clear the 70 threshold, 60 does not
	assert.Equal(t, 2, record.PassedCount)
}

func TestMasteryService_RecordContentView(t *testing.T) {
	ctx := context.Background()
	svc, deps := newMasteryHarness(t)

	views := []struct {
		contentType models.ContentType
		times       int
	}{
		{models.ContentNotes, 2},
		{models.ContentVideo, 1},
		{models.ContentFlashcards, 3},
	}

	for _, v := range views {
		for i := 0; i < v.times; i++ {
			_, err := svc.RecordContentView(ctx, deps.user.ID, &validator.ContentViewRequest{
				SubjectID:   1,
				TopicID:     1,
				ContentType: v.contentType,
			})
			require.NoError(t, err)
		}
	}

	record, err := deps.repo.Mastery().Get(ctx, nil, deps.user.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, record.NotesViewed)
	assert.Equal(t, 1, record.VideosWatched)
	assert.Equal(t, 3, record.FlashcardsReviewed)
}

func TestMasteryService_RecordContentView_InvalidType(t *testing.T) {
	svc, deps := newMasteryHarness(t)

	_, err := svc.RecordContentView(context.Background(), deps.user.ID, &validator.ContentViewRequest{
		SubjectID:   1,
		TopicID:     1,
		ContentType: "podcast",
	})
	assert.Error(t, err)
}

func TestMasteryService_GetTopicCompletion(t *testing.T) {
	ctx := context.Background()
	svc, deps := newMasteryHarness(t)

	t.Run("no activity yields zero", func(t *testing.T) {
		resp, err := svc.GetTopicCompletion(ctx, deps.user.ID, 1, 1)
		require.NoError(t, err)
		assert.Zero(t, resp.Completion)
	})

	t.Run("signals are weighted and capped", func(t *testing.T) {
		// Targets: notes 5, videos 5, flashcards 20, quizzes 3.
		// 10 notes views cap at the 25-point notes weight.
		for i := 0; i < 10; i++ {
			_, err := svc.RecordContentView(ctx, deps.user.ID, &validator.ContentViewRequest{
				SubjectID: 1, TopicID: 1, ContentType: models.ContentNotes,
			})
			require.NoError(t, err)
		}
		// 1 of 5 target videos contributes a fifth of the 25-point weight
		_, err := svc.RecordContentView(ctx, deps.user.ID, &validator.ContentViewRequest{
			SubjectID: 1, TopicID: 1, ContentType: models.ContentVideo,
		})
		require.NoError(t, err)
		// 2 of 3 target passes contribute two thirds of the 30-point weight
		require.NoError(t, svc.RecordAttempt(ctx, deps.repo, deps.user.ID, 1, 1, 90))
		require.NoError(t, svc.RecordAttempt(ctx, deps.repo, deps.user.ID, 1, 1, 75))

		resp, err := svc.GetTopicCompletion(ctx, deps.user.ID, 1, 1)
		require.NoError(t, err)
		assert.InDelta(t, 25.0, resp.NotesComponent, 0.001)
		assert.InDelta(t, 5.0, resp.VideosComponent, 0.001)
		assert.Zero(t, resp.FlashcardsComponent)
		assert.InDelta(t, 20.0, resp.QuizzesComponent, 0.001)
		assert.InDelta(t, 50.0, resp.Completion, 0.01)
	})
}

func TestMasteryService_GetStudentProgress(t *testing.T) {
	ctx := context.Background()
	svc, deps := newMasteryHarness(t)

	require.NoError(t, svc.RecordAttempt(ctx, deps.repo, deps.user.ID, 1, 1, 80))
	require.NoError(t, svc.RecordAttempt(ctx, deps.repo, deps.user.ID, 1, 2, 50))

	resp, err := svc.GetStudentProgress(ctx, deps.user.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.Stats)
	require.Len(t, resp.Topics, 2)

	byTopic := make(map[uint]*TopicProgress)
	for _, topic := range resp.Topics {
		byTopic[topic.TopicID] = topic
	}
	assert.Equal(t, 1, byTopic[1].PassedCount)
	assert.Equal(t, 0, byTopic[2].PassedCount)
	assert.InDelta(t, 50.0, byTopic[2].AverageScore, 0.001)
}
