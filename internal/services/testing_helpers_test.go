package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edutech-platform/quiz-service/internal/config"
	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/repositories/postgres"
	"github.com/edutech-platform/quiz-service/pkg"
)

var testDBCounter atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, pkg.AutoMigrate(db))
	return db
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		PassThresholdPercent: 70,
		TierAllowances: map[models.SubscriptionTier]int{
			models.TierFree:  3,
			models.TierBasic: 10,
		},
		Completion: config.CompletionPolicy{
			NotesWeight:      25,
			VideosWeight:     25,
			FlashcardsWeight: 20,
			QuizzesWeight:    30,
			NotesTarget:      5,
			VideosTarget:     5,
			FlashcardsTarget: 20,
			QuizzesTarget:    3,
		},
	}
}

// stubUserRepo serves identity lookups from a fixed map so tests never
// reach the external identity provider.
type stubUserRepo struct {
	users map[string]*models.User
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, fmt.Errorf("user %s not found", id)
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user with email %s not found", email)
}

// testRepository wraps the real repository but swaps the user repo for
// the stub, inside transactions too.
type testRepository struct {
	repositories.Repository
	users *stubUserRepo
}

func (r *testRepository) User() repositories.UserRepository { return r.users }

func (r *testRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.Repository.WithTransaction(ctx, func(tx repositories.Repository) error {
		return fn(&testRepository{Repository: tx, users: r.users})
	})
}

func newTestRepo(db *gorm.DB, users ...*models.User) repositories.Repository {
	base := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db})
	stub := &stubUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return &testRepository{Repository: base, users: stub}
}

// testHarnessDeps bundles the fixtures a service test needs alongside
// the service under test.
type testHarnessDeps struct {
	db   *gorm.DB
	repo repositories.Repository
	user *models.User
}

// mockMarkingService returns a scripted result or error and records the
// last request for assertions.
type mockMarkingService struct {
	result      *MarkResult
	err         error
	lastRequest *MarkRequest
}

func (m *mockMarkingService) Mark(_ context.Context, req *MarkRequest) (*MarkResult, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// ===== FIXTURES =====

func studentUser(id string, tier models.SubscriptionTier) *models.User {
	return &models.User{
		ID:    id,
		Email: id + "@example.com",
		Role:  models.RoleStudent,
		Tier:  tier,
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func mcQuestion(t *testing.T, points float64, options []string, correctIndex int) *models.Question {
	t.Helper()
	return &models.Question{
		Type:   models.MultipleChoice,
		Text:   "Pick the right option",
		Points: points,
		Content: mustJSON(t, models.MultipleChoiceContent{
			Options:      options,
			CorrectIndex: correctIndex,
		}),
	}
}

func tfQuestion(t *testing.T, points float64, answer string) *models.Question {
	t.Helper()
	return &models.Question{
		Type:    models.TrueFalse,
		Text:    "True or false?",
		Points:  points,
		Content: mustJSON(t, models.TrueFalseContent{CorrectAnswer: answer}),
	}
}

func fillQuestion(t *testing.T, points float64, answer string) *models.Question {
	t.Helper()
	return &models.Question{
		Type:    models.FillBlank,
		Text:    "Fill in the blank",
		Points:  points,
		Content: mustJSON(t, models.FillBlankContent{CorrectAnswer: answer}),
	}
}

func matchingQuestion(t *testing.T, points float64, pairs map[string]string) *models.Question {
	t.Helper()
	return &models.Question{
		Type:    models.Matching,
		Text:    "Match the pairs",
		Points:  points,
		Content: mustJSON(t, models.MatchingContent{CorrectPairs: pairs}),
	}
}

func openQuestion(points float64, modelAnswer string) *models.Question {
	q := &models.Question{
		Type:   models.OpenEnded,
		Text:   "Explain the concept",
		Points: points,
	}
	if modelAnswer != "" {
		q.ModelAnswer = &modelAnswer
	}
	return q
}

// seedQuiz persists a subject, topic, quiz and its questions, and
// returns the quiz reloaded with question associations.
func seedQuiz(t *testing.T, db *gorm.DB, quiz *models.Quiz, questions ...*models.Question) *models.Quiz {
	t.Helper()

	subject := &models.Subject{Name: "Mathematics"}
	require.NoError(t, db.Create(subject).Error)
	topic := &models.Topic{SubjectID: subject.ID, Name: "Algebra"}
	require.NoError(t, db.Create(topic).Error)

	if quiz == nil {
		quiz = &models.Quiz{Title: "Algebra basics"}
	}
	quiz.SubjectID = subject.ID
	quiz.TopicID = topic.ID
	require.NoError(t, db.Create(quiz).Error)

	for i, q := range questions {
		q.SubjectID = subject.ID
		q.TopicID = topic.ID
		require.NoError(t, db.Create(q).Error)
		require.NoError(t, db.Create(&models.QuizQuestion{
			QuizID:     quiz.ID,
			QuestionID: q.ID,
			Position:   i,
		}).Error)
	}

	var reloaded models.Quiz
	require.NoError(t, db.Preload("Questions.Question").First(&reloaded, quiz.ID).Error)
	return &reloaded
}
