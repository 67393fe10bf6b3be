package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutech-platform/quiz-service/internal/config"
	"github.com/edutech-platform/quiz-service/internal/events"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

func newTestServiceManager(t *testing.T) ServiceManager {
	t.Helper()

	db := newTestDB(t)
	repo := newTestRepo(db)
	logger := newTestLogger()
	appConfig := &config.Config{Engine: testEngineConfig()}

	return NewDefaultServiceManager(db, repo, logger, validator.New(), appConfig, events.NewMockEventPublisher(logger))
}

func TestServiceManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	sm := newTestServiceManager(t)

	t.Run("getters panic before initialization", func(t *testing.T) {
		assert.Panics(t, func() { sm.Attempt() })
	})

	require.NoError(t, sm.Initialize(ctx))

	t.Run("all services are wired after initialization", func(t *testing.T) {
		assert.NotNil(t, sm.Attempt())
		assert.NotNil(t, sm.Grading())
		assert.NotNil(t, sm.Marking())
		assert.NotNil(t, sm.Quota())
		assert.NotNil(t, sm.Mastery())
		assert.NotNil(t, sm.Quiz())
		assert.NotNil(t, sm.Export())
	})

	t.Run("initialize is idempotent", func(t *testing.T) {
		assert.NoError(t, sm.Initialize(ctx))
	})

	assert.True(t, sm.IsHealthy(ctx))

	require.NoError(t, sm.Shutdown(ctx))
	assert.False(t, sm.IsHealthy(ctx))

	t.Run("getters panic after shutdown", func(t *testing.T) {
		assert.Panics(t, func() { sm.Quiz() })
	})
}
