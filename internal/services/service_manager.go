package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/edutech-platform/quiz-service/internal/config"
	"github.com/edutech-platform/quiz-service/internal/events"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/validator"
)

// ServiceManager hands out initialized service instances.
type ServiceManager interface {
	Attempt() AttemptService
	Grading() GradingService
	Marking() MarkingService
	Quota() QuotaService
	Mastery() MasteryService
	Quiz() QuizService
	Export() ExportService

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IsHealthy(ctx context.Context) bool
}

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	Attempt ServiceConfig
	Grading ServiceConfig
	Mastery ServiceConfig

	DefaultTimeout time.Duration
}

type ServiceConfig struct {
	Enabled         bool
	CacheEnabled    bool
	CacheTTL        time.Duration
	ValidationLevel ValidationLevel
}

type ValidationLevel int

const (
	ValidationBasic ValidationLevel = iota
	ValidationStrict
	ValidationFull
)

// serviceManager implements ServiceManager
type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	appConfig *config.Config
	publisher events.EventPublisher
	config    ServiceManagerConfig

	attemptService AttemptService
	gradingService GradingService
	markingService MarkingService
	quotaService   QuotaService
	masteryService MasteryService
	quizService    QuizService
	exportService  ExportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	appConfig *config.Config,
	publisher events.EventPublisher,
	cfg ServiceManagerConfig,
) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		appConfig: appConfig,
		publisher: publisher,
		config:    cfg,
	}
}

// NewDefaultServiceManager creates a service manager with default
// configuration.
func NewDefaultServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	appConfig *config.Config,
	publisher events.EventPublisher,
) ServiceManager {
	cfg := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,

		Attempt: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        time.Minute,
			ValidationLevel: ValidationStrict,
		},
		Grading: ServiceConfig{
			Enabled:         true,
			ValidationLevel: ValidationStrict,
		},
		Mastery: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        time.Minute,
			ValidationLevel: ValidationStrict,
		},

		DefaultTimeout: 30 * time.Second,
	}
	return NewServiceManager(db, repo, logger, v, appConfig, publisher, cfg)
}

func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized")
	return nil
}

func (sm *serviceManager) initializeServices(_ context.Context) error {
	engine := sm.appConfig.Engine

	sm.markingService = NewMarkingService(sm.appConfig.Marking, sm.logger)
	sm.gradingService = NewGradingService(sm.markingService, sm.logger, engine.PassThresholdPercent)
	sm.quotaService = NewQuotaService(sm.repo, sm.logger, engine)
	sm.masteryService = NewMasteryService(sm.repo, sm.db, sm.logger, sm.validator, engine)
	sm.quizService = NewQuizService(sm.repo, sm.logger)
	sm.exportService = NewExportService(sm.repo, sm.logger)
	sm.attemptService = NewAttemptService(
		sm.repo, sm.db, sm.logger, sm.validator,
		sm.gradingService, sm.quotaService, sm.masteryService,
		sm.publisher, engine,
	)

	sm.logger.Info("All services initialized")
	return nil
}

// Service getters

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.gradingService
}

func (sm *serviceManager) Marking() MarkingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.markingService
}

func (sm *serviceManager) Quota() QuotaService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.quotaService
}

func (sm *serviceManager) Mastery() MasteryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.masteryService
}

func (sm *serviceManager) Quiz() QuizService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.quizService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.exportService
}

func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized || sm.shutdown {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) IsHealthy(ctx context.Context) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.shutdown {
		return false
	}
	return sm.repo.Ping(ctx) == nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Warn("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	return nil
}
