package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository is the aggregate access point for all persistence.
type Repository interface {
	// Catalog domain (read-only for the quiz service)
	Quiz() QuizRepository
	Question() QuestionRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// Progress domain
	Quota() QuotaRepository
	Mastery() MasteryRepository

	// User domain (backed by the identity provider)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager owns repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
}

// IsNotFoundError reports whether the error means the record does not
// exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
