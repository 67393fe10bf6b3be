package postgres

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edutech-platform/quiz-service/internal/repositories"
)

// SharedHelpers contains common query building operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// lockForUpdate adds a row lock to the query. SQLite (used by tests)
// has no FOR UPDATE; its single-writer model makes the lock redundant
// there.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// ApplyQuizFilters applies common filters to quiz queries
func (h *SharedHelpers) ApplyQuizFilters(query *gorm.DB, filters repositories.QuizFilters) *gorm.DB {
	if filters.SubjectID != nil {
		query = query.Where("subject_id = ?", *filters.SubjectID)
	}
	if filters.TopicID != nil {
		query = query.Where("topic_id = ?", *filters.TopicID)
	}
	if filters.PremiumOnly != nil {
		query = query.Where("premium_only = ?", *filters.PremiumOnly)
	}
	return query
}

// ApplyAttemptFilters applies common filters to attempt queries
func (h *SharedHelpers) ApplyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.QuizID != nil {
		query = query.Where("quiz_id = ?", *filters.QuizID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with a column
// whitelist.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSortColumns := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"completed_at": true,
		"id":           true,
		"title":        true,
		"status":       true,
		"score":        true,
		"percentage":   true,
	}

	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
