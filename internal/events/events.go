package events

import (
	"context"
	"time"
)

// Event types published by the quiz service.
const (
	EventAttemptCompleted = "quiz.attempt.completed"
	EventContentViewed    = "quiz.content.viewed"
)

// Event is the envelope for every message on the events topic.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// AttemptCompletedData carries the completion summary consumed by the
// notification and analytics services.
type AttemptCompletedData struct {
	AttemptID  uint    `json:"attempt_id"`
	QuizID     uint    `json:"quiz_id"`
	StudentID  string  `json:"student_id"`
	SubjectID  uint    `json:"subject_id"`
	TopicID    uint    `json:"topic_id"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}

// ContentViewedData records one study activity.
type ContentViewedData struct {
	StudentID   string `json:"student_id"`
	SubjectID   uint   `json:"subject_id"`
	TopicID     uint   `json:"topic_id"`
	ContentType string `json:"content_type"`
}

// EventPublisher abstracts the event bus. Publishing is best effort for
// the callers in this service: failures are logged, never propagated
// into the authoritative write path.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
