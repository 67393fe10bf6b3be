package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MockEventPublisher records events in memory for tests and local
// development without a broker.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []*Event
	logger *slog.Logger

	// FailNext makes the next Publish call return an error, for
	// exercising best-effort publish paths.
	FailNext error
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (p *MockEventPublisher) Publish(_ context.Context, event *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailNext != nil {
		err := p.FailNext
		p.FailNext = nil
		return err
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	p.events = append(p.events, event)
	if p.logger != nil {
		p.logger.Debug("mock event published", "event_type", event.Type)
	}
	return nil
}

func (p *MockEventPublisher) GetPublishedEvents() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *MockEventPublisher) ClearEvents() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func (p *MockEventPublisher) Close() error { return nil }
