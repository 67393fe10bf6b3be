package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/edutech-platform/quiz-service/internal/config"
)

const markingSystemPrompt = `You are an expert examiner marking a student's answer to an open-ended question.
Score the answer against the model answer and marking guide provided.
Respond only with valid JSON in the form {"score": <number>, "feedback": "<string>"}.
The score must be between 0 and the maximum points given. Be fair but rigorous.`

type openAIMarkingService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMarkingService builds the LLM-backed marking delegate. With no API
// key configured the client is nil and every Mark call reports
// ErrMarkingUnavailable; the grader degrades those to zero scores.
func NewMarkingService(cfg config.MarkingConfig, logger *slog.Logger) MarkingService {
	var client *openai.Client
	if cfg.APIKey != "" {
		client = openai.NewClient(cfg.APIKey)
	} else {
		logger.Warn("No marking API key configured, open-ended marking disabled")
	}

	return &openAIMarkingService{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

type markingPayload struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

func (s *openAIMarkingService) Mark(ctx context.Context, req *MarkRequest) (*MarkResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: no API key configured", ErrMarkingUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"Question: %s\n\nModel answer: %s\n\nMarking guide: %s\n\nMaximum points: %.2f\n\nStudent answer: %s",
		req.QuestionText, req.ModelAnswer, orNone(req.MarkingGuide), req.MaxPoints, req.StudentAnswer,
	)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: markingSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarkingUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrMarkingUnavailable)
	}

	var payload markingPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed marking response: %v", ErrMarkingUnavailable, err)
	}

	s.logger.Debug("Open-ended answer marked",
		"score", payload.Score,
		"max_points", req.MaxPoints)

	return &MarkResult{
		Score:    clamp(payload.Score, 0, req.MaxPoints),
		Feedback: payload.Feedback,
	}, nil
}

func orNone(s string) string {
	if s == "" {
		return "none provided"
	}
	return s
}
