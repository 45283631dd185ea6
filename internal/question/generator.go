package question

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/triviashow/backend/internal/game"
)

// Config holds connection details for the question generation service.
type Config struct {
	GeneratorURL string
	GeneratorKey string
	Timeout      time.Duration
	MaxRetries   int
}

// Generator implements game.QuestionGenerator over an HTTP generation
// service. Transient upstream failures are retried with exponential backoff;
// a bad request never is.
type Generator struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

func NewGenerator(cfg Config, logger zerolog.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	base := strings.TrimSuffix(cfg.GeneratorURL, "/")

	return &Generator{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:      cfg,
		logger:      logger.With().Str("component", "question_generator").Logger(),
		generateURL: base + "/generate",
	}
}

// GenerateQuestions requests a batch of multiple-choice questions for a topic.
func (g *Generator) GenerateQuestions(ctx context.Context, topic string, count int) ([]game.Question, error) {
	if topic == "" || count <= 0 {
		return nil, game.NewValidationError("topic and question count are required")
	}
	if g.config.GeneratorURL == "" {
		return nil, game.NewGameError("generator endpoint not configured")
	}

	payload := generatorRequest{
		Prompt:    fmt.Sprintf("Generate %d multiple choice questions about %s.", count, topic),
		Topic:     topic,
		Count:     count,
		MaxTokens: 100 * count,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var questions []game.Question
	backoff := retry.WithMaxRetries(uint64(g.config.MaxRetries), retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		qs, err := g.generateOnce(ctx, body)
		if err != nil {
			return err
		}
		questions = qs
		return nil
	})
	if err != nil {
		g.logger.Error().Err(err).Str("topic", topic).Int("count", count).Msg("question generation failed")
		return nil, game.WrapGameError(err, "failed to generate questions")
	}
	return questions, nil
}

func (g *Generator) generateOnce(ctx context.Context, body []byte) ([]game.Question, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.GeneratorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.GeneratorKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, retry.RetryableError(fmt.Errorf("generator returned status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var genResp generatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode generator payload: %w", err)
	}

	questions := make([]game.Question, 0, len(genResp.Questions))
	for _, q := range genResp.Questions {
		normalized, err := normalizeQuestion(q)
		if err != nil {
			return nil, err
		}
		questions = append(questions, normalized)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("generator returned empty question set")
	}
	return questions, nil
}

// normalizeQuestion validates one generated question: non-empty text, four
// distinct choices, and a correct answer that is one of them.
func normalizeQuestion(q generatedQuestion) (game.Question, error) {
	if q.Question == "" {
		return game.Question{}, fmt.Errorf("generator returned question with empty text")
	}
	if len(q.Choices) != 4 {
		return game.Question{}, fmt.Errorf("generator returned %d choices, want 4", len(q.Choices))
	}

	seen := make(map[string]struct{}, len(q.Choices))
	answerFound := false
	for _, choice := range q.Choices {
		key := strings.ToLower(strings.TrimSpace(choice))
		if key == "" {
			return game.Question{}, fmt.Errorf("generator returned empty choice")
		}
		if _, dup := seen[key]; dup {
			return game.Question{}, fmt.Errorf("generator returned duplicate choice %q", choice)
		}
		seen[key] = struct{}{}
		if strings.EqualFold(choice, q.CorrectAnswer) {
			answerFound = true
		}
	}
	if !answerFound {
		return game.Question{}, fmt.Errorf("correct answer %q is not among the choices", q.CorrectAnswer)
	}

	return game.Question{
		Text:          q.Question,
		Choices:       append([]string(nil), q.Choices...),
		CorrectAnswer: q.CorrectAnswer,
	}, nil
}

type generatorRequest struct {
	Prompt    string `json:"prompt"`
	Topic     string `json:"topic"`
	Count     int    `json:"count"`
	MaxTokens int    `json:"max_tokens"`
}

type generatedQuestion struct {
	Question      string   `json:"question"`
	Choices       []string `json:"choices"`
	CorrectAnswer string   `json:"correctAnswer"`
}

type generatorResponse struct {
	Questions []generatedQuestion `json:"questions"`
}
