package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const persona = "You are a 70's game show host named Mona Woolery in the style of Bob Barker and Chuck Woolery. Keep responses concise and under 200 characters."

// Canned lines used whenever the quip service is unreachable or slow. The
// show must go on.
const (
	fallbackRound    = "Groovy!"
	fallbackIntro    = "Hi folks! I'm Mona Woolery, and this is THE QUIZ SHOW!"
	fallbackWelcome  = "Welcome, welcome, one and all! Let's play!"
	fallbackGoodbye  = "And that's the way it is! Goodbye everybody!"
	fallbackGameOver = "What a finish! Give it up for our winners!"
)

// Config holds connection details for the quip generation service.
type Config struct {
	ServiceURL string
	APIKey     string
	Timeout    time.Duration
}

// Quipper produces the host's narration. Every method returns a usable line;
// failures degrade to a canned fallback instead of an error.
type Quipper struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	quipURL    string
}

func New(cfg Config, logger zerolog.Logger) *Quipper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	base := strings.TrimSuffix(cfg.ServiceURL, "/")

	return &Quipper{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:  cfg,
		logger:  logger.With().Str("component", "virtual_host").Logger(),
		quipURL: base + "/quip",
	}
}

// IntroQuip opens the show.
func (q *Quipper) IntroQuip(ctx context.Context) string {
	return q.generate(ctx, "Introduce yourself as the host of this quiz game show with enthusiasm and 70's flair!", fallbackIntro)
}

// WelcomeQuip greets the players before the first question.
func (q *Quipper) WelcomeQuip(ctx context.Context) string {
	return q.generate(ctx, "Give a warm, fun welcome to the players joining the game show.", fallbackWelcome)
}

// GoodbyeQuip closes the show.
func (q *Quipper) GoodbyeQuip(ctx context.Context) string {
	return q.generate(ctx, "Generate a warm, fun goodbye message to end the game show, mentioning how great everyone played.", fallbackGoodbye)
}

// RoundQuip reacts to a finished round: a winner, a tie, or a whiff.
func (q *Quipper) RoundQuip(ctx context.Context, question string, winners []string) string {
	var prompt string
	switch {
	case len(winners) == 0:
		prompt = fmt.Sprintf("Nobody got this one! Give me a funny, encouraging 70's game show host response about everyone missing the question %q.", question)
	case len(winners) > 1:
		prompt = fmt.Sprintf("Make a witty quip about a tie between %s on the question %q.", strings.Join(winners, " and "), question)
	default:
		prompt = fmt.Sprintf("Make a quip about the question %q and the winner %q.", question, winners[0])
	}
	return q.generate(ctx, prompt, fallbackRound)
}

// GameOverQuip celebrates the final standings.
func (q *Quipper) GameOverQuip(ctx context.Context, winners []string) string {
	var prompt string
	switch {
	case len(winners) == 0:
		prompt = "The game is over with no winners at all. Give a consoling, funny 70's game show host sign-off."
	case len(winners) > 1:
		prompt = fmt.Sprintf("The game ended in a tie between %s. Celebrate them in 70's game show host style.", strings.Join(winners, " and "))
	default:
		prompt = fmt.Sprintf("The game is over and %s won. Congratulate them in 70's game show host style.", winners[0])
	}
	return q.generate(ctx, prompt, fallbackGameOver)
}

func (q *Quipper) generate(ctx context.Context, prompt, fallback string) string {
	if q.config.ServiceURL == "" {
		return fallback
	}

	body, err := json.Marshal(quipRequest{
		System:    persona,
		Prompt:    prompt,
		MaxTokens: 50,
	})
	if err != nil {
		return fallback
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.quipURL, bytes.NewReader(body))
	if err != nil {
		return fallback
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if q.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+q.config.APIKey)
	}

	resp, err := q.httpClient.Do(httpReq)
	if err != nil {
		q.logger.Warn().Err(err).Msg("quip request failed, using fallback")
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		q.logger.Warn().Int("status", resp.StatusCode).Msg("quip service error, using fallback")
		return fallback
	}

	var out quipResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		q.logger.Warn().Err(err).Msg("quip decode failed, using fallback")
		return fallback
	}

	quip := strings.TrimSpace(out.Quip)
	if quip == "" {
		return fallback
	}
	return quip
}

type quipRequest struct {
	System    string `json:"system"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type quipResponse struct {
	Quip string `json:"quip"`
}
