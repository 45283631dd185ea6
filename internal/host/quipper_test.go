package host

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestQuipper(t *testing.T, url string) *Quipper {
	t.Helper()
	return New(Config{ServiceURL: url, Timeout: time.Second}, zerolog.New(io.Discard))
}

func TestQuipperUsesServiceResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quip", r.URL.Path)

		var req quipRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Prompt)
		assert.Contains(t, req.System, "Mona Woolery")

		json.NewEncoder(w).Encode(quipResponse{Quip: "Right on!"})
	}))
	defer srv.Close()

	q := newTestQuipper(t, srv.URL)
	assert.Equal(t, "Right on!", q.IntroQuip(context.Background()))
	assert.Equal(t, "Right on!", q.RoundQuip(context.Background(), "Capital of France?", []string{"alice"}))
}

func TestQuipperFallsBackWhenUnconfigured(t *testing.T) {
	q := New(Config{}, zerolog.New(io.Discard))
	ctx := context.Background()

	assert.Equal(t, fallbackIntro, q.IntroQuip(ctx))
	assert.Equal(t, fallbackWelcome, q.WelcomeQuip(ctx))
	assert.Equal(t, fallbackGoodbye, q.GoodbyeQuip(ctx))
	assert.Equal(t, fallbackRound, q.RoundQuip(ctx, "Q?", nil))
	assert.Equal(t, fallbackGameOver, q.GameOverQuip(ctx, []string{"alice"}))
}

func TestQuipperFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := newTestQuipper(t, srv.URL)
	assert.Equal(t, fallbackRound, q.RoundQuip(context.Background(), "Q?", []string{"alice"}))
}

func TestQuipperFallsBackOnEmptyQuip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(quipResponse{Quip: "   "})
	}))
	defer srv.Close()

	q := newTestQuipper(t, srv.URL)
	assert.Equal(t, fallbackGoodbye, q.GoodbyeQuip(context.Background()))
}

func TestRoundQuipPromptShapes(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req quipRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompts = append(prompts, req.Prompt)
		json.NewEncoder(w).Encode(quipResponse{Quip: "ok"})
	}))
	defer srv.Close()

	q := newTestQuipper(t, srv.URL)
	ctx := context.Background()

	q.RoundQuip(ctx, "Q?", nil)
	q.RoundQuip(ctx, "Q?", []string{"alice"})
	q.RoundQuip(ctx, "Q?", []string{"alice", "bob"})

	assert.Contains(t, prompts[0], "Nobody got this one")
	assert.Contains(t, prompts[1], "alice")
	assert.Contains(t, prompts[2], "tie between alice and bob")
}
