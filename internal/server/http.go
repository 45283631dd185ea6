package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/config"
	"github.com/triviashow/backend/internal/game"
	"github.com/triviashow/backend/internal/history"
	"github.com/triviashow/backend/internal/leaderboard"
)

// NewHTTPServer wires the REST surface, the WebSocket endpoint and the
// operational routes (health, metrics) for the API service.
func NewHTTPServer(
	cfg *config.App,
	logger zerolog.Logger,
	redisClient *redis.Client,
	gameHandlers *game.HTTPHandlers,
	historyHandlers *history.HTTPHandlers,
	standingsHandler *leaderboard.HTTPHandler,
	wsHandler http.HandlerFunc,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			logger.Error().Err(err).Msg("health check redis ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	// Gameplay endpoints
	mux.HandleFunc("/api/registerPlayer", gameHandlers.RegisterPlayer)
	mux.HandleFunc("/api/players", gameHandlers.Players)
	mux.HandleFunc("/api/startGame", gameHandlers.StartGame)
	mux.HandleFunc("/api/submitAnswer", gameHandlers.SubmitAnswer)
	mux.HandleFunc("/api/nextQuestion", gameHandlers.NextQuestion)
	mux.HandleFunc("/api/currentQuestion", gameHandlers.CurrentQuestion)
	mux.HandleFunc("/api/endGame", gameHandlers.EndGame)
	mux.HandleFunc("/api/resetGame", gameHandlers.ResetGame)

	// Instance administration
	mux.HandleFunc("/api/instances", gameHandlers.Instances)

	// Host flavor
	mux.HandleFunc("/api/welcomeQuip", gameHandlers.WelcomeQuip)
	mux.HandleFunc("/api/goodbyeQuip", gameHandlers.GoodbyeQuip)

	// Archived games and all-time standings
	mux.HandleFunc("/api/history", historyHandlers.List)
	mux.HandleFunc("/api/leaderboard", standingsHandler.HandleGet)

	// WebSocket endpoint
	mux.HandleFunc("/ws", wsHandler)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}
