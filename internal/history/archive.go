package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/game"
)

// Archive persists finished games to Postgres. It implements game.Archiver.
type Archive struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New creates a game history archive over a pgx pool.
func New(pool *pgxpool.Pool, logger zerolog.Logger) *Archive {
	return &Archive{
		pool:   pool,
		logger: logger.With().Str("component", "history_archive").Logger(),
	}
}

// RecordGame inserts one finished-game row.
func (a *Archive) RecordGame(ctx context.Context, rec game.GameRecord) error {
	scores, err := json.Marshal(rec.FinalScores)
	if err != nil {
		return fmt.Errorf("marshal final scores: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO game_history (instance_id, topics, total_questions, winners, final_scores, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.InstanceID, rec.Topics, rec.TotalQuestions, rec.Winners, scores, rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game history: %w", err)
	}

	a.logger.Info().
		Str("instance_id", rec.InstanceID).
		Strs("winners", rec.Winners).
		Msg("game archived")
	return nil
}

// Entry is one archived game as served on the history endpoint.
type Entry struct {
	ID             int64          `json:"id"`
	InstanceID     string         `json:"instanceId"`
	Topics         []string       `json:"topics"`
	TotalQuestions int            `json:"totalQuestions"`
	Winners        []string       `json:"winners"`
	FinalScores    map[string]int `json:"finalScores"`
	EndedAt        time.Time      `json:"endedAt"`
}

// ListRecent returns the most recently finished games, newest first.
func (a *Archive) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := a.pool.Query(ctx, `
		SELECT id, instance_id, topics, total_questions, winners, final_scores, ended_at
		FROM game_history
		ORDER BY ended_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query game history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e      Entry
			scores []byte
		)
		if err := rows.Scan(&e.ID, &e.InstanceID, &e.Topics, &e.TotalQuestions, &e.Winners, &scores, &e.EndedAt); err != nil {
			return nil, fmt.Errorf("scan game history row: %w", err)
		}
		if err := json.Unmarshal(scores, &e.FinalScores); err != nil {
			return nil, fmt.Errorf("decode final scores: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
