package leaderboard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/game"
)

// Entry represents one player's all-time standing.
type Entry struct {
	Handle string `json:"handle"`
	Points int    `json:"points"`
	Wins   int    `json:"wins"`
	Games  int    `json:"games"`
}

// ServiceOptions configures leaderboard behavior.
type ServiceOptions struct {
	TopN           int
	RedisKeyPrefix string
}

// Service keeps all-time standings in a Redis sorted set, fed from finished
// games. It implements game.Archiver so it can sit next to the Postgres
// archive in the game-over path.
type Service struct {
	redis  *redis.Client
	logger zerolog.Logger
	topN   int
	prefix string
}

// NewService constructs a leaderboard service instance.
func NewService(redisClient *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	return &Service{
		redis:  redisClient,
		logger: logger.With().Str("component", "leaderboard").Logger(),
		topN:   topN,
		prefix: prefix,
	}
}

// RecordGame folds a finished game into the standings: every scored player
// gains their points and a game played, winners gain a win.
func (s *Service) RecordGame(ctx context.Context, rec game.GameRecord) error {
	if len(rec.FinalScores) == 0 {
		return nil
	}

	winners := make(map[string]struct{}, len(rec.Winners))
	for _, handle := range rec.Winners {
		winners[handle] = struct{}{}
	}

	pipe := s.redis.TxPipeline()
	for handle, score := range rec.FinalScores {
		pipe.ZIncrBy(ctx, s.standingsKey(), float64(score), handle)
		metaKey := s.metaKey(handle)
		pipe.HIncrBy(ctx, metaKey, "games", 1)
		if _, won := winners[handle]; won {
			pipe.HIncrBy(ctx, metaKey, "wins", 1)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update standings: %w", err)
	}
	return nil
}

// Top retrieves the top N standings, highest points first.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, s.standingsKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch standings: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		handle, _ := z.Member.(string)
		entry := Entry{Handle: handle, Points: int(z.Score)}

		meta, err := s.redis.HGetAll(ctx, s.metaKey(handle)).Result()
		if err != nil {
			s.logger.Warn().Err(err).Str("handle", handle).Msg("failed to read standings metadata")
		} else {
			entry.Wins = parseInt(meta["wins"])
			entry.Games = parseInt(meta["games"])
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) standingsKey() string {
	return s.prefix + ":standings"
}

func (s *Service) metaKey(handle string) string {
	return fmt.Sprintf("%s:meta:%s", s.prefix, handle)
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
