package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	stateKeyPrefix    = "gameState:"
	activeInstanceSet = "activeGameInstances"
	defaultOpTimeout  = 2 * time.Second
)

// Store persists whole Session snapshots in Redis, keyed by instance id,
// plus a durable set of active instance ids. Reads and writes are always
// full snapshots to avoid cross-field races.
type Store struct {
	redis   *redis.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewStore creates a Redis-backed session store with a bounded per-op timeout.
func NewStore(client *redis.Client, timeout time.Duration, logger zerolog.Logger) *Store {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Store{
		redis:   client,
		timeout: timeout,
		logger:  logger.With().Str("component", "session_store").Logger(),
	}
}

// snapshot is the serialized form of a Session. ActiveConnections is
// materialized as a sorted slice; the in-memory set does not survive JSON.
type snapshot struct {
	InstanceID           string     `json:"instanceId"`
	Phase                Phase      `json:"phase"`
	Topics               []string   `json:"gameTopics"`
	Questions            []Question `json:"questionsList"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	TotalQuestions       int        `json:"totalQuestions"`
	Players              []Player   `json:"registeredPlayers"`
	Answers              map[string]string `json:"playerAnswers"`
	Scores               map[string]int    `json:"playerScores"`
	ActiveConnections    []string   `json:"activeConnections"`
	CreatedAt            time.Time  `json:"createdAt"`
	LastActivity         time.Time  `json:"lastActivity"`
}

func toSnapshot(s *Session) snapshot {
	conns := make([]string, 0, len(s.ActiveConnections))
	for id := range s.ActiveConnections {
		conns = append(conns, id)
	}
	sort.Strings(conns)
	return snapshot{
		InstanceID:           s.InstanceID,
		Phase:                s.Phase,
		Topics:               s.Topics,
		Questions:            s.Questions,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       s.TotalQuestions,
		Players:              s.Players,
		Answers:              s.Answers,
		Scores:               s.Scores,
		ActiveConnections:    conns,
		CreatedAt:            s.CreatedAt,
		LastActivity:         s.LastActivity,
	}
}

func fromSnapshot(snap snapshot) *Session {
	s := &Session{
		InstanceID:           snap.InstanceID,
		Phase:                snap.Phase,
		Topics:               snap.Topics,
		Questions:            snap.Questions,
		CurrentQuestionIndex: snap.CurrentQuestionIndex,
		TotalQuestions:       snap.TotalQuestions,
		Players:              snap.Players,
		Answers:              snap.Answers,
		Scores:               snap.Scores,
		ActiveConnections:    make(map[string]struct{}, len(snap.ActiveConnections)),
		CreatedAt:            snap.CreatedAt,
		LastActivity:         snap.LastActivity,
	}
	if s.Phase == "" {
		s.Phase = PhaseNotStarted
	}
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	if s.Scores == nil {
		s.Scores = make(map[string]int)
	}
	for _, id := range snap.ActiveConnections {
		s.ActiveConnections[id] = struct{}{}
	}
	return s
}

// Load fetches the stored session for an instance id. A missing key is not an
// error: callers get (nil, nil) and must construct a fresh empty session.
func (st *Store) Load(ctx context.Context, instanceID string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	data, err := st.redis.Get(ctx, stateKeyPrefix+instanceID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", instanceID, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", instanceID, err)
	}
	return fromSnapshot(snap), nil
}

// Save persists the full session snapshot and registers the instance id in
// the active set. LastActivity is bumped as part of the write.
func (st *Store) Save(ctx context.Context, s *Session) error {
	if s.InstanceID == "" {
		return fmt.Errorf("save session: empty instance id")
	}
	s.Touch()

	data, err := json.Marshal(toSnapshot(s))
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", s.InstanceID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	if err := st.redis.Set(ctx, stateKeyPrefix+s.InstanceID, data, 0).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", s.InstanceID, err)
	}
	if err := st.redis.SAdd(ctx, activeInstanceSet, s.InstanceID).Err(); err != nil {
		return fmt.Errorf("register instance %s: %w", s.InstanceID, err)
	}
	return nil
}

// ListActiveIDs returns the durable set of active instance ids.
func (st *Store) ListActiveIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	ids, err := st.redis.SMembers(ctx, activeInstanceSet).Result()
	if err != nil {
		return nil, fmt.Errorf("list active instances: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a stored session and deregisters it from the active set.
func (st *Store) Delete(ctx context.Context, instanceID string) error {
	ctx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	if err := st.redis.Del(ctx, stateKeyPrefix+instanceID).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", instanceID, err)
	}
	if err := st.redis.SRem(ctx, activeInstanceSet, instanceID).Err(); err != nil {
		return fmt.Errorf("deregister instance %s: %w", instanceID, err)
	}
	return nil
}
