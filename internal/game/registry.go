package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry resolves instance ids to live sessions and serializes all
// mutations per instance. The store remains the source of truth: every
// mutation is a read-modify-write through it, so concurrent processes
// sharing the same Redis agree on the same logical session. Different
// instances proceed fully in parallel.
type Registry struct {
	store     *Store
	defaultID string
	retention time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	entries map[string]*instanceEntry
}

type instanceEntry struct {
	mu sync.Mutex
}

// NewRegistry creates an instance registry over a session store.
func NewRegistry(store *Store, defaultID string, retention time.Duration, logger zerolog.Logger) *Registry {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Registry{
		store:     store,
		defaultID: defaultID,
		retention: retention,
		logger:    logger.With().Str("component", "instance_registry").Logger(),
		entries:   make(map[string]*instanceEntry),
	}
}

// DefaultID returns the well-known id of the single-game-mode instance.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// Store exposes the underlying session store.
func (r *Registry) Store() *Store {
	return r.store
}

// ResolveID maps an optional caller-supplied instance id to a concrete one.
func (r *Registry) ResolveID(instanceID string) string {
	if instanceID == "" {
		return r.defaultID
	}
	return instanceID
}

func (r *Registry) entry(instanceID string) *instanceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[instanceID]
	if !ok {
		e = &instanceEntry{}
		r.entries[instanceID] = e
	}
	return e
}

// load fetches the stored session, degrading to a fresh empty session on a
// missing key, a corrupt snapshot, or a store failure. Availability of a
// usable empty session beats a hard failure here.
func (r *Registry) load(ctx context.Context, instanceID string) *Session {
	s, err := r.store.Load(ctx, instanceID)
	if err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("session load failed, using fresh session")
		return NewSession(instanceID)
	}
	if s == nil {
		return NewSession(instanceID)
	}
	return s
}

// Mutate runs fn against the session for an instance id under that
// instance's lock, then persists the result before returning. If fn returns
// an error the session is not saved. Persist failures are logged, not
// surfaced: the in-memory transition already happened and the caller's
// response must reflect it.
func (r *Registry) Mutate(ctx context.Context, instanceID string, fn func(*Session) error) error {
	instanceID = r.ResolveID(instanceID)
	e := r.entry(instanceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	s := r.load(ctx, instanceID)
	if err := fn(s); err != nil {
		return err
	}
	if err := r.store.Save(ctx, s); err != nil {
		r.logger.Error().Err(err).Str("instance_id", instanceID).Msg("session save failed")
	}
	return nil
}

// View runs fn against a read-only copy of the session without persisting.
func (r *Registry) View(ctx context.Context, instanceID string, fn func(*Session)) {
	instanceID = r.ResolveID(instanceID)
	e := r.entry(instanceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	fn(r.load(ctx, instanceID))
}

// Snapshot returns the latest persisted session for an instance id.
func (r *Registry) Snapshot(ctx context.Context, instanceID string) *Session {
	var out *Session
	r.View(ctx, instanceID, func(s *Session) {
		out = s
	})
	return out
}

// Create mints a fresh instance id, persists an empty session under it and
// registers it in the active set.
func (r *Registry) Create(ctx context.Context) (string, error) {
	instanceID := fmt.Sprintf("game-instance-%d-%s", time.Now().UnixMilli(), randomSuffix(6))

	e := r.entry(instanceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := r.store.Save(ctx, NewSession(instanceID)); err != nil {
		return "", fmt.Errorf("create instance: %w", err)
	}
	r.logger.Info().Str("instance_id", instanceID).Msg("game instance created")
	return instanceID, nil
}

// Reap walks the active-id set and deletes instances whose snapshot is
// missing (store drift) or that never started and have sat idle past the
// retention window. In-progress and ended instances are never deleted here.
func (r *Registry) Reap(ctx context.Context) error {
	ids, err := r.store.ListActiveIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == r.defaultID {
			continue
		}
		e := r.entry(id)
		e.mu.Lock()
		s, err := r.store.Load(ctx, id)
		switch {
		case err != nil:
			r.logger.Warn().Err(err).Str("instance_id", id).Msg("reaper skipping unreadable instance")
		case s == nil:
			// Active-set entry with no snapshot behind it.
			if err := r.store.Delete(ctx, id); err != nil {
				r.logger.Warn().Err(err).Str("instance_id", id).Msg("reaper delete failed")
			} else {
				r.logger.Info().Str("instance_id", id).Msg("reaped drifted instance")
			}
		case s.Phase == PhaseNotStarted && time.Since(s.LastActivity) > r.retention:
			if err := r.store.Delete(ctx, id); err != nil {
				r.logger.Warn().Err(err).Str("instance_id", id).Msg("reaper delete failed")
			} else {
				r.logger.Info().Str("instance_id", id).Msg("reaped stale instance")
			}
		}
		e.mu.Unlock()
	}
	return nil
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
