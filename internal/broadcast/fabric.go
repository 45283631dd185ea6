package broadcast

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/metrics"
	"github.com/triviashow/backend/pkg/http/ws"
)

const defaultChannel = "trivia:broadcast"

// envelope is the wire form of a fabric publish. Origin tags the publishing
// process so it can skip its own envelopes when they come back around; an
// empty InstanceID means a global broadcast.
type envelope struct {
	Origin     string     `json:"origin"`
	InstanceID string     `json:"instanceId,omitempty"`
	Message    ws.Message `json:"message"`
}

// Fabric delivers named events to the connections of one instance across
// every server process. Local delivery goes straight to the hub; remote
// delivery rides a shared Redis Pub/Sub channel.
type Fabric struct {
	redis   *redis.Client
	hub     *ws.Hub
	channel string
	origin  string
	logger  zerolog.Logger
}

// New creates a broadcast fabric over a hub and a shared Redis backbone.
// A nil redis client degrades to single-process local delivery.
func New(redisClient *redis.Client, hub *ws.Hub, channel string, logger zerolog.Logger) *Fabric {
	if channel == "" {
		channel = defaultChannel
	}
	return &Fabric{
		redis:   redisClient,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.With().Str("component", "broadcast_fabric").Logger(),
	}
}

// ToInstance delivers a message to every connection in one instance room,
// locally and on peer processes.
func (f *Fabric) ToInstance(instanceID string, msg ws.Message) {
	metrics.BroadcastsSent.Inc()
	if err := f.hub.BroadcastToInstance(instanceID, msg); err != nil {
		f.logger.Warn().Err(err).Str("instance_id", instanceID).Str("event", msg.Event).Msg("local broadcast failed")
	}
	f.publish(envelope{Origin: f.origin, InstanceID: instanceID, Message: msg})
}

// Global delivers a message to every connection everywhere. Reserved for
// cross-cutting admin events.
func (f *Fabric) Global(msg ws.Message) {
	metrics.BroadcastsSent.Inc()
	if err := f.hub.BroadcastAll(msg); err != nil {
		f.logger.Warn().Err(err).Str("event", msg.Event).Msg("local global broadcast failed")
	}
	f.publish(envelope{Origin: f.origin, Message: msg})
}

func (f *Fabric) publish(env envelope) {
	if f.redis == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		f.logger.Warn().Err(err).Msg("marshal broadcast envelope")
		return
	}
	if err := f.redis.Publish(context.Background(), f.channel, data).Err(); err != nil {
		f.logger.Warn().Err(err).Str("event", env.Message.Event).Msg("publish broadcast failed")
	}
}

// Run subscribes to the shared channel and forwards peer broadcasts to local
// sockets until the context is cancelled.
func (f *Fabric) Run(ctx context.Context) error {
	if f.redis == nil {
		return nil
	}

	sub := f.redis.Subscribe(ctx, f.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.forward(msg.Payload)
		}
	}
}

func (f *Fabric) forward(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		f.logger.Warn().Err(err).Msg("failed to decode broadcast envelope")
		return
	}
	// Local sockets already got this one at publish time.
	if env.Origin == f.origin {
		return
	}

	var err error
	if env.InstanceID == "" {
		err = f.hub.BroadcastAll(env.Message)
	} else {
		err = f.hub.BroadcastToInstance(env.InstanceID, env.Message)
	}
	if err != nil {
		f.logger.Warn().Err(err).Str("event", env.Message.Event).Msg("failed to forward peer broadcast")
	}
}
