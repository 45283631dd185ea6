package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/metrics"
	httperrors "github.com/triviashow/backend/pkg/http/errors"
	"github.com/triviashow/backend/pkg/http/ws"
)

// Upgrader performs the HTTP -> WebSocket upgrade for /ws.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The show and player views are served from arbitrary hosts.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler manages WebSocket connections and routes client events to the
// session. Every event name maps to exactly one handler here; there are no
// duplicate listeners to double-fire.
type Handler struct {
	service *Service
	hub     *ws.Hub
	logger  zerolog.Logger
}

// NewHandler creates a game WebSocket handler.
func NewHandler(service *Service, hub *ws.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket upgrades the connection and attaches it to the instance
// named by the `instance` query parameter, or the default instance.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	instanceID := h.service.Registry().ResolveID(r.URL.Query().Get("instance"))

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	wsConn := ws.NewConnection(connID, conn, h.logger)
	h.hub.Register(wsConn, instanceID)
	metrics.ConnectedClients.Inc()

	go wsConn.WritePump()

	ctx := context.Background()
	h.attach(ctx, connID, instanceID)

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(ctx, connID, msg)
	})

	// Cleanup on disconnect.
	if current, ok := h.hub.InstanceOf(connID); ok {
		instanceID = current
	}
	h.hub.Unregister(connID)
	metrics.ConnectedClients.Dec()
	h.detach(ctx, connID, instanceID)
}

// attach records the connection on the session and tells the room who is
// here now.
func (h *Handler) attach(ctx context.Context, connID, instanceID string) {
	err := h.service.Registry().Mutate(ctx, instanceID, func(sess *Session) error {
		sess.AddConnection(connID)
		return nil
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("instance_id", instanceID).Msg("failed to record connection")
	}

	h.sendTo(connID, ws.NewMessage(ws.EventGameInstanceInfo, ws.GameInstanceInfoPayload{
		InstanceID: instanceID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}))
	h.broadcastPlayerCount(instanceID)
}

func (h *Handler) detach(ctx context.Context, connID, instanceID string) {
	err := h.service.Registry().Mutate(ctx, instanceID, func(sess *Session) error {
		sess.RemoveConnection(connID)
		return nil
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("instance_id", instanceID).Msg("failed to drop connection")
	}
	h.broadcastPlayerCount(instanceID)
}

func (h *Handler) broadcastPlayerCount(instanceID string) {
	h.hub.BroadcastToInstance(instanceID, ws.NewMessage(ws.EventInstancePlayerCount, ws.InstancePlayerCountPayload{
		Count:      h.hub.InstanceCount(instanceID),
		InstanceID: instanceID,
	}))
}

// handleMessage is the authoritative event-dispatch table.
func (h *Handler) handleMessage(ctx context.Context, connID string, msg ws.Message) error {
	switch msg.Event {
	case ws.EventReconnectStateRequest:
		return h.handleReconnectStateRequest(ctx, connID)
	case ws.EventJoinGameInstance:
		return h.handleJoinGameInstance(ctx, connID, msg.Payload)
	case ws.EventPing:
		return h.sendTo(connID, ws.NewMessage(ws.EventPong, nil))
	default:
		return h.sendError(connID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown event: %s", msg.Event))
	}
}

// handleReconnectStateRequest replies with a full snapshot reflecting the
// latest persisted session for the connection's instance.
func (h *Handler) handleReconnectStateRequest(ctx context.Context, connID string) error {
	instanceID, ok := h.hub.InstanceOf(connID)
	if !ok {
		return ws.ErrConnectionNotFound
	}
	snap := h.snapshot(ctx, instanceID)
	return h.sendTo(connID, ws.NewMessage(ws.EventReconnectState, snap))
}

// handleJoinGameInstance moves a connection between instance rooms and
// updates presence on both sessions.
func (h *Handler) handleJoinGameInstance(ctx context.Context, connID string, payload json.RawMessage) error {
	var req ws.JoinGameInstancePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.InstanceID == "" {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "No instance ID provided")
	}

	previous, ok := h.hub.Switch(connID, req.InstanceID)
	if !ok {
		return ws.ErrConnectionNotFound
	}

	if previous != req.InstanceID {
		h.detach(ctx, connID, previous)
		h.attach(ctx, connID, req.InstanceID)
	}

	snap := h.snapshot(ctx, req.InstanceID)
	return h.sendTo(connID, ws.NewMessage(ws.EventReconnectState, snap))
}

// StateSnapshot is the client-facing view of a session, sent on reconnect
// and on room switches. Correct answers stay server-side.
type StateSnapshot struct {
	InstanceID           string            `json:"instanceId"`
	Phase                Phase             `json:"phase"`
	GameStarted          bool              `json:"gameStarted"`
	Players              []ws.PlayerInfo   `json:"registeredPlayers"`
	Scores               map[string]int    `json:"playerScores"`
	Answers              map[string]string `json:"playerAnswers"`
	CurrentQuestion      *ws.QuestionPayload `json:"currentQuestion,omitempty"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	TotalQuestions       int               `json:"totalQuestions"`
	Topics               []string          `json:"gameTopics"`
	ConnectedCount       int               `json:"connectedCount"`
	LastActivity         string            `json:"lastActivity"`
}

func (h *Handler) snapshot(ctx context.Context, instanceID string) StateSnapshot {
	sess := h.service.Registry().Snapshot(ctx, instanceID)

	snap := StateSnapshot{
		InstanceID:           sess.InstanceID,
		Phase:                sess.Phase,
		GameStarted:          sess.Phase == PhaseInProgress,
		Players:              toPlayerInfos(sess.Players),
		Scores:               copyScores(sess.Scores),
		Answers:              sess.Answers,
		CurrentQuestionIndex: sess.CurrentQuestionIndex,
		TotalQuestions:       sess.TotalQuestions,
		Topics:               sess.Topics,
		ConnectedCount:       h.hub.InstanceCount(instanceID),
		LastActivity:         sess.LastActivity.Format(time.RFC3339),
	}
	if q, err := sess.CurrentQuestion(); err == nil {
		payload := toQuestionPayload(q)
		snap.CurrentQuestion = &payload
	}
	return snap
}

func (h *Handler) sendTo(connID string, msg ws.Message) error {
	return h.hub.SendTo(connID, msg)
}

func (h *Handler) sendError(connID, code, message string) error {
	return h.sendTo(connID, ws.NewMessage(ws.EventError, ws.ErrorPayload{Code: code, Message: message}))
}
