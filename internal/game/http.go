package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/triviashow/backend/pkg/http/errors"
	"github.com/triviashow/backend/pkg/http/ws"
)

// HTTPHandlers provides the REST endpoints for driving a game. Instance
// scoping comes from the X-Instance-ID header, the `instance` query
// parameter, or an `instanceId` body field; absent all three, the default
// instance is used.
type HTTPHandlers struct {
	service *Service
	quipper Quipper
	hub     *ws.Hub
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for game endpoints.
func NewHTTPHandlers(service *Service, quipper Quipper, hub *ws.Hub, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		quipper: quipper,
		hub:     hub,
		logger:  logger.With().Str("component", "game_http").Logger(),
	}
}

func instanceFrom(r *http.Request, bodyID string) string {
	if id := r.Header.Get("X-Instance-ID"); id != "" {
		return id
	}
	if id := r.URL.Query().Get("instance"); id != "" {
		return id
	}
	return bodyID
}

// RegisterPlayer handles POST /api/registerPlayer.
func (h *HTTPHandlers) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Handle     string `json:"handle"`
		InstanceID string `json:"instanceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.Handle == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Player handle is required", "handle")
		return
	}

	players, err := h.service.RegisterPlayer(r.Context(), instanceFrom(r, req.InstanceID), req.Handle)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"players": toPlayerInfos(players),
	})
}

// Players handles GET /api/players.
func (h *HTTPHandlers) Players(w http.ResponseWriter, r *http.Request) {
	players := h.service.Players(r.Context(), instanceFrom(r, ""))
	h.respondJSON(w, http.StatusOK, map[string]any{
		"players": toPlayerInfos(players),
	})
}

// StartGame handles POST /api/startGame.
func (h *HTTPHandlers) StartGame(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		NumQuestions int      `json:"numQuestions"`
		Topics       []string `json:"topics"`
		InstanceID   string   `json:"instanceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	result, err := h.service.StartGame(r.Context(), instanceFrom(r, req.InstanceID), req.NumQuestions, req.Topics)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"currentQuestion": toQuestionPayload(result.CurrentQuestion),
		"totalQuestions":  result.TotalQuestions,
		"introQuip":       result.IntroQuip,
		"welcomeQuip":     result.WelcomeQuip,
	})
}

// SubmitAnswer handles POST /api/submitAnswer.
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Handle     string `json:"handle"`
		Answer     string `json:"answer"`
		InstanceID string `json:"instanceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), instanceFrom(r, req.InstanceID), req.Handle, req.Answer)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// NextQuestion handles POST /api/nextQuestion.
func (h *HTTPHandlers) NextQuestion(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		InstanceID string `json:"instanceId"`
	}
	// Body is optional here.
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := h.service.NextQuestion(r.Context(), instanceFrom(r, req.InstanceID))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if result.GameOver {
		h.respondJSON(w, http.StatusOK, map[string]any{
			"gameOver":    true,
			"winners":     result.End.Winners,
			"finalScores": result.End.FinalScores,
		})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"question":      toQuestionPayload(result.Question),
		"questionIndex": result.QuestionIndex,
	})
}

// CurrentQuestion handles GET /api/currentQuestion. 409 when no round is live.
func (h *HTTPHandlers) CurrentQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.service.CurrentQuestion(r.Context(), instanceFrom(r, ""))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toQuestionPayload(question))
}

// EndGame handles POST /api/endGame.
func (h *HTTPHandlers) EndGame(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		InstanceID string `json:"instanceId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := h.service.EndGame(r.Context(), instanceFrom(r, req.InstanceID))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"winners":     result.Winners,
		"finalScores": result.FinalScores,
	})
}

// ResetGame handles POST /api/resetGame.
func (h *HTTPHandlers) ResetGame(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		InstanceID string `json:"instanceId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.service.ResetGame(r.Context(), instanceFrom(r, req.InstanceID)); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Game state has been reset",
	})
}

// Instances handles GET (list) and POST (create) on /api/instances.
func (h *HTTPHandlers) Instances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listInstances(w, r)
	case http.MethodPost:
		h.createInstance(w, r)
	default:
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
	}
}

func (h *HTTPHandlers) createInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, err := h.service.Registry().Create(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("instance creation failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeInstanceCreationFailed, "Could not create game instance")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]any{"instanceId": instanceID})
}

type instanceSummary struct {
	InstanceID       string `json:"instanceId"`
	Phase            Phase  `json:"phase"`
	PlayersCount     int    `json:"playersCount"`
	ConnectedPlayers int    `json:"connectedPlayers"`
	CurrentQuestion  int    `json:"currentQuestion"`
	TotalQuestions   int    `json:"totalQuestions"`
	Topic            string `json:"topic"`
	LastActivity     string `json:"lastActivity"`
}

func (h *HTTPHandlers) listInstances(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.Registry().Store().ListActiveIDs(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("instance listing failed")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Could not list game instances")
		return
	}

	summaries := make([]instanceSummary, 0, len(ids))
	for _, id := range ids {
		sess := h.service.Registry().Snapshot(r.Context(), id)
		summary := instanceSummary{
			InstanceID:       id,
			Phase:            sess.Phase,
			PlayersCount:     len(sess.Players),
			ConnectedPlayers: h.hub.InstanceCount(id),
			TotalQuestions:   sess.TotalQuestions,
			LastActivity:     sess.LastActivity.Format(time.RFC3339),
		}
		if sess.Phase == PhaseInProgress {
			summary.CurrentQuestion = sess.CurrentQuestionIndex + 1
		}
		if len(sess.Topics) > 0 {
			summary.Topic = sess.Topics[0]
		}
		summaries = append(summaries, summary)
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"instances": summaries})
}

// WelcomeQuip handles GET /api/welcomeQuip.
func (h *HTTPHandlers) WelcomeQuip(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{"quip": h.quipper.WelcomeQuip(r.Context())})
}

// GoodbyeQuip handles GET /api/goodbyeQuip.
func (h *HTTPHandlers) GoodbyeQuip(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{"quip": h.quipper.GoodbyeQuip(r.Context())})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return false
	}
	return true
}

// respondDomainError maps the error taxonomy onto HTTP statuses: validation
// 400, illegal state 409, everything else 500.
func (h *HTTPHandlers) respondDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		stateErr      *StateError
		gameErr       *GameError
	)
	switch {
	case errors.As(err, &validationErr):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, validationErr.Error())
	case errors.As(err, &stateErr):
		httperrors.RespondConflict(w, httperrors.ErrCodeIllegalState, stateErr.Error())
	case errors.As(err, &gameErr):
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeGameFailed, gameErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Upstream timeout")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		httperrors.RespondInternalError(w, "An unexpected error occurred")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
