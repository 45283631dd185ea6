package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	httperrors "github.com/triviashow/backend/pkg/http/errors"
)

// HTTPHandler serves the standings read API.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet handles GET /api/leaderboard?limit=N.
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.Top(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("standings query failed")
		httperrors.RespondInternalError(w, "Could not load leaderboard")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"standings": entries})
}
