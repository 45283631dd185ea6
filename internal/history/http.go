package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	httperrors "github.com/triviashow/backend/pkg/http/errors"
)

// HTTPHandlers serves the archived-games read API.
type HTTPHandlers struct {
	archive *Archive
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for the history endpoints. archive
// may be nil when the history database is not configured.
func NewHTTPHandlers(archive *Archive, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		archive: archive,
		logger:  logger.With().Str("component", "history_http").Logger(),
	}
}

// List handles GET /api/history?limit=N.
func (h *HTTPHandlers) List(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeHistoryUnavailable, "Game history is not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.archive.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("history query failed")
		httperrors.RespondInternalError(w, "Could not load game history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"games": entries})
}
