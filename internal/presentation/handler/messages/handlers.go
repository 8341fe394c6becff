package messages

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/json"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/samber/lo"
)

const maxHistoryLimit = 500

type Handler struct {
	messages     domain.MessageStore
	defaultLimit int
	logger       logging.Logger
}

func NewHandler(messages domain.MessageStore, defaultLimit int, logger logging.Logger) *Handler {
	if defaultLimit <= 0 || defaultLimit > maxHistoryLimit {
		defaultLimit = 50
	}
	return &Handler{messages: messages, defaultLimit: defaultLimit, logger: logger}
}

// HistoryHandler returns up to ?limit= messages of a room, oldest first.
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := domain.ValidateRoomID(roomID); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	limit, err := h.parseLimit(r)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	history, err := h.messages.History(r.Context(), roomID, limit)
	if err != nil {
		h.logger.Error(logging.Badger, logging.Persistence, "failed to load history", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	json.Write(w, http.StatusOK, historyResponse{
		RoomID: roomID,
		Messages: lo.Map(history, func(m domain.Message, _ int) messageResponse {
			return newMessageResponse(&m)
		}),
	})
}

func (h *Handler) LatestHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := domain.ValidateRoomID(roomID); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	msg, err := h.messages.FetchLatest(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			json.WriteError(w, http.StatusNotFound, "Room has no messages")
			return
		}
		h.logger.Error(logging.Badger, logging.Persistence, "failed to fetch latest message", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	json.Write(w, http.StatusOK, newMessageResponse(msg))
}

func (h *Handler) parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.defaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit must be a number between 1 and %d", maxHistoryLimit)
	}
	return limit, nil
}
