package rooms

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/json"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/presentation/utils"
	"github.com/samber/lo"
)

const publishTimeout = 2 * time.Second

// Presence reports how many sessions are in a room right now.
type Presence interface {
	MemberCount(roomID string) int
}

type Handler struct {
	rooms     domain.RoomRepository
	messages  domain.MessageStore
	presence  Presence
	publisher domain.EventPublisher
	logger    logging.Logger
}

func NewHandler(
	rooms domain.RoomRepository,
	messages domain.MessageStore,
	presence Presence,
	publisher domain.EventPublisher,
	logger logging.Logger,
) *Handler {
	return &Handler{
		rooms:     rooms,
		messages:  messages,
		presence:  presence,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	identity := utils.IdentityFromContext(r.Context())
	if identity == nil {
		json.WriteUnauthorizedError(w)
		return
	}

	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	room, err := domain.NewRoom(req.Name, identity)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	id, err := h.rooms.NextID(ctx, domain.RoomIDSequence)
	if err != nil {
		h.logger.Error(logging.Sqlite, logging.Persistence, "failed to allocate room id", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}
	room.ID = strconv.FormatInt(id, 10)

	if err := h.rooms.Create(ctx, room); err != nil {
		h.logger.Error(logging.Sqlite, logging.Persistence, "failed to create room", map[logging.ExtraKey]any{
			logging.RoomID:       room.ID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	event := domain.RoomEvent{
		Type:       domain.EventRoomCreated,
		RoomID:     room.ID,
		UserID:     identity.ID,
		Username:   identity.Username,
		OccurredAt: room.CreatedAt,
	}
	h.publish(ctx, event)

	json.Write(w, http.StatusCreated, h.newRoomResponse(room))
}

// publish hands the event to the broker in the background. The response never
// waits for it and a failure is only logged.
func (h *Handler) publish(ctx context.Context, event domain.RoomEvent) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := h.publisher.Publish(ctx, event); err != nil {
			h.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room event", map[logging.ExtraKey]any{
				logging.RoomID:       event.RoomID,
				logging.EventType:    string(event.Type),
				logging.ErrorMessage: err.Error(),
			})
		}
	}()
}

// ListRoomsHandler returns the catalog with live member counts and the most
// recent message of each room.
func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rooms, err := h.rooms.List(ctx)
	if err != nil {
		h.logger.Error(logging.Sqlite, logging.Persistence, "failed to list rooms", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	json.Write(w, http.StatusOK, lo.Map(rooms, func(room domain.Room, _ int) roomSummaryResponse {
		return roomSummaryResponse{
			roomResponse:  h.newRoomResponse(&room),
			LatestMessage: h.latestMessage(ctx, room.ID),
		}
	}))
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	room, err := h.rooms.GetByID(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteError(w, http.StatusNotFound, "Room not found")
			return
		}
		h.logger.Error(logging.Sqlite, logging.Persistence, "failed to load room", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	json.Write(w, http.StatusOK, roomSummaryResponse{
		roomResponse:  h.newRoomResponse(room),
		LatestMessage: h.latestMessage(r.Context(), room.ID),
	})
}

// latestMessage treats a store failure like an empty room; the catalog is
// still useful without it.
func (h *Handler) latestMessage(ctx context.Context, roomID string) *messageResponse {
	msg, err := h.messages.FetchLatest(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrMessageNotFound) {
			h.logger.Warn(logging.Badger, logging.Persistence, "failed to fetch latest message", map[logging.ExtraKey]any{
				logging.RoomID:       roomID,
				logging.ErrorMessage: err.Error(),
			})
		}
		return nil
	}
	resp := newMessageResponse(msg)
	return &resp
}

func (h *Handler) newRoomResponse(room *domain.Room) roomResponse {
	return roomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
		Online:    h.presence.MemberCount(room.ID),
	}
}
