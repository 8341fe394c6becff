package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/hilthontt/huddle/internal/application/broadcast"

	defaultAppendTimeout  = 5 * time.Second
	defaultPublishTimeout = 2 * time.Second
)

type Options struct {
	// AppendTimeout bounds every Message Store append; exceeding it is a
	// persistence failure.
	AppendTimeout time.Duration
	// PublishTimeout bounds each audit event publish.
	PublishTimeout time.Duration
	// HistoryLimit is how many stored messages a joining session receives.
	// Zero disables the history event.
	HistoryLimit int
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

type session struct {
	id     string
	outbox Outbox

	// op serialises engine operations for this session so a disconnect can
	// never interleave with a join and leave a dangling member behind.
	op       sync.Mutex
	closed   bool
	identity *domain.Identity
}

// SessionInfo is a point-in-time view of a connected session.
type SessionInfo struct {
	ID       string
	Identity *domain.Identity
	RoomID   string
}

// Engine is the sole writer of room membership and of chat messages.
type Engine struct {
	registry   *Registry
	store      domain.MessageStore
	identities domain.IdentityProvider
	publisher  domain.EventPublisher
	observer   Observer
	logger     logging.Logger
	tracer     trace.Tracer
	opts       Options

	mu       sync.RWMutex
	sessions map[string]*session

	// rooms serialises announce, persist and fan-out per room, which gives
	// every member the same order of events.
	rooms *keyedMutex

	publishWG sync.WaitGroup
}

func NewEngine(
	registry *Registry,
	store domain.MessageStore,
	identities domain.IdentityProvider,
	logger logging.Logger,
	opts Options,
	options ...Option,
) *Engine {
	if opts.AppendTimeout <= 0 {
		opts.AppendTimeout = defaultAppendTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	e := &Engine{
		registry:   registry,
		store:      store,
		identities: identities,
		observer:   nopObserver{},
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		opts:       opts,
		sessions:   make(map[string]*session),
		rooms:      newKeyedMutex(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Connect registers a new, unauthenticated session.
func (e *Engine) Connect(sessionID string, outbox Outbox) error {
	if sessionID == "" || outbox == nil {
		return domain.ErrInvalidInput
	}

	e.mu.Lock()
	if _, exists := e.sessions[sessionID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: session %s already connected", domain.ErrInvalidInput, sessionID)
	}
	e.sessions[sessionID] = &session{id: sessionID, outbox: outbox}
	e.mu.Unlock()

	e.observer.SessionConnected()
	return nil
}

// Authenticate resolves identifier through the Identity Provider and binds the
// result to the session. On failure the session stays unauthenticated. A
// session keeps its first identity; authenticating as someone else is
// rejected.
func (e *Engine) Authenticate(ctx context.Context, sessionID, identifier string) (*domain.Identity, error) {
	s, err := e.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer s.op.Unlock()

	identity, err := e.identities.Lookup(ctx, identifier)
	if err != nil {
		e.reject("authenticate", sessionID, "", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityLookupFailure, err)
	}
	if identity == nil {
		e.reject("authenticate", sessionID, "", domain.ErrIdentityNotFound)
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityLookupFailure, domain.ErrIdentityNotFound)
	}

	if s.identity != nil && s.identity.ID != identity.ID {
		e.reject("authenticate", sessionID, "", domain.ErrUnauthorized)
		return nil, domain.ErrUnauthorized
	}
	s.identity = identity

	return identity, nil
}

// Join moves the session into roomID and announces it to every member,
// including the joiner. Moving out of another room announces the departure to
// the members left behind. Joining the current room again is a no-op.
func (e *Engine) Join(ctx context.Context, sessionID, roomID string) (err error) {
	ctx, span := e.tracer.Start(ctx, "broadcast.Join", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer func() { endSpan(span, err) }()

	s, err := e.acquire(sessionID)
	if err != nil {
		return err
	}
	defer s.op.Unlock()

	if s.identity == nil {
		e.reject("join", sessionID, roomID, domain.ErrUnauthorized)
		return domain.ErrUnauthorized
	}
	if err := domain.ValidateRoomID(roomID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	previous, _ := e.registry.RoomOf(sessionID)
	if previous == roomID {
		return nil
	}

	unlock := e.rooms.Lock(roomID, previous)
	e.registry.Join(sessionID, roomID)

	joined := Event{Name: JoinRoomAnnouncement, RoomID: roomID, Username: s.identity.Username}
	members := e.registry.MembersOf(roomID)
	e.fanOut(members, joined)
	e.sendHistory(ctx, s, roomID)

	var remaining []string
	if previous != "" {
		remaining = e.registry.MembersOf(previous)
		e.fanOut(remaining, Event{Name: LeaveRoomAnnouncement, RoomID: previous, Username: s.identity.Username})
	}
	unlock()

	e.logger.Info(logging.Room, logging.Join, "session joined room", map[logging.ExtraKey]any{
		logging.SessionID: sessionID,
		logging.RoomID:    roomID,
		logging.Username:  s.identity.Username,
		logging.Members:   len(members),
	})

	if previous != "" {
		e.observer.RoomLeft(previous)
		e.publish(domain.EventMemberLeft, previous, s.identity, "", len(remaining))
	}
	e.observer.RoomJoined(roomID)
	e.publish(domain.EventMemberJoined, roomID, s.identity, "", len(members))

	return nil
}

// Send persists text as a message from the session's identity and, only once
// the append succeeded, delivers it to every member of roomID.
func (e *Engine) Send(ctx context.Context, sessionID, roomID, text string) (msg *domain.Message, err error) {
	ctx, span := e.tracer.Start(ctx, "broadcast.Send", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer func() { endSpan(span, err) }()

	s, err := e.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer s.op.Unlock()

	if s.identity == nil {
		e.reject("send", sessionID, roomID, domain.ErrUnauthorized)
		return nil, domain.ErrUnauthorized
	}

	unlock := e.rooms.Lock(roomID)
	defer unlock()

	if current, ok := e.registry.RoomOf(sessionID); !ok || current != roomID {
		e.reject("send", sessionID, roomID, domain.ErrNotInRoom)
		return nil, domain.ErrNotInRoom
	}

	msg, err = domain.NewMessage(roomID, s.identity, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if err := e.persist(ctx, msg); err != nil {
		e.observer.PersistenceFailed(roomID)
		e.logger.Error(logging.Room, logging.Persistence, "message append failed, not broadcasting", map[logging.ExtraKey]any{
			logging.SessionID:    sessionID,
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}

	members := e.registry.MembersOf(roomID)
	e.fanOut(members, Event{Name: ReceiveMessage, RoomID: roomID, Username: s.identity.Username, Message: msg})

	e.logger.Debug(logging.Room, logging.Send, "message delivered", map[logging.ExtraKey]any{
		logging.RoomID:    roomID,
		logging.MessageID: msg.ID,
		logging.Members:   len(members),
	})

	e.observer.MessageSent(roomID)
	e.publish(domain.EventMessageSent, roomID, s.identity, msg.ID, len(members))

	return msg, nil
}

// Leave removes the session from roomID and announces it to the remaining
// members; the leaver is not told.
func (e *Engine) Leave(ctx context.Context, sessionID, roomID string) (err error) {
	_, span := e.tracer.Start(ctx, "broadcast.Leave", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer func() { endSpan(span, err) }()

	s, err := e.acquire(sessionID)
	if err != nil {
		return err
	}
	defer s.op.Unlock()

	if s.identity == nil {
		e.reject("leave", sessionID, roomID, domain.ErrUnauthorized)
		return domain.ErrUnauthorized
	}

	if !e.leaveLocked(s, roomID) {
		e.reject("leave", sessionID, roomID, domain.ErrNotInRoom)
		return domain.ErrNotInRoom
	}

	return nil
}

// Disconnect releases the session's room membership, announcing the departure
// as Leave would, and closes its outbox. Unknown sessions are ignored.
func (e *Engine) Disconnect(sessionID string) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return
	}

	s.op.Lock()
	if s.closed {
		s.op.Unlock()
		return
	}
	s.closed = true

	if roomID, ok := e.registry.RoomOf(sessionID); ok {
		e.leaveLocked(s, roomID)
	}

	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()
	s.op.Unlock()

	s.outbox.Close()
	e.observer.SessionDisconnected()

	e.logger.Debug(logging.Room, logging.Disconnect, "session disconnected", map[logging.ExtraKey]any{
		logging.SessionID: sessionID,
	})
}

// Session returns a snapshot of a connected session.
func (e *Engine) Session(sessionID string) (SessionInfo, bool) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return SessionInfo{}, false
	}

	s.op.Lock()
	defer s.op.Unlock()

	roomID, _ := e.registry.RoomOf(sessionID)
	return SessionInfo{ID: s.id, Identity: s.identity, RoomID: roomID}, true
}

func (e *Engine) MemberCount(roomID string) int {
	return e.registry.Count(roomID)
}

func (e *Engine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown disconnects every session and waits for in-flight audit publishes
// until ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.RLock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		e.Disconnect(id)
	}

	done := make(chan struct{})
	go func() {
		e.publishWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire returns the session with its op lock held.
func (e *Engine) acquire(sessionID string) (*session, error) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	s.op.Lock()
	if s.closed {
		s.op.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// leaveLocked expects s.op to be held.
func (e *Engine) leaveLocked(s *session, roomID string) bool {
	unlock := e.rooms.Lock(roomID)
	if !e.registry.Leave(s.id, roomID) {
		unlock()
		return false
	}

	remaining := e.registry.MembersOf(roomID)
	var username string
	if s.identity != nil {
		username = s.identity.Username
	}
	e.fanOut(remaining, Event{Name: LeaveRoomAnnouncement, RoomID: roomID, Username: username})
	unlock()

	e.logger.Info(logging.Room, logging.Leave, "session left room", map[logging.ExtraKey]any{
		logging.SessionID: s.id,
		logging.RoomID:    roomID,
		logging.Username:  username,
		logging.Members:   len(remaining),
	})

	e.observer.RoomLeft(roomID)
	e.publish(domain.EventMemberLeft, roomID, s.identity, "", len(remaining))
	return true
}

// fanOut is best effort: a receiver that cannot take the event is skipped.
func (e *Engine) fanOut(members []string, ev Event) {
	for _, id := range members {
		e.mu.RLock()
		target, ok := e.sessions[id]
		e.mu.RUnlock()
		if !ok {
			continue
		}

		if !target.outbox.Deliver(ev) {
			e.observer.DeliveryDropped(ev.RoomID)
			e.logger.Warn(logging.Room, logging.Delivery, "event dropped for session", map[logging.ExtraKey]any{
				logging.SessionID: id,
				logging.RoomID:    ev.RoomID,
				logging.EventType: string(ev.Name),
			})
		}
	}
}

// sendHistory runs under the room lock, so the joiner's history ends exactly
// where its live messages begin.
func (e *Engine) sendHistory(ctx context.Context, s *session, roomID string) {
	if e.opts.HistoryLimit <= 0 {
		return
	}

	historyCtx, cancel := context.WithTimeout(ctx, e.opts.AppendTimeout)
	defer cancel()

	history, err := e.store.History(historyCtx, roomID, e.opts.HistoryLimit)
	if err != nil {
		e.logger.Warn(logging.Room, logging.Persistence, "failed to load room history", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}
	if len(history) == 0 {
		return
	}

	if !s.outbox.Deliver(Event{Name: MessageHistory, RoomID: roomID, History: history}) {
		e.observer.DeliveryDropped(roomID)
	}
}

func (e *Engine) reject(operation, sessionID, roomID string, reason error) {
	e.observer.Rejected(operation, reason)
	e.logger.Warn(logging.Room, logging.Rejected, "operation rejected", map[logging.ExtraKey]any{
		logging.SessionID:    sessionID,
		logging.RoomID:       roomID,
		logging.EventType:    operation,
		logging.ErrorMessage: reason.Error(),
	})
}

// persist waits at most AppendTimeout for the store, whether or not the store
// honours ctx. A store call still running after the deadline may land later;
// its message is never broadcast.
func (e *Engine) persist(ctx context.Context, msg *domain.Message) error {
	appendCtx, cancel := context.WithTimeout(ctx, e.opts.AppendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.store.Append(appendCtx, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-appendCtx.Done():
		return appendCtx.Err()
	}
}

func (e *Engine) publish(kind domain.RoomEventType, roomID string, identity *domain.Identity, messageID string, members int) {
	if e.publisher == nil {
		return
	}

	event := domain.RoomEvent{
		Type:        kind,
		RoomID:      roomID,
		MessageID:   messageID,
		MemberCount: members,
		OccurredAt:  time.Now().UTC(),
	}
	if identity != nil {
		event.UserID = identity.ID
		event.Username = identity.Username
	}

	e.publishWG.Add(1)
	go func() {
		defer e.publishWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.opts.PublishTimeout)
		defer cancel()

		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room event", map[logging.ExtraKey]any{
				logging.RoomID:       roomID,
				logging.EventType:    string(kind),
				logging.ErrorMessage: err.Error(),
			})
		}
	}()
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, domain.ErrNotInRoom) && !errors.Is(err, domain.ErrUnauthorized) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
