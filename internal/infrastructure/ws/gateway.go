package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/huddle/internal/application/broadcast"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/auth"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/ratelimiter"
)

type Options struct {
	OutboxSize     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	// PingPeriod must be shorter than PongWait.
	PingPeriod time.Duration
	// AllowedOrigins lists the browser origins that may open a socket. "*"
	// allows any origin. Requests without an Origin header are always allowed.
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		OutboxSize:     64,
		MaxMessageSize: 32 << 10,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.OutboxSize <= 0 {
		o.OutboxSize = d.OutboxSize
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	return o
}

// Gateway upgrades HTTP requests to websocket sessions and translates frames
// into engine operations.
type Gateway struct {
	engine        *broadcast.Engine
	authenticator *auth.Authenticator
	limiter       ratelimiter.Limiter
	logger        logging.Logger
	opts          Options
	upgrader      websocket.Upgrader
}

// NewGateway builds a gateway. limiter may be nil to disable per-session
// event limits.
func NewGateway(
	engine *broadcast.Engine,
	authenticator *auth.Authenticator,
	limiter ratelimiter.Limiter,
	logger logging.Logger,
	opts Options,
) *Gateway {
	opts = opts.withDefaults()
	g := &Gateway{
		engine:        engine,
		authenticator: authenticator,
		limiter:       limiter,
		logger:        logger,
		opts:          opts,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(g.opts.AllowedOrigins, "*") {
		return true
	}
	if slices.ContainsFunc(g.opts.AllowedOrigins, func(allowed string) bool {
		return strings.EqualFold(allowed, origin)
	}) {
		return true
	}

	// Same-origin requests are fine without configuration.
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn(logging.WebSocket, logging.Handshake, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	sessionID := uuid.NewString()
	client := NewClient(conn, sessionID, g.opts, g.logger)
	if err := g.engine.Connect(sessionID, client); err != nil {
		g.logger.Error(logging.WebSocket, logging.Handshake, "failed to register session", map[logging.ExtraKey]any{
			logging.SessionID:    sessionID,
			logging.ErrorMessage: err.Error(),
		})
		_ = conn.Close()
		return
	}

	// The request context ends with this handler; keep its values only.
	ctx := context.WithoutCancel(r.Context())

	go client.WriteMessage()

	if token != "" {
		g.authenticate(ctx, client, token)
	}

	client.ReadMessage(func(in *InboundMessage) {
		g.dispatch(ctx, client, in)
	})

	g.engine.Disconnect(sessionID)
	if g.limiter != nil {
		g.limiter.Forget(sessionID)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, in *InboundMessage) {
	if g.limiter != nil && !g.limiter.Allow(c.ID) {
		c.enqueue(NewError("", CodeRateLimited, "too many events, slow down"))
		return
	}

	switch in.Type {
	case Authenticate:
		var p AuthenticatePayload
		if !decode(c, in, &p) {
			return
		}
		g.authenticate(ctx, c, p.Token)

	case JoinRoom:
		var p RoomPayload
		if !decode(c, in, &p) {
			return
		}
		g.reply(c, p.RoomID, g.engine.Join(ctx, c.ID, p.RoomID))

	case SendMessage:
		var p RoomPayload
		if !decode(c, in, &p) {
			return
		}
		_, err := g.engine.Send(ctx, c.ID, p.RoomID, p.Message)
		g.reply(c, p.RoomID, err)

	case LeaveRoom:
		var p RoomPayload
		if !decode(c, in, &p) {
			return
		}
		g.reply(c, p.RoomID, g.engine.Leave(ctx, c.ID, p.RoomID))

	default:
		c.enqueue(NewError("", CodeBadRequest, "unknown event type "+in.Type))
	}
}

func (g *Gateway) authenticate(ctx context.Context, c *Client, token string) {
	subject, err := g.authenticator.Subject(token)
	if err != nil {
		g.reply(c, "", err)
		return
	}

	identity, err := g.engine.Authenticate(ctx, c.ID, subject)
	if err != nil {
		g.reply(c, "", err)
		return
	}
	c.enqueue(NewAuthenticated(identity))
}

// reply sends an error frame for a failed operation. Successful operations
// are answered by the engine's own events.
func (g *Gateway) reply(c *Client, roomID string, err error) {
	if err == nil || errors.Is(err, domain.ErrSessionNotFound) {
		return
	}
	code, message := ErrorCode(err)
	c.enqueue(NewError(roomID, code, message))
}

func decode(c *Client, in *InboundMessage, v any) bool {
	if len(in.Data) == 0 {
		c.enqueue(NewError("", CodeBadRequest, "missing data"))
		return false
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		c.enqueue(NewError("", CodeBadRequest, "malformed data"))
		return false
	}
	return true
}

// ErrorCode maps an engine error to the code and text of an error frame.
func ErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrIdentityNotFound):
		return CodeUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrNotInRoom):
		return CodeNotInRoom, "not a member of this room"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return CodePersistenceFailure, "message could not be stored"
	case errors.Is(err, domain.ErrIdentityLookupFailure):
		return CodeIdentityLookupFailure, "identity lookup failed"
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeBadRequest, err.Error()
	default:
		return CodeInternal, "internal error"
	}
}
