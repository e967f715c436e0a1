package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Sirojiddin1dev/carinfopro/internal/audit"
	"github.com/Sirojiddin1dev/carinfopro/internal/auth"
	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/internal/hub"
	"github.com/Sirojiddin1dev/carinfopro/internal/idgen"
	"github.com/Sirojiddin1dev/carinfopro/internal/kafka"
	"github.com/Sirojiddin1dev/carinfopro/internal/registry"
	"github.com/Sirojiddin1dev/carinfopro/internal/relay"
	"github.com/Sirojiddin1dev/carinfopro/internal/repository"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

// roomLockStripes bounds the number of per-room append locks.
const roomLockStripes = 64

// IdentityResolver turns a bearer token into an owner identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// ChatDeps wires a chat service.
type ChatDeps struct {
	Rooms       repository.RoomDirectory
	Resolver    IdentityResolver
	Authorizer  *auth.Authorizer
	Hub         *hub.Hub
	Broadcaster relay.Broadcaster
	Presence    registry.Presence
	Producer    kafka.MessageProducer
	MessageIDs  idgen.Generator
}

// ChatOptions tunes message handling.
type ChatOptions struct {
	MaxMessageLength int
	RateLimit        float64 // messages per second, 0 disables
	RateBurst        int
}

type chatService struct {
	rooms       repository.RoomDirectory
	resolver    IdentityResolver
	authorizer  *auth.Authorizer
	hub         *hub.Hub
	broadcaster relay.Broadcaster
	presence    registry.Presence
	producer    kafka.MessageProducer
	ids         idgen.Generator
	opts        ChatOptions

	roomLocks [roomLockStripes]sync.Mutex
	limiters  sync.Map // session id -> *rate.Limiter
}

func NewChatService(deps ChatDeps, opts ChatOptions) ChatService {
	s := &chatService{
		rooms:       deps.Rooms,
		resolver:    deps.Resolver,
		authorizer:  deps.Authorizer,
		hub:         deps.Hub,
		broadcaster: deps.Broadcaster,
		presence:    deps.Presence,
		producer:    deps.Producer,
		ids:         deps.MessageIDs,
		opts:        opts,
	}
	if s.authorizer == nil {
		s.authorizer = auth.NewAuthorizer()
	}
	if s.broadcaster == nil {
		s.broadcaster = relay.NewLocalBroadcaster(s.hub)
	}
	if s.presence == nil {
		s.presence = registry.Noop{}
	}
	if s.producer == nil {
		s.producer = kafka.NoopProducer{}
	}
	if s.ids == nil {
		s.ids = idgen.NewULIDGenerator()
	}
	return s
}

func (s *chatService) Connect(ctx context.Context, req ConnectRequest, conn Conn) (*domain.Session, error) {
	session := domain.NewSession(conn.ID(), req.RoomID)
	l := log.Ctx(ctx)

	// A token that does not verify is treated as absent.
	identity := ""
	if req.Token != "" && s.resolver != nil {
		if id, err := s.resolver.Resolve(ctx, req.Token); err == nil {
			identity = id
		}
	}

	room, err := s.rooms.FindActiveRoom(ctx, req.RoomID)
	if err != nil {
		if !errors.Is(err, repository.ErrRoomNotFound) {
			l.Error().Err(err).Msg("room lookup failed during connect")
		}
		session.Reject()
		audit.LogWithDetail(ctx, audit.ActionConnectRejected, req.RoomID, identity, "not_found", "connection rejected")
		return session, ErrRoomNotFound
	}

	decision := s.authorizer.Authorize(room, identity, req.VisitorSecret)
	switch {
	case decision == auth.Unavailable:
		session.Reject()
		audit.LogWithDetail(ctx, audit.ActionConnectRejected, req.RoomID, identity, "not_found", "connection rejected")
		return session, ErrRoomNotFound
	case !decision.Allowed():
		session.Reject()
		audit.LogWithDetail(ctx, audit.ActionConnectRejected, req.RoomID, identity, "forbidden", "connection rejected")
		return session, ErrForbidden
	}

	session.Authorize(decision.Role(), identity)

	// The confirmation is queued before joining so it precedes any broadcast.
	if err := conn.Send(domain.NewJoinedFrame(room.ID, session.Role)); err != nil {
		l.Warn().Err(err).Msg("failed to send join confirmation")
	}

	if s.hub.Join(domain.GroupName(room.ID), conn) {
		if err := s.presence.Register(ctx, room.ID); err != nil {
			l.Warn().Err(err).Msg("failed to register room presence")
		}
	}
	session.Open()

	audit.LogWithDetail(ctx, audit.ActionConnect, room.ID, identity, string(session.Role), "session opened")
	return session, nil
}

func (s *chatService) HandleMessage(ctx context.Context, session *domain.Session, conn Conn, data []byte) error {
	if !session.IsOpen() {
		return nil
	}
	l := log.Ctx(ctx)

	text, ok := domain.ParseInbound(data, s.opts.MaxMessageLength)
	if !ok {
		l.Debug().Int("bytes", len(data)).Msg("ignoring malformed or empty frame")
		return nil
	}

	if limiter := s.limiterFor(session.ID); limiter != nil && !limiter.Allow() {
		s.sendError(ctx, conn, domain.ErrCodeRateLimited, "Too many messages")
		return nil
	}

	id, err := s.ids.Generate()
	if err != nil {
		s.sendError(ctx, conn, domain.ErrCodeSendFailed, "Failed to send message")
		return fmt.Errorf("generate message id: %w", err)
	}

	msg := &domain.Message{
		ID:         id,
		RoomID:     session.RoomID,
		SenderType: session.Role,
		SenderID:   session.SenderID(),
		Content:    text,
	}

	if err := s.persistAndPublish(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			s.sendError(ctx, conn, domain.ErrCodeSendFailed, "Room is no longer available")
			conn.Close(domain.CloseRoomClosed, "room closed")
			return nil
		}
		s.sendError(ctx, conn, domain.ErrCodeSendFailed, "Failed to send message")
		return err
	}

	session.UpdateActivity()
	audit.LogWithDetail(ctx, audit.ActionSendMessage, msg.RoomID, session.OwnerID, string(msg.SenderType), "message sent")
	return nil
}

// persistAndPublish appends msg, broadcasts its envelope and enqueues its
// event while holding the room's lock, so both follow persistence order.
// The producer only enqueues, so the lock is not held across a round trip.
func (s *chatService) persistAndPublish(ctx context.Context, msg *domain.Message) error {
	mu := s.roomLock(msg.RoomID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.rooms.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	data, err := json.Marshal(msg.Envelope())
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	l := log.Ctx(ctx)
	if err := s.broadcaster.Publish(ctx, msg.RoomID, data); err != nil {
		l.Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to relay message to other instances")
	}
	if err := s.producer.ProduceMessage(ctx, msg); err != nil {
		l.Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to produce persisted-message event")
	}
	return nil
}

func (s *chatService) Disconnect(ctx context.Context, session *domain.Session, conn Conn) {
	if session == nil || !session.Close() {
		return
	}
	s.limiters.Delete(session.ID)

	if s.hub.Leave(domain.GroupName(session.RoomID), conn) {
		if err := s.presence.Deregister(ctx, session.RoomID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("failed to deregister room presence")
		}
	}

	audit.LogWithDetail(ctx, audit.ActionDisconnect, session.RoomID, session.OwnerID, string(session.Role), "session closed")
}

func (s *chatService) Start(ctx context.Context) error {
	if err := s.broadcaster.Start(ctx); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	if err := s.presence.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start presence heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Msg("chat service started")
	return nil
}

// Stop closes every live session and releases collaborators.
func (s *chatService) Stop() error {
	n := s.hub.CloseAll(websocket.CloseGoingAway, "server shutting down")

	l := log.L()
	l.Info().Int("sessions", n).Msg("closing live sessions")

	if err := s.presence.Close(); err != nil {
		l.Warn().Err(err).Msg("failed to close presence registry")
	}
	if err := s.producer.Close(); err != nil {
		l.Warn().Err(err).Msg("failed to close kafka producer")
	}
	return nil
}

func (s *chatService) roomLock(roomID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return &s.roomLocks[h.Sum32()%roomLockStripes]
}

func (s *chatService) limiterFor(sessionID string) *rate.Limiter {
	if s.opts.RateLimit <= 0 {
		return nil
	}
	if v, ok := s.limiters.Load(sessionID); ok {
		return v.(*rate.Limiter)
	}
	burst := s.opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	v, _ := s.limiters.LoadOrStore(sessionID, rate.NewLimiter(rate.Limit(s.opts.RateLimit), burst))
	return v.(*rate.Limiter)
}

// sendError reports a failure to the sender only.
func (s *chatService) sendError(ctx context.Context, conn Conn, code, message string) {
	if err := conn.Send(domain.NewErrorFrame(code, message)); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str("code", code).Msg("failed to deliver error frame")
	}
}
