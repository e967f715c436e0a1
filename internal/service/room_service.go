package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Sirojiddin1dev/carinfopro/internal/audit"
	"github.com/Sirojiddin1dev/carinfopro/internal/auth"
	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/internal/idgen"
	"github.com/Sirojiddin1dev/carinfopro/internal/registry"
	"github.com/Sirojiddin1dev/carinfopro/internal/relay"
	"github.com/Sirojiddin1dev/carinfopro/internal/repository"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
	"github.com/Sirojiddin1dev/carinfopro/pkg/storage"
)

const (
	maxOwnerRooms       = 200
	createRoomAttempts  = 3
	defaultHistoryLimit = 50
)

// RoomDeps wires a room service. Archive may be nil.
type RoomDeps struct {
	Rooms       repository.RoomDirectory
	Authorizer  *auth.Authorizer
	Presence    registry.Presence
	Broadcaster relay.Broadcaster
	Archive     storage.Storage
	Secrets     idgen.Generator
}

// RoomOptions tunes the REST side.
type RoomOptions struct {
	PublicWSBase       string
	HistoryPageSize    int
	HistoryMaxPageSize int
	ArchivePrefix      string
}

// roomServiceImpl implements RoomService interface.
type roomServiceImpl struct {
	rooms       repository.RoomDirectory
	authorizer  *auth.Authorizer
	presence    registry.Presence
	broadcaster relay.Broadcaster
	archive     storage.Storage
	secrets     idgen.Generator
	opts        RoomOptions
}

// NewRoomService creates a new room service.
func NewRoomService(deps RoomDeps, opts RoomOptions) (RoomService, error) {
	if deps.Broadcaster == nil {
		return nil, errors.New("room service needs a broadcaster")
	}
	s := &roomServiceImpl{
		rooms:       deps.Rooms,
		authorizer:  deps.Authorizer,
		presence:    deps.Presence,
		broadcaster: deps.Broadcaster,
		archive:     deps.Archive,
		secrets:     deps.Secrets,
		opts:        opts,
	}
	if s.authorizer == nil {
		s.authorizer = auth.NewAuthorizer()
	}
	if s.presence == nil {
		s.presence = registry.Noop{}
	}
	if s.secrets == nil {
		g, err := idgen.NewSecretGenerator("", 0)
		if err != nil {
			return nil, err
		}
		s.secrets = g
	}
	if s.opts.HistoryPageSize <= 0 {
		s.opts.HistoryPageSize = defaultHistoryLimit
	}
	if s.opts.HistoryMaxPageSize < s.opts.HistoryPageSize {
		s.opts.HistoryMaxPageSize = s.opts.HistoryPageSize
	}
	return s, nil
}

// StartChat creates an active room for the owner. The visitor secret is
// disclosed only in the response.
func (s *roomServiceImpl) StartChat(ctx context.Context, req *domain.StartChatRequest) (*domain.StartChatResponse, error) {
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return nil, ErrInvalidRequest
	}

	var room *domain.Room
	for attempt := 0; attempt < createRoomAttempts; attempt++ {
		secret, err := s.secrets.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate visitor secret: %w", err)
		}

		candidate := &domain.Room{
			ID:            idgen.NewRoomID(),
			OwnerID:       ownerID,
			VisitorSecret: secret,
			VisitorName:   strings.TrimSpace(req.VisitorName),
		}
		err = s.rooms.CreateRoom(ctx, candidate)
		if errors.Is(err, repository.ErrDuplicateSecret) {
			continue
		}
		if err != nil {
			return nil, err
		}
		room = candidate
		break
	}
	if room == nil {
		return nil, fmt.Errorf("create room: %w", repository.ErrDuplicateSecret)
	}

	audit.Log(ctx, audit.ActionStartChat, room.ID, room.OwnerID, "chat started")

	return &domain.StartChatResponse{
		RoomID:       room.ID,
		VisitorToken: room.VisitorSecret,
		WSURL:        s.visitorURL(room),
		CreatedAt:    room.CreatedAt,
	}, nil
}

func (s *roomServiceImpl) visitorURL(room *domain.Room) string {
	base := strings.TrimRight(s.opts.PublicWSBase, "/")
	return base + "/ws/chat/" + url.PathEscape(room.ID) + "?visitor=" + url.QueryEscape(room.VisitorSecret)
}

// ListRooms returns the owner's rooms, most recently active first.
func (s *roomServiceImpl) ListRooms(ctx context.Context, ownerID string) ([]domain.RoomSummary, error) {
	rooms, err := s.rooms.ListOwnerRooms(ctx, ownerID, maxOwnerRooms)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []domain.RoomSummary{}, nil
	}

	ids := make([]string, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
	}

	last, err := s.rooms.LastMessages(ctx, ids)
	if err != nil {
		return nil, err
	}

	online, err := s.presence.Online(ctx, ids)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("presence lookup failed, reporting rooms offline")
		online = map[string]bool{}
	}

	summaries := make([]domain.RoomSummary, len(rooms))
	for i, room := range rooms {
		summaries[i] = domain.RoomSummary{
			ID:          room.ID,
			VisitorName: room.VisitorName,
			Active:      room.Active,
			Online:      room.Active && online[room.ID],
			CreatedAt:   room.CreatedAt,
			UpdatedAt:   room.UpdatedAt,
		}
		if msg, ok := last[room.ID]; ok {
			env := msg.Envelope()
			summaries[i].LastMessage = &env
		}
	}
	return summaries, nil
}

// History applies the same access rules as a socket connect.
func (s *roomServiceImpl) History(ctx context.Context, roomID, identity string, q *domain.HistoryQuery) (*domain.HistoryPage, error) {
	room, err := s.rooms.FindActiveRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	decision := s.authorizer.Authorize(room, identity, q.VisitorToken)
	if decision == auth.Unavailable {
		return nil, ErrRoomNotFound
	}
	if !decision.Allowed() {
		return nil, ErrForbidden
	}

	var before time.Time
	if q.Before != "" {
		before, err = time.Parse(time.RFC3339Nano, q.Before)
		if err != nil {
			return nil, ErrInvalidCursor
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.opts.HistoryPageSize
	}
	if limit > s.opts.HistoryMaxPageSize {
		limit = s.opts.HistoryMaxPageSize
	}

	msgs, err := s.rooms.ListMessages(ctx, roomID, before, limit+1)
	if err != nil {
		return nil, err
	}

	page := &domain.HistoryPage{Messages: []domain.Envelope{}}
	if len(msgs) > limit {
		msgs = msgs[1:]
		page.NextBefore = domain.FormatTimestamp(msgs[0].CreatedAt)
	}
	for i := range msgs {
		page.Messages = append(page.Messages, msgs[i].Envelope())
	}
	return page, nil
}

// Deactivate closes the room for good: it stops accepting connections and
// messages, its transcript is archived when storage is configured, and its
// live sessions are disconnected.
func (s *roomServiceImpl) Deactivate(ctx context.Context, roomID, ownerID string) error {
	l := log.Ctx(ctx)

	room, err := s.rooms.FindRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	if room.OwnerID != ownerID {
		return ErrForbidden
	}
	if !room.Active {
		return ErrRoomNotFound
	}

	if err := s.rooms.Deactivate(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if err := s.broadcaster.CloseRoom(ctx, roomID, "room deactivated"); err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to close remote sessions")
	}

	if s.archive != nil {
		if err := s.archiveTranscript(ctx, room); err != nil {
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to archive transcript")
		}
	}

	audit.Log(ctx, audit.ActionDeactivate, roomID, ownerID, "room deactivated")
	return nil
}

func (s *roomServiceImpl) HandleUserDeleted(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidRequest
	}

	n, err := s.rooms.DetachSender(ctx, userID)
	if err != nil {
		return fmt.Errorf("detach sender: %w", err)
	}

	audit.LogWithDetail(ctx, audit.ActionDetachSender, "", userID, strconv.FormatInt(n, 10), "sender detached from messages")
	return nil
}

func (s *roomServiceImpl) archiveTranscript(ctx context.Context, room *domain.Room) error {
	msgs, err := s.rooms.ListMessages(ctx, room.ID, time.Time{}, 0)
	if err != nil {
		return err
	}

	transcript := domain.Transcript{
		RoomID:      room.ID,
		OwnerID:     room.OwnerID,
		VisitorName: room.VisitorName,
		CreatedAt:   domain.FormatTimestamp(room.CreatedAt),
		ClosedAt:    domain.FormatTimestamp(time.Now()),
		Messages:    make([]domain.Envelope, len(msgs)),
	}
	for i := range msgs {
		transcript.Messages[i] = msgs[i].Envelope()
	}

	data, err := json.Marshal(transcript)
	if err != nil {
		return err
	}
	return s.archive.Write(ctx, TranscriptKey(s.opts.ArchivePrefix, room.ID), bytes.NewReader(data), int64(len(data)), "application/json")
}

// TranscriptKey is where a room's transcript is archived.
func TranscriptKey(prefix, roomID string) string {
	return path.Join(prefix, roomID+".json")
}
