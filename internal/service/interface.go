package service

import (
	"context"
	"errors"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/internal/hub"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrForbidden      = errors.New("access to room denied")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidCursor  = errors.New("invalid history cursor")
)

// Conn is the connection side of a live session.
type Conn interface {
	hub.Member
	Send(v interface{}) error
}

// ConnectRequest carries what a client presents when opening a socket.
type ConnectRequest struct {
	RoomID        string
	Token         string
	VisitorSecret string
}

// ChatService drives live sessions from connect to disconnect.
type ChatService interface {
	// Connect authorizes conn for the room and joins it to the room's
	// group. It fails with ErrRoomNotFound or ErrForbidden; the returned
	// session is in its final state either way.
	Connect(ctx context.Context, req ConnectRequest, conn Conn) (*domain.Session, error)
	HandleMessage(ctx context.Context, session *domain.Session, conn Conn, data []byte) error
	// Disconnect leaves the group and releases the session. Safe to call
	// more than once.
	Disconnect(ctx context.Context, session *domain.Session, conn Conn)
	Start(ctx context.Context) error
	Stop() error
}

// RoomService is the REST side of the chat: room creation, listing,
// history and deactivation.
type RoomService interface {
	StartChat(ctx context.Context, req *domain.StartChatRequest) (*domain.StartChatResponse, error)
	ListRooms(ctx context.Context, ownerID string) ([]domain.RoomSummary, error)
	// History pages through a room's messages for its owner (identity) or
	// its visitor (query secret).
	History(ctx context.Context, roomID, identity string, q *domain.HistoryQuery) (*domain.HistoryPage, error)
	Deactivate(ctx context.Context, roomID, ownerID string) error
	// HandleUserDeleted clears userID as the sender of every message it
	// wrote. The messages themselves are kept.
	HandleUserDeleted(ctx context.Context, userID string) error
}
