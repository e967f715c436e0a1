package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrDuplicateSecret = errors.New("visitor secret already in use")
)

// RoomDirectory is the persistent store of rooms and their messages.
// Every method is a single atomic operation.
type RoomDirectory interface {
	// FindActiveRoom returns the room only if it exists and is active.
	FindActiveRoom(ctx context.Context, roomID string) (*domain.Room, error)
	FindRoom(ctx context.Context, roomID string) (*domain.Room, error)
	CreateRoom(ctx context.Context, room *domain.Room) error

	// AppendMessage stamps msg.CreatedAt, stores it and bumps the room's
	// updated_at in one transaction. It fails with ErrRoomNotFound when the
	// room is missing or inactive.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	ListOwnerRooms(ctx context.Context, ownerID string, limit int) ([]domain.Room, error)
	LastMessages(ctx context.Context, roomIDs []string) (map[string]domain.Message, error)

	// ListMessages returns up to limit messages older than before (zero
	// means now), oldest first.
	ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]domain.Message, error)

	// Deactivate marks an active room inactive. It fails with
	// ErrRoomNotFound when no active room matches.
	Deactivate(ctx context.Context, roomID string) error

	// DetachSender clears the sender of every message sent by userID.
	DetachSender(ctx context.Context, userID string) (int64, error)
}
