package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/pkg/database"
)

func newTestDirectory(t *testing.T) *GormRoomDirectory {
	t.Helper()

	db, err := database.Open(sqlite.Open("file::memory:"), &database.Config{MaxOpenConns: 1, MaxIdleConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, Models()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormRoomDirectory(db)
}

func createRoom(t *testing.T, dir *GormRoomDirectory, id, owner, secret string) *domain.Room {
	t.Helper()
	room := &domain.Room{ID: id, OwnerID: owner, VisitorSecret: secret}
	require.NoError(t, dir.CreateRoom(context.Background(), room))
	return room
}

func TestFindActiveRoom(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	createRoom(t, dir, "room-1", "owner-1", "secret-1")

	room, err := dir.FindActiveRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", room.OwnerID)
	assert.Equal(t, "secret-1", room.VisitorSecret)
	assert.True(t, room.Active)

	_, err = dir.FindActiveRoom(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = dir.FindActiveRoom(ctx, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDeactivate(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	createRoom(t, dir, "room-1", "owner-1", "secret-1")

	require.NoError(t, dir.Deactivate(ctx, "room-1"))

	_, err := dir.FindActiveRoom(ctx, "room-1")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	room, err := dir.FindRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.False(t, room.Active)

	assert.ErrorIs(t, dir.Deactivate(ctx, "room-1"), ErrRoomNotFound)
}

func TestCreateRoom_DuplicateSecret(t *testing.T) {
	dir := newTestDirectory(t)
	createRoom(t, dir, "room-1", "owner-1", "secret-1")

	err := dir.CreateRoom(context.Background(), &domain.Room{ID: "room-2", OwnerID: "owner-2", VisitorSecret: "secret-1"})
	assert.ErrorIs(t, err, ErrDuplicateSecret)
}

func TestAppendMessage(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	createRoom(t, dir, "room-1", "owner-1", "secret-1")

	owner := "owner-1"
	first := &domain.Message{ID: "m1", RoomID: "room-1", SenderType: domain.SenderOwner, SenderID: &owner, Content: "hello"}
	second := &domain.Message{ID: "m2", RoomID: "room-1", SenderType: domain.SenderVisitor, Content: "hi"}
	require.NoError(t, dir.AppendMessage(ctx, first))
	require.NoError(t, dir.AppendMessage(ctx, second))

	assert.False(t, first.CreatedAt.IsZero())
	assert.True(t, second.CreatedAt.After(first.CreatedAt), "created_at must increase within a room")

	updated, err := dir.FindRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, second.CreatedAt.UnixMicro(), updated.UpdatedAt.UnixMicro())

	msgs, err := dir.ListMessages(ctx, "room-1", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, domain.SenderOwner, msgs[0].SenderType)
	require.NotNil(t, msgs[0].SenderID)
	assert.Equal(t, "owner-1", *msgs[0].SenderID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Nil(t, msgs[1].SenderID)
}

func TestAppendMessage_InactiveRoom(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	createRoom(t, dir, "room-1", "owner-1", "secret-1")
	require.NoError(t, dir.Deactivate(ctx, "room-1"))

	err := dir.AppendMessage(ctx, &domain.Message{ID: "m1", RoomID: "room-1", SenderType: domain.SenderVisitor, Content: "late"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	msgs, err := dir.ListMessages(ctx, "room-1", time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestListMessages_Paging(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	createRoom(t, dir, "room-1", "owner-1", "secret-1")

	var stored []*domain.Message
	for _, id := range []string{"a", "b", "c", "d"} {
		m := &domain.Message{ID: id, RoomID: "room-1", SenderType: domain.SenderVisitor, Content: id}
		require.NoError(t, dir.AppendMessage(ctx, m))
		stored = append(stored, m)
	}

	page, err := dir.ListMessages(ctx, "room-1", time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "d", page[1].ID)

	older, err := dir.ListMessages(ctx, "room-1", stored[2].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "a", older[0].ID)
	assert.Equal(t, "b", older[1].ID)
}

func TestListOwnerRoomsAndLastMessages(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	createRoom(t, dir, "room-1", "owner-1", "secret-1")
	createRoom(t, dir, "room-2", "owner-1", "secret-2")
	createRoom(t, dir, "room-3", "owner-2", "secret-3")

	require.NoError(t, dir.AppendMessage(ctx, &domain.Message{ID: "m1", RoomID: "room-1", SenderType: domain.SenderVisitor, Content: "first"}))
	require.NoError(t, dir.AppendMessage(ctx, &domain.Message{ID: "m2", RoomID: "room-1", SenderType: domain.SenderVisitor, Content: "latest"}))

	rooms, err := dir.ListOwnerRooms(ctx, "owner-1", 0)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "room-1", rooms[0].ID, "most recently updated room first")

	last, err := dir.LastMessages(ctx, []string{"room-1", "room-2"})
	require.NoError(t, err)
	require.Contains(t, last, "room-1")
	assert.Equal(t, "latest", last["room-1"].Content)
	assert.NotContains(t, last, "room-2")
}

func TestDetachSender(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()
	createRoom(t, dir, "room-1", "owner-1", "secret-1")

	owner := "owner-1"
	require.NoError(t, dir.AppendMessage(ctx, &domain.Message{ID: "m1", RoomID: "room-1", SenderType: domain.SenderOwner, SenderID: &owner, Content: "hello"}))

	n, err := dir.DetachSender(ctx, "owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	msgs, err := dir.ListMessages(ctx, "room-1", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].SenderID)
	assert.Equal(t, domain.SenderOwner, msgs[0].SenderType)
}
