package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/internal/repository"
	"github.com/Sirojiddin1dev/carinfopro/pkg/database"
)

func newTestDirectory(t *testing.T) *repository.GormRoomDirectory {
	t.Helper()

	db, err := database.Open(sqlite.Open("file::memory:"), &database.Config{MaxOpenConns: 1, MaxIdleConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, repository.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewGormRoomDirectory(db)
}

func seedRoom(t *testing.T, rooms repository.RoomDirectory, id, owner, secret string) {
	t.Helper()
	require.NoError(t, rooms.CreateRoom(context.Background(), &domain.Room{ID: id, OwnerID: owner, VisitorSecret: secret}))
}

// fakeConn records every frame queued for it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	code   int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, data)
	return true
}

func (c *fakeConn) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Deliver(data)
	return nil
}

func (c *fakeConn) Close(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.code = code
	}
}

func (c *fakeConn) closeCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// decoded returns every frame as a generic JSON object.
func (c *fakeConn) decoded(t *testing.T) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

// envelopes returns only message envelopes, skipping control frames.
func (c *fakeConn) envelopes(t *testing.T) []domain.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.Envelope
	for _, f := range c.frames {
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f, &head))
		if head.Type != "" {
			continue
		}
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) framesOfType(t *testing.T, typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, f := range c.decoded(t) {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

type staticResolver map[string]string

func (r staticResolver) Resolve(ctx context.Context, token string) (string, error) {
	if id, ok := r[token]; ok {
		return id, nil
	}
	return "", errInvalidToken
}

type tokenError string

func (e tokenError) Error() string { return string(e) }

const errInvalidToken = tokenError("invalid token")

// mockDirectory lets tests inject collaborator failures.
type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FindActiveRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *mockDirectory) FindRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *mockDirectory) CreateRoom(ctx context.Context, room *domain.Room) error {
	return m.Called(ctx, room).Error(0)
}

func (m *mockDirectory) AppendMessage(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockDirectory) ListOwnerRooms(ctx context.Context, ownerID string, limit int) ([]domain.Room, error) {
	args := m.Called(ctx, ownerID, limit)
	rooms, _ := args.Get(0).([]domain.Room)
	return rooms, args.Error(1)
}

func (m *mockDirectory) LastMessages(ctx context.Context, roomIDs []string) (map[string]domain.Message, error) {
	args := m.Called(ctx, roomIDs)
	msgs, _ := args.Get(0).(map[string]domain.Message)
	return msgs, args.Error(1)
}

func (m *mockDirectory) ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, before, limit)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *mockDirectory) Deactivate(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *mockDirectory) DetachSender(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// groupSizeConn notes how many members the room group had when the join
// confirmation was queued.
type groupSizeConn struct {
	*fakeConn
	hub   interface{ Count(string) int }
	group string

	sizeAtJoined int
}

func (c *groupSizeConn) Send(v interface{}) error {
	if f, ok := v.(*domain.JoinedFrame); ok && f.Type == domain.FrameJoined {
		c.sizeAtJoined = c.hub.Count(c.group)
	}
	return c.fakeConn.Send(v)
}

// recordingProducer keeps the ids of produced messages in call order.
type recordingProducer struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingProducer) ProduceMessage(ctx context.Context, msg *domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, msg.ID)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) produced() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}
