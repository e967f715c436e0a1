package domain

import (
	"sync"
	"time"
)

// SessionState is the lifecycle state of one live connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthorized
	StateOpen
	StateClosed
	StateRejected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Session is the in-memory state of one connection. It is never persisted.
type Session struct {
	ID           string
	RoomID       string
	OwnerID      string // resolved identity, empty for visitors
	Role         SenderType
	CreatedAt    time.Time
	LastActiveAt time.Time

	state SessionState
	mu    sync.RWMutex
}

func NewSession(id, roomID string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		RoomID:       roomID,
		CreatedAt:    now,
		LastActiveAt: now,
		state:        StateConnecting,
	}
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// transition moves from one of the given states to next.
func (s *Session) transition(next SessionState, from ...SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = next
			s.LastActiveAt = time.Now()
			return true
		}
	}
	return false
}

// Authorize records the role granted by the authorizer. identity is kept
// only for owners.
func (s *Session) Authorize(role SenderType, identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.Role = role
	if role == SenderOwner {
		s.OwnerID = identity
	}
	s.state = StateAuthorized
	s.LastActiveAt = time.Now()
	return true
}

func (s *Session) Reject() bool {
	return s.transition(StateRejected, StateConnecting, StateAuthorized)
}

func (s *Session) Open() bool {
	return s.transition(StateOpen, StateAuthorized)
}

// Close ends the session. Only the first call reports true.
func (s *Session) Close() bool {
	return s.transition(StateClosed, StateOpen, StateAuthorized)
}

func (s *Session) IsOpen() bool {
	return s.State() == StateOpen
}

// SenderID is the identity stamped on messages sent by this session.
func (s *Session) SenderID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Role != SenderOwner || s.OwnerID == "" {
		return nil
	}
	id := s.OwnerID
	return &id
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
