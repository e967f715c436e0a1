package hub

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

// Member is anything that can sit in a broadcast group.
type Member interface {
	ID() string
	// Deliver queues data without blocking. It reports false when the
	// member cannot take more.
	Deliver(data []byte) bool
	Close(code int, reason string)
}

type group struct {
	mu      sync.RWMutex
	members map[string]Member
	dead    bool
}

// Hub maps group names to their members. Each group has its own lock; the
// hub-wide lock only guards the group table.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]*group
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]*group)}
}

// groupFor returns the live group for name, creating it when needed.
func (h *Hub) groupFor(name string) *group {
	h.mu.RLock()
	g := h.groups[name]
	h.mu.RUnlock()
	if g != nil && !g.isDead() {
		return g
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	g = h.groups[name]
	if g == nil || g.isDead() {
		g = &group{members: make(map[string]Member)}
		h.groups[name] = g
	}
	return g
}

func (h *Hub) lookup(name string) *group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.groups[name]
}

func (g *group) isDead() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dead
}

// Join adds m to the group. It reports whether m is the group's first
// member.
func (h *Hub) Join(name string, m Member) bool {
	for {
		g := h.groupFor(name)

		g.mu.Lock()
		if g.dead {
			// Emptied and retired between lookup and lock.
			g.mu.Unlock()
			continue
		}
		_, exists := g.members[m.ID()]
		first := len(g.members) == 0
		g.members[m.ID()] = m
		g.mu.Unlock()

		l := log.L()
		l.Debug().Str("group", name).Str("member_id", m.ID()).Msg("member joined group")
		return first && !exists
	}
}

// Leave removes m from the group. It reports whether the group became
// empty. Leaving a group m never joined is a no-op.
func (h *Hub) Leave(name string, m Member) bool {
	g := h.lookup(name)
	if g == nil {
		return false
	}

	g.mu.Lock()
	if _, ok := g.members[m.ID()]; !ok {
		g.mu.Unlock()
		return false
	}
	delete(g.members, m.ID())
	empty := len(g.members) == 0
	if empty {
		g.dead = true
	}
	g.mu.Unlock()

	if empty {
		h.mu.Lock()
		if h.groups[name] == g {
			delete(h.groups, name)
		}
		h.mu.Unlock()
	}

	l := log.L()
	l.Debug().Str("group", name).Str("member_id", m.ID()).Msg("member left group")
	return empty
}

// Publish hands data to every current member and returns how many took it.
// Members whose buffers are full are closed; the session teardown removes
// them from the group.
func (h *Hub) Publish(name string, data []byte) int {
	g := h.lookup(name)
	if g == nil {
		return 0
	}

	var slow []Member
	delivered := 0

	g.mu.RLock()
	for _, m := range g.members {
		if m.Deliver(data) {
			delivered++
		} else {
			slow = append(slow, m)
		}
	}
	g.mu.RUnlock()

	for _, m := range slow {
		l := log.L()
		l.Warn().Str("group", name).Str("member_id", m.ID()).Msg("send buffer full, dropping member")
		m.Close(websocket.CloseTryAgainLater, "slow consumer")
	}
	return delivered
}

// CloseGroup closes every member of the group with code and reason and
// returns how many were closed.
func (h *Hub) CloseGroup(name string, code int, reason string) int {
	g := h.lookup(name)
	if g == nil {
		return 0
	}

	g.mu.RLock()
	members := make([]Member, 0, len(g.members))
	for _, m := range g.members {
		members = append(members, m)
	}
	g.mu.RUnlock()

	for _, m := range members {
		m.Close(code, reason)
	}
	return len(members)
}

// Count returns the number of members in the group.
func (h *Hub) Count(name string) int {
	g := h.lookup(name)
	if g == nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// Groups returns the number of non-empty groups.
func (h *Hub) Groups() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// CloseAll closes every member of every group. It is used on shutdown.
func (h *Hub) CloseAll(code int, reason string) int {
	h.mu.RLock()
	names := make([]string, 0, len(h.groups))
	for name := range h.groups {
		names = append(names, name)
	}
	h.mu.RUnlock()

	n := 0
	for _, name := range names {
		n += h.CloseGroup(name, code, reason)
	}
	return n
}
