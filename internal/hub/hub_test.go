package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMember struct {
	id       string
	capacity int

	mu       sync.Mutex
	received [][]byte
	closed   bool
	code     int
}

func newFakeMember(id string, capacity int) *fakeMember {
	return &fakeMember{id: id, capacity: capacity}
}

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Deliver(data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || len(m.received) >= m.capacity {
		return false
	}
	m.received = append(m.received, data)
	return true
}

func (m *fakeMember) Close(code int, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.code = code
	}
}

func (m *fakeMember) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.received))
	for i, b := range m.received {
		out[i] = string(b)
	}
	return out
}

func TestHub_JoinLeave(t *testing.T) {
	h := NewHub()
	a := newFakeMember("a", 10)
	b := newFakeMember("b", 10)

	assert.True(t, h.Join("chat_1", a))
	assert.False(t, h.Join("chat_1", b))
	assert.False(t, h.Join("chat_1", a), "rejoin is not a first join")
	assert.Equal(t, 2, h.Count("chat_1"))

	assert.False(t, h.Leave("chat_1", a))
	assert.False(t, h.Leave("chat_1", a), "second leave is a no-op")
	assert.True(t, h.Leave("chat_1", b))
	assert.Equal(t, 0, h.Count("chat_1"))
	assert.Equal(t, 0, h.Groups())

	assert.False(t, h.Leave("chat_missing", a))
}

func TestHub_PublishReachesCurrentMembersOnly(t *testing.T) {
	h := NewHub()
	a := newFakeMember("a", 10)
	b := newFakeMember("b", 10)
	other := newFakeMember("other", 10)

	h.Join("chat_1", a)
	h.Join("chat_2", other)
	assert.Equal(t, 1, h.Publish("chat_1", []byte("before")))

	h.Join("chat_1", b)
	assert.Equal(t, 2, h.Publish("chat_1", []byte("both")))

	h.Leave("chat_1", a)
	assert.Equal(t, 1, h.Publish("chat_1", []byte("after")))

	assert.Equal(t, []string{"before", "both"}, a.messages())
	assert.Equal(t, []string{"both", "after"}, b.messages())
	assert.Empty(t, other.messages())

	assert.Equal(t, 0, h.Publish("chat_nobody", []byte("x")))
}

func TestHub_SlowMemberIsClosed(t *testing.T) {
	h := NewHub()
	slow := newFakeMember("slow", 1)
	fast := newFakeMember("fast", 10)
	h.Join("chat_1", slow)
	h.Join("chat_1", fast)

	h.Publish("chat_1", []byte("one"))
	delivered := h.Publish("chat_1", []byte("two"))

	assert.Equal(t, 1, delivered)
	assert.True(t, slow.closed)
	assert.Equal(t, []string{"one", "two"}, fast.messages())
}

func TestHub_CloseGroup(t *testing.T) {
	h := NewHub()
	a := newFakeMember("a", 10)
	b := newFakeMember("b", 10)
	h.Join("chat_1", a)
	h.Join("chat_1", b)

	assert.Equal(t, 2, h.CloseGroup("chat_1", 4410, "room closed"))
	assert.Equal(t, 4410, a.code)
	assert.Equal(t, 4410, b.code)
	assert.Equal(t, 0, h.CloseGroup("chat_missing", 4410, ""))
}

func TestHub_ConcurrentJoinLeavePublish(t *testing.T) {
	h := NewHub()
	const workers = 32

	stable := newFakeMember("stable", 100000)
	h.Join("chat_1", stable)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m := newFakeMember(fmt.Sprintf("m%d", i), 100000)
			for j := 0; j < 50; j++ {
				h.Join("chat_1", m)
				h.Leave("chat_1", m)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish("chat_1", []byte("x"))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, h.Count("chat_1"))
	assert.Len(t, stable.messages(), workers*50)
}

func TestHub_RegroupAfterEmpty(t *testing.T) {
	h := NewHub()
	a := newFakeMember("a", 10)

	assert.True(t, h.Join("chat_1", a))
	assert.True(t, h.Leave("chat_1", a))
	assert.True(t, h.Join("chat_1", a), "group is recreated after it emptied")
	assert.Equal(t, 1, h.Publish("chat_1", []byte("again")))
}
