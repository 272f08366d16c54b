package collab

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMember struct {
	id     string
	refuse bool

	mu     sync.Mutex
	frames [][]byte
}

func newFakeMember(id string) *fakeMember { return &fakeMember{id: id} }

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Deliver(frame []byte) bool {
	if m.refuse {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame)
	return true
}

func (m *fakeMember) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.frames...)
}

type recordingObserver struct {
	mu     sync.Mutex
	opened map[string]int
	closed map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{opened: map[string]int{}, closed: map[string]int{}}
}

func (o *recordingObserver) RoomOpened(r *Room) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened[r.ID()]++
}

func (o *recordingObserver) RoomClosed(r *Room) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed[r.ID()]++
}

func ids(ms []Member) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID())
	}
	return out
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	obs := newRecordingObserver()
	r := NewRegistry(obs)
	a := newFakeMember("a")

	first := r.Join("d1", a)
	second := r.Join("d1", a)
	require.Same(t, first, second)
	require.Equal(t, 1, first.Len())
	require.Equal(t, 1, obs.opened["d1"])
}

func TestRegistry_SessionIsInOneRoom(t *testing.T) {
	r := NewRegistry(nil)
	a := newFakeMember("a")
	b := newFakeMember("b")
	r.Join("d1", a)
	r.Join("d1", b)

	r.Join("d2", a)
	doc, ok := r.RoomOf("a")
	require.True(t, ok)
	require.Equal(t, "d2", doc)
	require.Equal(t, []string{"b"}, ids(r.MembersOf("d1", "")))
	require.Equal(t, []string{"a"}, ids(r.MembersOf("d2", "")))
}

func TestRegistry_LeaveClosesEmptyRoom(t *testing.T) {
	obs := newRecordingObserver()
	r := NewRegistry(obs)
	a := newFakeMember("a")
	b := newFakeMember("b")
	room := r.Join("d1", a)
	r.Join("d1", b)

	r.Leave("a")
	require.Equal(t, []string{"d1"}, r.Documents())
	require.Zero(t, obs.closed["d1"])

	r.Leave("b")
	require.Empty(t, r.Documents())
	require.Equal(t, 1, obs.closed["d1"])
	require.True(t, room.closed)

	// a new join opens a fresh room
	again := r.Join("d1", a)
	require.NotSame(t, room, again)
	require.Equal(t, 2, obs.opened["d1"])
}

func TestRegistry_LeaveWithoutJoinIsNoop(t *testing.T) {
	obs := newRecordingObserver()
	r := NewRegistry(obs)
	r.Leave("ghost")
	r.Join("d1", newFakeMember("a"))
	r.Leave("ghost")
	require.Equal(t, []string{"d1"}, r.Documents())
	require.Zero(t, obs.closed["d1"])
}

func TestRegistry_MembersOf(t *testing.T) {
	r := NewRegistry(nil)
	for _, id := range []string{"c", "a", "b"} {
		r.Join("d1", newFakeMember(id))
	}
	require.Equal(t, []string{"a", "b", "c"}, ids(r.MembersOf("d1", "")))
	require.Equal(t, []string{"a", "c"}, ids(r.MembersOf("d1", "b")))
	require.Empty(t, r.MembersOf("unknown", ""))

	_, ok := r.RoomOf("nobody")
	require.False(t, ok)
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	obs := newRecordingObserver()
	r := NewRegistry(obs)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := newFakeMember(fmt.Sprintf("s-%d", i))
			for j := 0; j < 20; j++ {
				r.Join(fmt.Sprintf("d-%d", j%3), m)
			}
			r.Leave(m.ID())
		}(i)
	}
	wg.Wait()

	require.Empty(t, r.Documents())
	obs.mu.Lock()
	defer obs.mu.Unlock()
	for doc, n := range obs.opened {
		require.Equal(t, n, obs.closed[doc], "every opened room closes exactly once: %s", doc)
	}
}
