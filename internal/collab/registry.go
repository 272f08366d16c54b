package collab

import (
	"context"
	"sort"
	"sync"

	"github.com/gogotex/gogotex/backend/go-collab/pkg/metrics"
)

// Member is a room participant that can receive encoded frames.
// Deliver must not block; it returns false when the frame was not accepted.
type Member interface {
	ID() string
	Deliver(frame []byte) bool
}

// RoomObserver is told when a room comes into existence and when its last
// member leaves. Both calls happen exactly once per room, must not block and
// must not call back into the registry.
type RoomObserver interface {
	RoomOpened(r *Room)
	RoomClosed(r *Room)
}

// Room is the set of sessions joined to one document. Its mutex is the single
// ordering point for membership changes and broadcasts on that document.
type Room struct {
	id string

	mu      sync.Mutex
	members map[string]Member
	closed  bool
	content contentLog

	// creator recorded if a flush of this room creates the document; guarded by mu
	owner string

	// owned by the scheduler; set before the room is published
	stopFlush context.CancelFunc
	flushNow  chan struct{}
	scheduled bool
	epoch     uint64
	saves     *docSaves
}

func (r *Room) ID() string { return r.id }

// Len returns the current number of members.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Registry maps document ids to rooms. The registry mutex only guards the two
// maps; it is never held while a room lock is taken, so traffic on unrelated
// documents never serializes on it for longer than a map lookup.
//
// Join and Leave for one session must not run concurrently; a session's own
// connection goroutine drives both.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	index    map[string]*Room // session id -> room
	observer RoomObserver
}

func NewRegistry(observer RoomObserver) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		index:    make(map[string]*Room),
		observer: observer,
	}
}

func (r *Registry) getOrCreate(documentID string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[documentID]; ok {
		return room
	}
	room := &Room{id: documentID, members: make(map[string]Member)}
	if r.observer != nil {
		r.observer.RoomOpened(room)
	}
	r.rooms[documentID] = room
	metrics.RoomsActive.Inc()
	return room
}

func (r *Registry) lookup(documentID string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[documentID]
}

// Join adds m to the room of documentID, leaving any other room first.
// Joining the same document again is a no-op. Unknown document ids are fine.
func (r *Registry) Join(documentID string, m Member) *Room {
	id := m.ID()
	for {
		r.mu.Lock()
		prev := r.index[id]
		r.mu.Unlock()

		if prev != nil {
			if prev.id != documentID {
				r.Leave(id)
				continue
			}
			prev.mu.Lock()
			if !prev.closed {
				prev.members[id] = m
				prev.mu.Unlock()
				return prev
			}
			prev.mu.Unlock()
		}

		room := r.getOrCreate(documentID)
		room.mu.Lock()
		if room.closed {
			// lost a race with the last member leaving; the next lookup creates a fresh room
			room.mu.Unlock()
			continue
		}
		room.members[id] = m
		room.mu.Unlock()

		r.mu.Lock()
		r.index[id] = room
		r.mu.Unlock()
		return room
	}
}

// Leave removes the session from whatever room it is in. When it was the last
// member the room is closed and unpublished.
func (r *Registry) Leave(sessionID string) {
	r.mu.Lock()
	room := r.index[sessionID]
	delete(r.index, sessionID)
	r.mu.Unlock()
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if _, ok := room.members[sessionID]; !ok {
		return
	}
	delete(room.members, sessionID)
	if len(room.members) > 0 || room.closed {
		return
	}
	room.closed = true
	r.mu.Lock()
	if r.rooms[room.id] == room {
		delete(r.rooms, room.id)
	}
	r.mu.Unlock()
	metrics.RoomsActive.Dec()
	if r.observer != nil {
		r.observer.RoomClosed(room)
	}
}

// MembersOf returns the members of documentID except exclude. Unknown
// documents have no members.
func (r *Registry) MembersOf(documentID, exclude string) []Member {
	room := r.lookup(documentID)
	if room == nil {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	out := make([]Member, 0, len(room.members))
	for id, m := range room.members {
		if id != exclude {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RoomOf returns the document a session is joined to.
func (r *Registry) RoomOf(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.index[sessionID]
	if !ok {
		return "", false
	}
	return room.id, true
}

// Documents lists the ids of all open rooms.
func (r *Registry) Documents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
