package collab

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/metrics"
	"golang.org/x/time/rate"
)

// State is the lifecycle state of a connection.
type State int

const (
	StateConnecting State = iota
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is one client connection. The transport feeds inbound frames to
// HandleFrame from a single goroutine and drains Outbound until it is closed.
//
// Frames delivered between a join and its load response are held back and
// released right after the load, so the load is always the first frame of a
// join and nothing broadcast after the join is missed.
type Session struct {
	id      string
	hub     *Hub
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logger.Entry
	limiter *rate.Limiter

	mu         sync.Mutex
	state      State
	documentID string
	subject    string
	loaded     bool
	pending    [][]byte
	out        chan []byte

	closeOnce sync.Once
}

func (s *Session) ID() string { return s.id }

// Outbound is closed when the session is disconnected.
func (s *Session) Outbound() <-chan []byte { return s.out }

// Done is closed when the session is disconnected.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// State returns the lifecycle state and the joined document id.
func (s *Session) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.documentID
}

// Deliver queues a broadcast frame without blocking. A session whose buffer
// is full is disconnected; the client has to reconnect and reload.
func (s *Session) Deliver(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	if !s.loaded {
		if len(s.pending) >= cap(s.out) {
			s.log.Warnf("pending buffer full before load, disconnecting")
			s.shutdownLocked()
			return false
		}
		s.pending = append(s.pending, frame)
		return true
	}
	return s.enqueueLocked(frame)
}

func (s *Session) enqueueLocked(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		s.log.Warnf("send buffer full, disconnecting slow session")
		s.shutdownLocked()
		return false
	}
}

func (s *Session) shutdownLocked() {
	if s.state == StateDisconnected {
		return
	}
	s.state = StateDisconnected
	s.pending = nil
	close(s.out)
	s.cancel()
}

func (s *Session) sendError(code, msg string) {
	frame, err := EncodeFrame(EventError, ErrorPayload{Code: code, Message: msg})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisconnected {
		s.enqueueLocked(frame)
	}
}

func (s *Session) drop(reason, format string, v ...interface{}) {
	metrics.MessagesDropped.WithLabelValues(reason).Inc()
	s.logger().Debugf("dropped message ("+reason+"): "+format, v...)
}

// HandleFrame decodes and handles one inbound frame. Malformed frames are dropped.
func (s *Session) HandleFrame(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.drop("malformed", "%v", err)
		return
	}
	s.Handle(msg)
}

// Handle processes one inbound message.
func (s *Session) Handle(msg Message) {
	if st, _ := s.State(); st == StateDisconnected {
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.drop("rate", "event=%s", msg.Event)
		return
	}
	switch msg.Event {
	case EventJoinDocument:
		p, err := parseJoin(msg.Data)
		if err != nil || p.DocumentID == "" {
			s.drop("malformed", "join payload: %v", err)
			return
		}
		s.join(p)
	case EventSendChanges, EventDocumentChange:
		var p changePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			s.drop("malformed", "change payload: %v", err)
			return
		}
		s.change(p)
	case EventSaveDocument:
		var p savePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			s.drop("malformed", "save payload: %v", err)
			return
		}
		s.save(p)
	default:
		s.drop("unknown_event", "event=%q", msg.Event)
	}
}

func (s *Session) join(p joinPayload) {
	subject, err := s.hub.authorize(s.ctx, p)
	if err != nil {
		s.logger().Infof("join %s rejected: %v", p.DocumentID, err)
		s.sendError(CodeUnauthorized, "not allowed to join this document")
		return
	}

	_, prev := s.State()
	if prev != "" && prev != p.DocumentID {
		// once Leave returns no broadcast of the old room can reach this
		// session, so nothing from it ends up behind the new load
		s.hub.registry.Leave(s.id)
		s.hub.presenceLeft(prev, s.id)
		s.mu.Lock()
		if s.state != StateDisconnected {
			s.state = StateConnecting
			s.documentID = ""
		}
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.loaded = false
	s.pending = nil
	s.mu.Unlock()

	room := s.hub.registry.Join(p.DocumentID, s)
	s.hub.scheduler.Claim(room, subject)

	content, err := s.hub.store.Load(s.ctx, p.DocumentID)
	switch {
	case err == nil:
		s.hub.scheduler.Seed(room, content)
	case errors.Is(err, ErrNotFound):
		content = ""
		s.hub.scheduler.Seed(room, content)
	default:
		// leave the room unseeded so its log is never flushed over content it has not seen
		s.logger().Errorf("load %s failed: %v", p.DocumentID, err)
		s.sendError(CodeLoadFailed, "document content could not be loaded")
		content = ""
	}

	frame, err := EncodeFrame(EventLoadDocument, Snapshot(content))
	if err != nil {
		s.logger().Errorf("encode load: %v", err)
		return
	}

	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		// closed while joining; Close may have run before the registry saw us
		s.hub.registry.Leave(s.id)
		return
	}
	s.state = StateJoined
	s.documentID = p.DocumentID
	s.subject = subject
	s.log = s.log.With("doc", p.DocumentID)
	ok := s.enqueueLocked(frame)
	for _, f := range s.pending {
		if !ok {
			break
		}
		ok = s.enqueueLocked(f)
	}
	s.pending = nil
	s.loaded = true
	s.mu.Unlock()

	s.hub.presenceJoined(p.DocumentID, s.id, subject)
	if st, _ := s.State(); st == StateDisconnected {
		s.hub.presenceLeft(p.DocumentID, s.id)
		return
	}
	s.logger().Debugf("joined")
}

func (s *Session) logger() *logger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

func (s *Session) change(p changePayload) {
	st, doc := s.State()
	if st != StateJoined {
		s.drop("not_joined", "change before join")
		return
	}
	if p.DocumentID != "" && p.DocumentID != doc {
		s.drop("wrong_document", "change for %s while joined to %s", p.DocumentID, doc)
		return
	}
	op := p.op()
	if len(op) == 0 {
		s.drop("malformed", "change without operation")
		return
	}
	s.hub.engine.Propagate(doc, s.id, op)
}

func (s *Session) save(p savePayload) {
	st, doc := s.State()
	if st != StateJoined {
		s.drop("not_joined", "save before join")
		return
	}
	if p.DocumentID != "" && p.DocumentID != doc {
		s.drop("wrong_document", "save for %s while joined to %s", p.DocumentID, doc)
		return
	}
	// the server's log is authoritative; the client snapshot in p.Content is not stored
	s.hub.scheduler.RequestFlush(s.hub.registry.lookup(doc))
}

// Close disconnects the session: no more frames are accepted or delivered,
// the session leaves its room and session-scoped work is cancelled. Safe to
// call more than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		doc := s.documentID
		log := s.log
		s.shutdownLocked()
		s.mu.Unlock()

		s.hub.registry.Leave(s.id)
		if doc != "" {
			s.hub.presenceLeft(doc, s.id)
		}
		s.hub.forget(s)
		metrics.SessionsConnected.Dec()
		log.Debugf("disconnected")
	})
}
