package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrUnauthorized is returned when a join carries no valid ticket.
var ErrUnauthorized = errors.New("unauthorized")

// TicketVerifier checks a join ticket for a document and returns its subject.
type TicketVerifier interface {
	VerifyJoin(ctx context.Context, ticket, documentID string) (string, error)
}

// Presence records which sessions are joined to which document.
type Presence interface {
	Joined(ctx context.Context, documentID, sessionID, subject string) error
	Left(ctx context.Context, documentID, sessionID string) error
}

type Options struct {
	FlushInterval time.Duration
	SendBuffer    int
	MessageRate   float64 // per session, messages per second; 0 disables limiting
	MessageBurst  int
	RequireTicket bool
	Tickets       TicketVerifier
	Presence      Presence
	Archiver      Archiver
}

const (
	defaultSendBuffer = 256
	presenceTimeout   = 2 * time.Second
)

// Hub wires the registry, the propagation engine and the persistence
// scheduler together and hands out sessions.
type Hub struct {
	store     Store
	opts      Options
	registry  *Registry
	engine    *Engine
	scheduler *Scheduler

	sessions sync.Map // id -> *Session
}

func NewHub(store Store, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	sched := NewScheduler(store, opts.FlushInterval, opts.Archiver)
	reg := NewRegistry(sched)
	return &Hub{
		store:     store,
		opts:      opts,
		registry:  reg,
		engine:    NewEngine(reg),
		scheduler: sched,
	}
}

func (h *Hub) Registry() *Registry   { return h.registry }
func (h *Hub) Engine() *Engine       { return h.engine }
func (h *Hub) Scheduler() *Scheduler { return h.scheduler }

// Connect opens a session in the Connecting state. The session is cancelled
// when ctx is.
func (h *Hub) Connect(ctx context.Context) *Session {
	id := uuid.NewString()
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:     id,
		hub:    h,
		ctx:    sctx,
		cancel: cancel,
		log:    logger.With("session", id),
		state:  StateConnecting,
		out:    make(chan []byte, h.opts.SendBuffer),
	}
	if h.opts.MessageRate > 0 {
		burst := h.opts.MessageBurst
		if burst <= 0 {
			burst = int(h.opts.MessageRate)
		}
		s.limiter = rate.NewLimiter(rate.Limit(h.opts.MessageRate), burst)
	}
	h.sessions.Store(id, s)
	metrics.SessionsConnected.Inc()
	return s
}

// Session returns a connected session by id.
func (h *Hub) Session(id string) (*Session, bool) {
	v, ok := h.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (h *Hub) forget(s *Session) { h.sessions.Delete(s.id) }

func (h *Hub) authorize(ctx context.Context, p joinPayload) (string, error) {
	if p.Ticket == "" {
		if h.opts.RequireTicket {
			return "", ErrUnauthorized
		}
		return "", nil
	}
	if h.opts.Tickets == nil {
		if h.opts.RequireTicket {
			return "", ErrUnauthorized
		}
		return "", nil
	}
	sub, err := h.opts.Tickets.VerifyJoin(ctx, p.Ticket, p.DocumentID)
	if err != nil {
		return "", errors.Join(ErrUnauthorized, err)
	}
	return sub, nil
}

func (h *Hub) presenceJoined(documentID, sessionID, subject string) {
	if h.opts.Presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.opts.Presence.Joined(ctx, documentID, sessionID, subject); err != nil {
		logger.Warnf("presence join doc=%s session=%s: %v", documentID, sessionID, err)
	}
}

func (h *Hub) presenceLeft(documentID, sessionID string) {
	if h.opts.Presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.opts.Presence.Left(ctx, documentID, sessionID); err != nil {
		logger.Warnf("presence leave doc=%s session=%s: %v", documentID, sessionID, err)
	}
}

// Shutdown disconnects every session and waits for the final flushes.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.sessions.Range(func(_, v any) bool {
		v.(*Session).Close()
		return true
	})
	return h.scheduler.Shutdown(ctx)
}
