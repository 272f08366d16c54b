package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/metrics"
)

// ErrNotFound is returned by Store.Load for documents that do not exist.
var ErrNotFound = errors.New("document not found")

// Store is the durable document store the engine reads through and flushes to.
type Store interface {
	Load(ctx context.Context, documentID string) (string, error)
	Save(ctx context.Context, documentID, content string) error
}

// OwnedStore is a Store that can record who created a document when a flush
// is the first write to it.
type OwnedStore interface {
	Store
	SaveOwned(ctx context.Context, documentID, content, owner string) error
}

// errSuperseded is returned by flush when a newer room for the same document
// has already saved; the older content must not overwrite it.
var errSuperseded = errors.New("superseded by a newer room")

// Archiver receives the final content of a room that saw edits when it closes.
type Archiver interface {
	Archive(ctx context.Context, documentID, content string) error
}

const (
	defaultFlushInterval = 2 * time.Second
	defaultSaveTimeout   = 10 * time.Second
	finalFlushAttempts   = 5
)

// Scheduler flushes room content to the store. Every room gets one flush
// goroutine for its lifetime: it saves on every tick while there is unsaved
// content, on explicit requests, and one final time when the room closes.
// All saves for a room therefore happen sequentially and off the
// propagation path.
//
// Rooms for the same document can overlap: a closed room may still be
// retrying its final flush when a new room opens. Saves per document are
// serialized, and each room carries an epoch; once a room has saved, rooms
// with an older epoch stop saving that document.
type Scheduler struct {
	store       Store
	archiver    Archiver
	interval    time.Duration
	saveTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]int // document id -> running periodic timers
	docs   map[string]*docSaves
	epoch  uint64
}

// docSaves orders the saves of every room of one document.
type docSaves struct {
	mu         sync.Mutex // held across store.Save
	savedEpoch uint64     // epoch of the newest room that saved
	refs       int        // flush loops still running
}

func NewScheduler(store Store, interval time.Duration, archiver Archiver) *Scheduler {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:       store,
		archiver:    archiver,
		interval:    interval,
		saveTimeout: defaultSaveTimeout,
		ctx:         ctx,
		cancel:      cancel,
		active:      make(map[string]int),
		docs:        make(map[string]*docSaves),
	}
}

// RoomOpened starts the room's flush loop.
func (s *Scheduler) RoomOpened(r *Room) {
	ctx, cancel := context.WithCancel(s.ctx)
	r.stopFlush = cancel
	r.flushNow = make(chan struct{}, 1)

	s.mu.Lock()
	r.scheduled = true
	s.active[r.id]++
	s.epoch++
	r.epoch = s.epoch
	d, ok := s.docs[r.id]
	if !ok {
		d = &docSaves{}
		s.docs[r.id] = d
	}
	d.refs++
	r.saves = d
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, r)
}

// RoomClosed cancels the periodic timer; the loop performs the final flush.
func (s *Scheduler) RoomClosed(r *Room) {
	s.deactivate(r)
	r.stopFlush()
}

func (s *Scheduler) deactivate(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !r.scheduled {
		return
	}
	r.scheduled = false
	if s.active[r.id]--; s.active[r.id] <= 0 {
		delete(s.active, r.id)
	}
}

// Active reports whether a periodic flush timer is running for documentID.
func (s *Scheduler) Active(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[documentID] > 0
}

// Seed installs stored content as the base of the room's log if no earlier
// joiner did so.
func (s *Scheduler) Seed(r *Room, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content.seed(content)
}

// Claim records subject as the creator of the room's document, used if a
// flush of this room creates it. The first identified joiner wins.
func (s *Scheduler) Claim(r *Room, subject string) {
	if subject == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == "" {
		r.owner = subject
	}
}

// RequestFlush asks the room's loop to flush now. It never blocks.
func (s *Scheduler) RequestFlush(r *Room) {
	if r == nil || r.flushNow == nil {
		return
	}
	select {
	case r.flushNow <- struct{}{}:
	default:
	}
}

func (s *Scheduler) release(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.saves.refs--; r.saves.refs <= 0 && s.docs[r.id] == r.saves {
		delete(s.docs, r.id)
	}
}

func (s *Scheduler) run(ctx context.Context, r *Room) {
	defer s.wg.Done()
	defer s.release(r)
	log := logger.With("doc", r.id)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := s.flush(ctx, r); err != nil && !errors.Is(err, errSuperseded) {
				log.Warnf("flush failed, retrying next tick: %v", err)
			}
		case <-r.flushNow:
			if err := s.flush(ctx, r); err != nil && !errors.Is(err, errSuperseded) {
				log.Warnf("requested flush failed, retrying next tick: %v", err)
			}
		case <-ctx.Done():
			s.deactivate(r)
			s.finalFlush(r, log)
			return
		}
	}
}

// flush saves the room content if it changed since the last successful save
// and no newer room of the document has saved in the meantime.
func (s *Scheduler) flush(ctx context.Context, r *Room) error {
	d := r.saves
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.savedEpoch > r.epoch {
		return errSuperseded
	}

	r.mu.Lock()
	content, gen, dirty := r.content.pending()
	owner := r.owner
	r.mu.Unlock()
	if !dirty {
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	err := s.save(sctx, r.id, content, owner)
	cancel()
	if err != nil {
		metrics.Flushes.WithLabelValues("error").Inc()
		return err
	}
	d.savedEpoch = r.epoch
	r.mu.Lock()
	r.content.markSaved(gen)
	r.mu.Unlock()
	metrics.Flushes.WithLabelValues("ok").Inc()
	return nil
}

func (s *Scheduler) save(ctx context.Context, documentID, content, owner string) error {
	if owned, ok := s.store.(OwnedStore); ok && owner != "" {
		return owned.SaveOwned(ctx, documentID, content, owner)
	}
	return s.store.Save(ctx, documentID, content)
}

// finalFlush runs detached from the cancelled room context and retries with
// backoff since no further tick will come.
func (s *Scheduler) finalFlush(r *Room, log *logger.Entry) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval / 4
	op := func() error {
		err := s.flush(context.Background(), r)
		if errors.Is(err, errSuperseded) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(b, finalFlushAttempts-1)); err != nil {
		if errors.Is(err, errSuperseded) {
			log.Infof("final flush skipped: a newer room already saved this document")
			return
		}
		log.Errorf("final flush failed, unsaved edits lost: %v", err)
		return
	}

	r.mu.Lock()
	edited := r.content.gen > 0
	content := encodeLog(r.content.entries)
	seeded := r.content.seeded
	r.mu.Unlock()
	if s.archiver == nil || !edited || !seeded {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.archiver.Archive(ctx, r.id, content); err != nil {
		log.Warnf("archive snapshot failed: %v", err)
	}
}

// Shutdown closes every flush loop, waiting for their final flushes until ctx
// expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
