package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gogotex/gogotex/backend/go-collab/internal/document"
	"github.com/google/uuid"
)

// MemoryRepo is an in-memory repository used when no MongoDB is configured
// and by unit tests. Values are copied on the way in and out.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document), now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, doc *document.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Title == "" {
		doc.Title = document.DefaultTitle
	}
	if doc.Collaborators == nil {
		doc.Collaborators = []string{}
	}
	doc.CreatedAt = m.now()
	doc.LastModified = doc.CreatedAt
	m.store[doc.ID] = doc.Clone()
	return doc.ID, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return d.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) List(_ context.Context, sub string) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0, len(m.store))
	for _, d := range m.store {
		if sub != "" && d.Owner != sub && !d.HasCollaborator(sub) {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

func (m *MemoryRepo) Update(_ context.Context, id string, p document.Patch) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	d.Version++
	d.LastModified = m.now()
	return d.Clone(), nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryRepo) SaveContent(_ context.Context, id, content, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	d, ok := m.store[id]
	if !ok {
		d = &document.Document{ID: id, Title: document.DefaultTitle, Owner: owner, Collaborators: []string{}, CreatedAt: now}
		m.store[id] = d
	}
	d.Content = content
	d.Version++
	d.LastModified = now
	return d.Version, nil
}

func (m *MemoryRepo) AddCollaborator(_ context.Context, id, sub string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if d.HasCollaborator(sub) {
		return ErrAlreadyCollaborator
	}
	d.Collaborators = append(d.Collaborators, sub)
	d.LastModified = m.now()
	return nil
}

func (m *MemoryRepo) RemoveCollaborator(_ context.Context, id, sub string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	kept := d.Collaborators[:0]
	for _, c := range d.Collaborators {
		if c != sub {
			kept = append(kept, c)
		}
	}
	d.Collaborators = kept
	d.LastModified = m.now()
	return nil
}
