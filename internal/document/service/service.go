package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogotex/gogotex/backend/go-collab/internal/document"
	"github.com/gogotex/gogotex/backend/go-collab/internal/document/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyCollaborator = errors.New("already a collaborator")
)

// Service defines the document business operations used by the REST handlers
// and, through Load/Save, by the real-time engine as its document store.
type Service interface {
	Create(ctx context.Context, d *document.Document) (string, error)
	Get(ctx context.Context, id, sub string) (*document.Document, error)
	List(ctx context.Context, sub string) ([]*document.Document, error)
	Update(ctx context.Context, id, sub string, p document.Patch) (*document.Document, error)
	Delete(ctx context.Context, id, sub string) error
	AddCollaborator(ctx context.Context, id, sub, collaborator string) (*document.Document, error)
	RemoveCollaborator(ctx context.Context, id, sub, collaborator string) (*document.Document, error)

	// Load returns the stored content of a document or ErrNotFound.
	Load(ctx context.Context, id string) (string, error)
	// Save writes content, bumping the version; unknown ids are created
	// with owner as their owner.
	Save(ctx context.Context, id, content, owner string) error
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo())
}

// NewMongoService returns a Service backed by a MongoDB collection.
// Caller is responsible for creating the collection (and client) and passing it in.
func NewMongoService(col *mongo.Collection) Service {
	return New(repository.NewMongoRepo(col))
}

// New wraps any repository implementation.
func New(repo repository.Repository) Service {
	return &service{repo: repo}
}

type service struct {
	repo repository.Repository
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrAlreadyCollaborator):
		return ErrAlreadyCollaborator
	}
	return err
}

// load fetches a document and checks that sub may access it. Inaccessible
// documents are reported as not found so ids cannot be probed.
func (s *service) load(ctx context.Context, id, sub string) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	if !d.CanAccess(sub) {
		return nil, ErrNotFound
	}
	return d, nil
}

func (s *service) Create(ctx context.Context, d *document.Document) (string, error) {
	if d.Content == "" {
		d.Content = "[]"
	}
	return s.repo.Create(ctx, d)
}

func (s *service) Get(ctx context.Context, id, sub string) (*document.Document, error) {
	return s.load(ctx, id, sub)
}

func (s *service) List(ctx context.Context, sub string) ([]*document.Document, error) {
	return s.repo.List(ctx, sub)
}

func (s *service) Update(ctx context.Context, id, sub string, p document.Patch) (*document.Document, error) {
	if _, err := s.load(ctx, id, sub); err != nil {
		return nil, err
	}
	d, err := s.repo.Update(ctx, id, p)
	return d, mapErr(err)
}

func (s *service) Delete(ctx context.Context, id, sub string) error {
	d, err := s.load(ctx, id, sub)
	if err != nil {
		return err
	}
	if d.Owner != "" && d.Owner != sub {
		return ErrForbidden
	}
	return mapErr(s.repo.Delete(ctx, id))
}

func (s *service) AddCollaborator(ctx context.Context, id, sub, collaborator string) (*document.Document, error) {
	d, err := s.load(ctx, id, sub)
	if err != nil {
		return nil, err
	}
	if d.Owner != sub {
		return nil, ErrForbidden
	}
	if collaborator == d.Owner {
		return nil, ErrAlreadyCollaborator
	}
	if err := s.repo.AddCollaborator(ctx, id, collaborator); err != nil {
		return nil, mapErr(err)
	}
	d, err = s.repo.Get(ctx, id)
	return d, mapErr(err)
}

func (s *service) RemoveCollaborator(ctx context.Context, id, sub, collaborator string) (*document.Document, error) {
	d, err := s.load(ctx, id, sub)
	if err != nil {
		return nil, err
	}
	if d.Owner != sub {
		return nil, ErrForbidden
	}
	if err := s.repo.RemoveCollaborator(ctx, id, collaborator); err != nil {
		return nil, mapErr(err)
	}
	d, err = s.repo.Get(ctx, id)
	return d, mapErr(err)
}

func (s *service) Load(ctx context.Context, id string) (string, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", mapErr(err)
	}
	return d.Content, nil
}

func (s *service) Save(ctx context.Context, id, content, owner string) error {
	if _, err := s.repo.SaveContent(ctx, id, content, owner); err != nil {
		return fmt.Errorf("save document %s: %w", id, err)
	}
	return nil
}
