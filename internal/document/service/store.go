package service

import (
	"context"
	"errors"

	"github.com/gogotex/gogotex/backend/go-collab/internal/collab"
)

// Store adapts a Service to the collab engine's document store.
type Store struct {
	svc Service
}

func NewStore(svc Service) *Store { return &Store{svc: svc} }

func (s *Store) Load(ctx context.Context, documentID string) (string, error) {
	content, err := s.svc.Load(ctx, documentID)
	if errors.Is(err, ErrNotFound) {
		return "", collab.ErrNotFound
	}
	return content, err
}

func (s *Store) Save(ctx context.Context, documentID, content string) error {
	return s.svc.Save(ctx, documentID, content, "")
}

// SaveOwned is Save for a room whose joiners were identified; a document
// created by this write is owned by owner.
func (s *Store) SaveOwned(ctx context.Context, documentID, content, owner string) error {
	return s.svc.Save(ctx, documentID, content, owner)
}

var _ collab.OwnedStore = (*Store)(nil)
