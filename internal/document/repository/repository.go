package repository

import (
	"context"
	"errors"

	"github.com/gogotex/gogotex/backend/go-collab/internal/document"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")
)

// Repository is the persistence contract shared by the memory and Mongo
// implementations.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) (string, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	// List returns documents owned by or shared with sub; an empty sub lists everything.
	List(ctx context.Context, sub string) ([]*document.Document, error)
	Update(ctx context.Context, id string, p document.Patch) (*document.Document, error)
	Delete(ctx context.Context, id string) error
	// SaveContent replaces the content, bumps the version and creates the
	// document, owned by owner, when it does not exist yet. It returns the
	// new version.
	SaveContent(ctx context.Context, id, content, owner string) (int64, error)
	AddCollaborator(ctx context.Context, id, sub string) error
	RemoveCollaborator(ctx context.Context, id, sub string) error
}
