package sessions

import (
	"context"
	"time"
)

const DefaultPresenceTTL = 12 * time.Hour

// Service tracks which sessions are joined to which document. It satisfies
// the collab engine's presence hook.
type Service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewService(r Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &Service{repo: r, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Joined(ctx context.Context, documentID, sessionID, subject string) error {
	now := s.now()
	return s.repo.Put(ctx, &Entry{
		SessionID:  sessionID,
		DocumentID: documentID,
		Subject:    subject,
		JoinedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
	})
}

func (s *Service) Left(ctx context.Context, documentID, sessionID string) error {
	return s.repo.Delete(ctx, documentID, sessionID)
}

// List returns the live sessions of a document, oldest first.
func (s *Service) List(ctx context.Context, documentID string) ([]Entry, error) {
	return s.repo.List(ctx, documentID)
}
