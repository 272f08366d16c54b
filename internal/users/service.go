package users

import (
	"context"
	"errors"
	"strings"
)

// ErrUserNotFound is returned when a collaborator reference matches no user.
var ErrUserNotFound = errors.New("user not found")

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}
	if sub == "" {
		return nil, nil
	}
	u := &User{
		Sub:   sub,
		Email: email,
		Name:  name,
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// ResolveSubject maps a collaborator reference to a subject. References
// containing "@" are looked up by email; anything else is taken as a subject.
func (s *Service) ResolveSubject(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrUserNotFound
	}
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	u, err := s.repo.GetByEmail(ctx, ref)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	return u.Sub, nil
}
