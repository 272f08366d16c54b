package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/gogotex/backend/go-collab/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidTicket = errors.New("invalid join ticket")
	ErrNoSecret      = errors.New("JWT secret not configured")
)

// JoinClaims are carried by a join ticket: the subject may join Document
// until the ticket expires.
type JoinClaims struct {
	Document string `json:"doc"`
	jwt.RegisteredClaims
}

// IssueJoinTicket creates a signed, short-lived join ticket for sub on documentID.
func IssueJoinTicket(cfg *config.Config, sub, documentID string) (string, time.Time, error) {
	if cfg.JWT.Secret == "" {
		return "", time.Time{}, ErrNoSecret
	}
	ttl := cfg.JWT.TicketTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims := JoinClaims{
		Document: documentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := jt.SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseJoinTicket verifies signature and expiry and returns the claims.
func ParseJoinTicket(secret []byte, ticket string) (*JoinClaims, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := &JoinClaims{}
	_, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if claims.ExpiresAt == nil || claims.Subject == "" || claims.Document == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidTicket)
	}
	return claims, nil
}

// RevocationChecker reports when a subject's tickets for a document were revoked.
type RevocationChecker interface {
	RevokedAt(ctx context.Context, documentID, sub string) (time.Time, bool, error)
}

// Verifier checks join tickets presented on the real-time channel.
type Verifier struct {
	secret  []byte
	revoked RevocationChecker
}

// NewVerifier creates a ticket verifier. revoked may be nil.
func NewVerifier(secret string, revoked RevocationChecker) *Verifier {
	return &Verifier{secret: []byte(secret), revoked: revoked}
}

// VerifyJoin returns the ticket subject if the ticket is valid for documentID.
func (v *Verifier) VerifyJoin(ctx context.Context, ticket, documentID string) (string, error) {
	claims, err := ParseJoinTicket(v.secret, ticket)
	if err != nil {
		return "", err
	}
	if claims.Document != documentID {
		return "", fmt.Errorf("%w: issued for another document", ErrInvalidTicket)
	}
	if v.revoked != nil {
		at, ok, err := v.revoked.RevokedAt(ctx, documentID, claims.Subject)
		if err != nil {
			return "", fmt.Errorf("check revocation: %w", err)
		}
		if ok && claims.IssuedAt != nil && !claims.IssuedAt.Time.After(at) {
			return "", fmt.Errorf("%w: revoked", ErrInvalidTicket)
		}
	}
	return claims.Subject, nil
}
