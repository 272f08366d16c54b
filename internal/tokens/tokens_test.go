package tokens

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogotex/gogotex/backend/go-collab/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testConfig(secret string, ttl time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	cfg.JWT.TicketTTL = ttl
	return cfg
}

func TestIssueJoinTicket_ValidAndClaims(t *testing.T) {
	cfg := testConfig("test-secret-32-bytes-should-be-long-enough", 2*time.Minute)
	tok, exp, err := IssueJoinTicket(cfg, "user-123", "doc-1")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(2*time.Minute), exp, 2*time.Second)

	claims, err := ParseJoinTicket([]byte(cfg.JWT.Secret), tok)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, "doc-1", claims.Document)
	require.NotEmpty(t, claims.ID)

	sub, err := NewVerifier(cfg.JWT.Secret, nil).VerifyJoin(context.Background(), tok, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "user-123", sub)
}

func TestIssueJoinTicket_NoSecret(t *testing.T) {
	_, _, err := IssueJoinTicket(testConfig("", time.Minute), "u", "d")
	require.ErrorIs(t, err, ErrNoSecret)

	_, err = NewVerifier("", nil).VerifyJoin(context.Background(), "x.y.z", "d")
	require.Error(t, err)
}

func TestVerifyJoin_WrongDocument(t *testing.T) {
	cfg := testConfig("secret-for-doc-mismatch-xxxxxxxxxx", time.Minute)
	tok, _, err := IssueJoinTicket(cfg, "u1", "doc-1")
	require.NoError(t, err)

	_, err = NewVerifier(cfg.JWT.Secret, nil).VerifyJoin(context.Background(), tok, "doc-2")
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestVerifyJoin_Expired(t *testing.T) {
	cfg := testConfig("expiry-secret-32-bytes-longgggggg", -time.Minute)
	tok, _, err := IssueJoinTicket(cfg, "u2", "doc-1")
	require.NoError(t, err)

	_, err = NewVerifier(cfg.JWT.Secret, nil).VerifyJoin(context.Background(), tok, "doc-1")
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestVerifyJoin_WrongSecretFails(t *testing.T) {
	cfg := testConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx", time.Minute)
	tok, _, err := IssueJoinTicket(cfg, "u3", "doc-1")
	require.NoError(t, err)

	_, err = NewVerifier("different-secret-xxxxxxxxxxxxxxxx", nil).VerifyJoin(context.Background(), tok, "doc-1")
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestParseJoinTicket_Malformed(t *testing.T) {
	_, err := ParseJoinTicket([]byte("x"), "not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidTicket)
}

// Rejected when alg=none (unsigned token)
func TestParseJoinTicket_AlgNoneRejected(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	tok := enc([]byte(`{"alg":"none","typ":"JWT"}`)) + "." +
		enc([]byte(`{"sub":"u-none","doc":"doc-1","exp":9999999999}`)) + "."
	_, err := ParseJoinTicket([]byte("x"), tok)
	require.ErrorIs(t, err, ErrInvalidTicket)
}

// Tampering with payload must fail signature verification
func TestParseJoinTicket_TamperedPayload(t *testing.T) {
	cfg := testConfig("tamper-test-secret-32-bytes-xxxxxxx", 5*time.Minute)
	tok, _, err := IssueJoinTicket(cfg, "user-t", "doc-1")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))

	_, err = ParseJoinTicket([]byte(cfg.JWT.Secret), strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestParseJoinTicket_MissingDocumentClaim(t *testing.T) {
	secret := []byte("missing-doc-secret-xxxxxxxxxxxxxx")
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	tok, err := jt.SignedString(secret)
	require.NoError(t, err)

	_, err = ParseJoinTicket(secret, tok)
	require.ErrorIs(t, err, ErrInvalidTicket)
}

type fakeRevocations struct {
	at  time.Time
	ok  bool
	err error
}

func (f fakeRevocations) RevokedAt(context.Context, string, string) (time.Time, bool, error) {
	return f.at, f.ok, f.err
}

func TestVerifyJoin_Revocation(t *testing.T) {
	cfg := testConfig("revocation-secret-32-bytes-xxxxxxx", time.Minute)
	tok, _, err := IssueJoinTicket(cfg, "bob", "doc-1")
	require.NoError(t, err)
	ctx := context.Background()

	// revoked after the ticket was issued
	v := NewVerifier(cfg.JWT.Secret, fakeRevocations{at: time.Now().Add(time.Second), ok: true})
	_, err = v.VerifyJoin(ctx, tok, "doc-1")
	require.ErrorIs(t, err, ErrInvalidTicket)

	// tickets issued after the revocation are fine
	v = NewVerifier(cfg.JWT.Secret, fakeRevocations{at: time.Now().Add(-time.Hour), ok: true})
	sub, err := v.VerifyJoin(ctx, tok, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "bob", sub)

	// a failing revocation store rejects the join
	v = NewVerifier(cfg.JWT.Secret, fakeRevocations{err: errors.New("redis down")})
	_, err = v.VerifyJoin(ctx, tok, "doc-1")
	require.Error(t, err)
}
