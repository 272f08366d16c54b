package oidc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gogotex/gogotex/backend/go-collab/pkg/middleware"
)

var errTokenFormat = errors.New("invalid token format")

// insecureToken is a minimal token that exposes claims parsed from a JWT payload.
type insecureToken struct {
	payload []byte
}

func (t *insecureToken) Claims(v interface{}) error {
	return json.Unmarshal(t.payload, v)
}

// InsecureVerifier decodes tokens WITHOUT checking their signature. It still
// rejects expired tokens. Only enabled by ALLOW_INSECURE_TOKEN for local runs.
type InsecureVerifier struct {
	now func() time.Time
}

func NewInsecureVerifier() *InsecureVerifier { return &InsecureVerifier{now: time.Now} }

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errTokenFormat
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, err
	}
	var std struct {
		Exp *float64 `json:"exp"`
	}
	if err := json.Unmarshal(data, &std); err != nil {
		return nil, err
	}
	if std.Exp != nil && v.now().After(time.Unix(int64(*std.Exp), 0)) {
		return nil, errors.New("token is expired")
	}
	return &insecureToken{payload: data}, nil
}
