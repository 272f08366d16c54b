package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/internal/users"
	"github.com/stretchr/testify/require"
)

func TestMe_UpsertsUserFromClaims(t *testing.T) {
	repo := users.NewMemoryUserRepository()
	g := gin.New()
	g.Use(func(c *gin.Context) {
		c.Set("claims", map[string]interface{}{"sub": "alice", "email": "Alice@Example.com", "preferred_username": "alice"})
	})
	RegisterMe(g, users.NewService(repo))

	w := get(g, "/api/v1/me")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		User users.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "alice", body.User.Sub)
	require.Equal(t, "alice", body.User.Name)

	u, err := repo.GetBySub(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
}

func TestMe_WithoutClaims(t *testing.T) {
	g := gin.New()
	RegisterMe(g, nil)
	require.Equal(t, http.StatusUnauthorized, get(g, "/api/v1/me").Code)
}

func TestMe_WithoutUserStoreEchoesClaims(t *testing.T) {
	g := gin.New()
	g.Use(func(c *gin.Context) { c.Set("claims", map[string]interface{}{"sub": "bob"}) })
	RegisterMe(g, nil)
	w := get(g, "/api/v1/me")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"sub":"bob"`)
}
