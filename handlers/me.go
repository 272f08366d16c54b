package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/internal/users"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
)

// RegisterMe mounts GET /api/v1/me. It records the caller's profile from the
// verified claims so collaborators can later be added by email.
func RegisterMe(r gin.IRoutes, svc *users.Service) {
	r.GET("/api/v1/me", func(c *gin.Context) {
		v, _ := c.Get("claims")
		claims, ok := v.(map[string]interface{})
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if svc == nil {
			c.JSON(http.StatusOK, gin.H{"claims": claims})
			return
		}
		u, err := svc.UpsertFromClaims(c.Request.Context(), claims)
		if err != nil {
			logger.Warnf("upsert user from claims: %v", err)
			c.JSON(http.StatusOK, gin.H{"claims": claims})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u})
	})
}
