package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/internal/config"
	"github.com/gogotex/gogotex/backend/go-collab/internal/document"
	"github.com/gogotex/gogotex/backend/go-collab/internal/document/service"
	"github.com/gogotex/gogotex/backend/go-collab/internal/sessions"
	"github.com/gogotex/gogotex/backend/go-collab/internal/tokens"
	"github.com/gogotex/gogotex/backend/go-collab/internal/users"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
)

// SubjectResolver maps a collaborator reference (subject or email) to a subject.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, ref string) (string, error)
}

// PresenceLister lists the live sessions of a document.
type PresenceLister interface {
	List(ctx context.Context, documentID string) ([]sessions.Entry, error)
}

// Revoker invalidates the join tickets of a subject on a document.
type Revoker interface {
	Revoke(ctx context.Context, documentID, sub string) error
}

// SnapshotLister lists archived snapshots of a document.
type SnapshotLister interface {
	Snapshots(ctx context.Context, documentID string) ([]string, error)
}

// Deps are the optional collaborators of the document routes. Nil fields
// disable the feature that needs them.
type Deps struct {
	Config    *config.Config
	Users     SubjectResolver
	Presence  PresenceLister
	Revoker   Revoker
	Snapshots SnapshotLister
}

// subject returns the caller's OIDC subject as set by the auth middleware.
// Without auth the caller is anonymous.
func subject(c *gin.Context) string {
	v, ok := c.Get("claims")
	if !ok {
		return ""
	}
	claims, _ := v.(map[string]interface{})
	sub, _ := claims["sub"].(string)
	return sub
}

func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrAlreadyCollaborator):
		c.JSON(http.StatusConflict, gin.H{"error": "already a collaborator"})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Owner        string    `json:"owner,omitempty"`
	Version      int64     `json:"version"`
	LastModified time.Time `json:"lastModified"`
}

// RegisterDocumentRoutes mounts the document API on r.
func RegisterDocumentRoutes(r gin.IRoutes, svc service.Service, deps Deps) {
	r.GET("/api/documents", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), subject(c))
		if err != nil {
			writeErr(c, err)
			return
		}
		out := make([]summary, 0, len(list))
		for _, d := range list {
			out = append(out, summary{ID: d.ID, Title: d.Title, Owner: d.Owner, Version: d.Version, LastModified: d.LastModified})
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/api/documents", func(c *gin.Context) {
		var req struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d := &document.Document{Title: req.Title, Content: req.Content, Owner: subject(c)}
		if _, err := svc.Create(c.Request.Context(), d); err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	})

	r.GET("/api/documents/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("id"), subject(c))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.PATCH("/api/documents/:id", func(c *gin.Context) {
		var req struct {
			Title   *string `json:"title,omitempty"`
			Content *string `json:"content,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, err := svc.Update(c.Request.Context(), c.Param("id"), subject(c), document.Patch{Title: req.Title, Content: req.Content})
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.DELETE("/api/documents/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id"), subject(c)); err != nil {
			writeErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/api/documents/:id/collaborators", func(c *gin.Context) {
		var req struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		collaborator := req.Sub
		if req.Email != "" {
			if deps.Users == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "lookup by email is not available"})
				return
			}
			sub, err := deps.Users.ResolveSubject(c.Request.Context(), req.Email)
			if err != nil {
				writeErr(c, err)
				return
			}
			collaborator = sub
		}
		if collaborator == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sub or email required"})
			return
		}
		d, err := svc.AddCollaborator(c.Request.Context(), c.Param("id"), subject(c), collaborator)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.DELETE("/api/documents/:id/collaborators/:sub", func(c *gin.Context) {
		id, collaborator := c.Param("id"), c.Param("sub")
		d, err := svc.RemoveCollaborator(c.Request.Context(), id, subject(c), collaborator)
		if err != nil {
			writeErr(c, err)
			return
		}
		if deps.Revoker != nil {
			if err := deps.Revoker.Revoke(c.Request.Context(), id, collaborator); err != nil {
				logger.Warnf("revoke tickets of %s on %s: %v", collaborator, id, err)
			}
		}
		c.JSON(http.StatusOK, d)
	})

	r.POST("/api/documents/:id/ticket", func(c *gin.Context) {
		id, sub := c.Param("id"), subject(c)
		if _, err := svc.Get(c.Request.Context(), id, sub); err != nil {
			writeErr(c, err)
			return
		}
		if sub == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if deps.Config == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "join tickets are not available"})
			return
		}
		ticket, exp, err := tokens.IssueJoinTicket(deps.Config, sub, id)
		if errors.Is(err, tokens.ErrNoSecret) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "join tickets are not available"})
			return
		}
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documentId": id, "ticket": ticket, "expiresAt": exp.UTC()})
	})

	r.GET("/api/documents/:id/presence", func(c *gin.Context) {
		id := c.Param("id")
		if _, err := svc.Get(c.Request.Context(), id, subject(c)); err != nil {
			writeErr(c, err)
			return
		}
		entries := []sessions.Entry{}
		if deps.Presence != nil {
			list, err := deps.Presence.List(c.Request.Context(), id)
			if err != nil {
				writeErr(c, err)
				return
			}
			entries = list
		}
		c.JSON(http.StatusOK, gin.H{"documentId": id, "sessions": entries})
	})

	r.GET("/api/documents/:id/snapshots", func(c *gin.Context) {
		id := c.Param("id")
		if _, err := svc.Get(c.Request.Context(), id, subject(c)); err != nil {
			writeErr(c, err)
			return
		}
		if deps.Snapshots == nil {
			c.JSON(http.StatusOK, gin.H{"documentId": id, "snapshots": []string{}})
			return
		}
		keys, err := deps.Snapshots.Snapshots(c.Request.Context(), id)
		if err != nil {
			writeErr(c, err)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"documentId": id, "snapshots": keys})
	})
}
