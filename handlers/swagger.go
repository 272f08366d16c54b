package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the collaboration service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>gogotex-collab - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI description of the document API and the real-time endpoint.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "gogotex-collab", "version": "v0.2.0" },
  "paths": {
    "/api/documents": {
      "get": { "summary": "List documents owned by or shared with the caller", "responses": { "200": { "description": "document summaries" } } },
      "post": { "summary": "Create a document", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"content":{"type":"string"}}}}}}, "responses": { "201": { "description": "created" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Update title or content", "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Delete a document (owner only)", "responses": { "204": { "description": "deleted" }, "403": { "description": "forbidden" } } }
    },
    "/api/documents/{id}/collaborators": {
      "post": { "summary": "Share with a user by sub or email", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"sub":{"type":"string"},"email":{"type":"string"}}}}}}, "responses": { "200": { "description": "updated" }, "409": { "description": "already a collaborator" } } }
    },
    "/api/documents/{id}/collaborators/{sub}": {
      "delete": { "summary": "Unshare and revoke join tickets", "responses": { "200": { "description": "updated" } } }
    },
    "/api/documents/{id}/ticket": {
      "post": { "summary": "Issue a short-lived join ticket", "responses": { "200": { "description": "ticket" }, "401": { "description": "authentication required" } } }
    },
    "/api/documents/{id}/presence": {
      "get": { "summary": "List live sessions", "responses": { "200": { "description": "sessions" } } }
    },
    "/api/documents/{id}/snapshots": {
      "get": { "summary": "List archived snapshots", "responses": { "200": { "description": "snapshot keys" } } }
    },
    "/ws": {
      "get": { "summary": "Real-time channel (join-document, send-changes, save-document)", "responses": { "101": { "description": "switching protocols" } } }
    },
    "/api/v1/me": {
      "get": { "summary": "Get user info", "responses": { "200": { "description": "user or claims" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
