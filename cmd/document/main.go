// Command document serves the document REST API without the real-time
// endpoint. It shares the MongoDB collection with the collaboration service.
package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/internal/config"
	"github.com/gogotex/gogotex/backend/go-collab/internal/database"
	"github.com/gogotex/gogotex/backend/go-collab/internal/document/handler"
	"github.com/gogotex/gogotex/backend/go-collab/internal/document/service"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	port := os.Getenv("DOC_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	svc := service.NewMemoryService()
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.Timeout, 3)
		if err != nil {
			logger.Warnf("%v; using memory-backed repo", err)
		} else {
			svc = service.NewMongoService(client.Database(cfg.MongoDB.Database).Collection("documents"))
		}
	}

	handler.RegisterDocumentRoutes(r, svc, handler.Deps{Config: cfg})

	logger.Infof("go-document service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		logger.Fatalf("%v", err)
	}
}
