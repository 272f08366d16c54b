package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/go-collab/handlers"
	"github.com/gogotex/gogotex/backend/go-collab/internal/collab"
	"github.com/gogotex/gogotex/backend/go-collab/internal/config"
	"github.com/gogotex/gogotex/backend/go-collab/internal/database"
	"github.com/gogotex/gogotex/backend/go-collab/internal/document/handler"
	"github.com/gogotex/gogotex/backend/go-collab/internal/document/service"
	"github.com/gogotex/gogotex/backend/go-collab/internal/oidc"
	"github.com/gogotex/gogotex/backend/go-collab/internal/sessions"
	"github.com/gogotex/gogotex/backend/go-collab/internal/storage"
	"github.com/gogotex/gogotex/backend/go-collab/internal/tokens"
	"github.com/gogotex/gogotex/backend/go-collab/internal/users"
	"github.com/gogotex/gogotex/backend/go-collab/internal/ws"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/metrics"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors)

	checks := map[string]handlers.Check{}

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s:%s not reachable yet: %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		defer rdb.Close()
	}

	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("%v; falling back to in-memory stores", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			db = client.Database(cfg.MongoDB.Database)
			checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		}
	}

	// documents
	var docs service.Service
	if db != nil {
		docs = service.NewMongoService(db.Collection("documents"))
	} else {
		docs = service.NewMemoryService()
	}

	// users
	var userRepo users.UserRepository = users.NewMemoryUserRepository()
	if db != nil {
		repo := users.NewMongoUserRepository(db.Collection("users"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("users indexes: %v", err)
		}
		userRepo = repo
	}
	userSvc := users.NewService(userRepo)

	// presence: Redis first, then Mongo, then memory
	var presenceRepo sessions.Repository
	switch {
	case rdb != nil:
		presenceRepo = sessions.NewRedisRepository(rdb, "")
	case db != nil:
		repo := sessions.NewMongoRepository(db.Collection("presence"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("presence indexes: %v", err)
		}
		presenceRepo = repo
	default:
		presenceRepo = sessions.NewMemoryRepository()
	}
	presence := sessions.NewService(presenceRepo, cfg.Realtime.PresenceTTL)
	revocations := sessions.NewRevocations(rdb, cfg.JWT.TicketTTL)

	var archive *storage.SnapshotArchive
	if mcfg := storage.LoadMinIOConfig(); mcfg.Enabled() {
		objects, err := storage.NewMinIOStorage(ctx, mcfg)
		if err != nil {
			logger.Warnf("snapshot archive disabled: %v", err)
		} else {
			archive = storage.NewSnapshotArchive(objects)
			logger.Infof("archiving closed rooms to bucket %s", mcfg.Bucket)
		}
	}

	opts := collab.Options{
		FlushInterval: cfg.Realtime.FlushInterval,
		SendBuffer:    cfg.Realtime.SendBuffer,
		MessageRate:   cfg.Realtime.MessageRate,
		MessageBurst:  cfg.Realtime.MessageBurst,
		RequireTicket: cfg.Realtime.RequireTicket,
		Presence:      presence,
	}
	if cfg.JWT.Secret != "" {
		opts.Tickets = tokens.NewVerifier(cfg.JWT.Secret, revocations)
	}
	if archive != nil {
		opts.Archiver = archive
	}
	hub := collab.NewHub(service.NewStore(docs), opts)

	verifier := newVerifier(ctx, cfg)

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	handlers.RegisterHealth(r, startTime, checks)
	handlers.RegisterSwagger(r)
	r.GET("/ws", ws.NewHandler(hub, cfg.Realtime).Serve)

	deps := handler.Deps{Config: cfg, Users: userSvc, Presence: presence, Revoker: revocations}
	if archive != nil {
		deps.Snapshots = archive
	}
	if verifier != nil {
		api := r.Group("/", middleware.AuthMiddleware(verifier))
		handlers.RegisterMe(api, userSvc)
		handler.RegisterDocumentRoutes(api, docs, deps)
	} else {
		logger.Warn("OIDC not configured: document API runs without authentication")
		handler.RegisterDocumentRoutes(r, docs, deps)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// websocket writes set their own deadlines
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("collaboration service listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	// hijacked websocket connections are not tracked by srv; the hub closes them
	// and flushes every open room
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("hub shutdown: %v", err)
	}
}

// cors sets permissive headers for dev/test and answers preflight requests.
func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
	c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Retry-After")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Next()
}

// newVerifier builds the Keycloak verifier, or the unsigned-token verifier
// when ALLOW_INSECURE_TOKEN=true. It returns nil when neither is configured.
func newVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Keycloak.URL != "" {
		issuer := strings.TrimRight(cfg.Keycloak.URL, "/")
		if cfg.Keycloak.Realm != "" {
			issuer += "/realms/" + cfg.Keycloak.Realm
		}
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err == nil {
			return ver
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		return oidc.NewInsecureVerifier()
	}
	return nil
}
