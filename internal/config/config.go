package config

import (
	"strings"
	"time"

	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Realtime  RealtimeConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type JWTConfig struct {
	Secret    string
	TicketTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// RealtimeConfig tunes the websocket collaboration endpoint.
type RealtimeConfig struct {
	FlushInterval   time.Duration
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	SendBuffer      int
	MessageRate     float64
	MessageBurst    int
	RequireTicket   bool
	AllowedOrigins  []string
	PresenceTTL     time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "collaborative-editor")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("JWT_TICKET_TTL", 5)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("REALTIME_FLUSH_INTERVAL_MS", 2000)
	viper.SetDefault("REALTIME_PONG_WAIT_SECONDS", 60)
	viper.SetDefault("REALTIME_WRITE_WAIT_SECONDS", 10)
	viper.SetDefault("REALTIME_MAX_MESSAGE_BYTES", 1<<20)
	viper.SetDefault("REALTIME_SEND_BUFFER", 256)
	viper.SetDefault("REALTIME_MESSAGE_RATE", 50)
	viper.SetDefault("REALTIME_MESSAGE_BURST", 100)
	viper.SetDefault("REALTIME_REQUIRE_TICKET", false)
	viper.SetDefault("REALTIME_ALLOWED_ORIGINS", "*")
	viper.SetDefault("REALTIME_PRESENCE_TTL_MINUTES", 720)

	pongWait := time.Duration(viper.GetInt("REALTIME_PONG_WAIT_SECONDS")) * time.Second

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:          viper.GetString("KEYCLOAK_URL"),
			Realm:        viper.GetString("KEYCLOAK_REALM"),
			ClientID:     viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: viper.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		JWT: JWTConfig{
			Secret:    viper.GetString("JWT_SECRET"),
			TicketTTL: time.Duration(viper.GetInt("JWT_TICKET_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Realtime: RealtimeConfig{
			FlushInterval:   time.Duration(viper.GetInt("REALTIME_FLUSH_INTERVAL_MS")) * time.Millisecond,
			PongWait:        pongWait,
			PingInterval:    (pongWait * 9) / 10,
			WriteWait:       time.Duration(viper.GetInt("REALTIME_WRITE_WAIT_SECONDS")) * time.Second,
			MaxMessageBytes: viper.GetInt64("REALTIME_MAX_MESSAGE_BYTES"),
			SendBuffer:      viper.GetInt("REALTIME_SEND_BUFFER"),
			MessageRate:     viper.GetFloat64("REALTIME_MESSAGE_RATE"),
			MessageBurst:    viper.GetInt("REALTIME_MESSAGE_BURST"),
			RequireTicket:   viper.GetBool("REALTIME_REQUIRE_TICKET"),
			AllowedOrigins:  splitList(viper.GetString("REALTIME_ALLOWED_ORIGINS")),
			PresenceTTL:     time.Duration(viper.GetInt("REALTIME_PRESENCE_TTL_MINUTES")) * time.Minute,
		},
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		logger.Warn("JWT_SECRET is not set; join tickets cannot be issued or verified")
		if cfg.Realtime.RequireTicket {
			logger.Warn("REALTIME_REQUIRE_TICKET=true without JWT_SECRET: every join will be rejected")
		}
	}
	if cfg.MongoDB.URI == "" {
		logger.Warn("MONGODB_URI is not set; documents are kept in memory only")
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
