package config

import (
	"errors"
	"fmt"
	"time"

	commoncfg "github.com/burnspe2144/env-reporting-backend/common/config"

	"github.com/joeshaw/envdecode"
)

// DefaultJWTSecret is only meant for local development.
const DefaultJWTSecret = "envdata-dev-secret"

// Config envdata（HTTP API）配置，全部来自环境变量
type Config struct {
	HTTP struct {
		Addr            string        `env:"HTTP_ADDR,default=:5000"`
		BodyLimit       int64         `env:"HTTP_BODY_LIMIT,default=10485760"` // GeoJSON payloads can be large
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
		CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	}

	// 数据库不可用时回退到内存实现
	DBEnabled      bool `env:"DB_ENABLED,default=true"`
	MigrateOnStart bool `env:"MIGRATE_ON_START,default=false"`
	Database       commoncfg.DatabaseConfig

	Auth struct {
		JWTSecret     string        `env:"JWT_SECRET,default=envdata-dev-secret"`
		TokenTTL      time.Duration `env:"JWT_TTL,default=1h"`
		SeedAdmin     bool          `env:"SEED_ADMIN,default=true"` // memory mode only
		AdminUsername string        `env:"ADMIN_USERNAME,default=admin"`
		AdminPassword string        `env:"ADMIN_PASSWORD,default=admin"`
	}

	Redis struct {
		Enabled      bool   `env:"REDIS_ENABLED,default=false"`
		Stream       string `env:"REDIS_EVENTS_STREAM,default=user-layers:events"`
		StreamMaxLen int64  `env:"REDIS_EVENTS_MAXLEN,default=10000"`
		Conn         commoncfg.RedisConfig
	}

	MQTT struct {
		Enabled     bool   `env:"MQTT_ENABLED,default=false"`
		TopicPrefix string `env:"MQTT_TOPIC_PREFIX,default=envdata/user-layers"`
		Conn        commoncfg.MQTTConfig
	}

	RateLimit struct {
		RPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
		Burst int     `env:"RATE_LIMIT_BURST,default=40"`
	}

	Log struct {
		Level  string `env:"LOG_LEVEL,default=info"`
		Format string `env:"LOG_FORMAT,default=json"`
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive")
	}
	if cfg.RateLimit.RPS < 0 || cfg.RateLimit.Burst < 0 {
		return nil, fmt.Errorf("rate limit settings must not be negative")
	}
	return cfg, nil
}
