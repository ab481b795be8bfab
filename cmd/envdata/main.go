package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/burnspe2144/env-reporting-backend/common/database"
	"github.com/burnspe2144/env-reporting-backend/common/logger"
	commonmqtt "github.com/burnspe2144/env-reporting-backend/common/mqtt"
	commonredis "github.com/burnspe2144/env-reporting-backend/common/redis"
	"github.com/burnspe2144/env-reporting-backend/internal/broadcast"
	"github.com/burnspe2144/env-reporting-backend/internal/config"
	"github.com/burnspe2144/env-reporting-backend/internal/domain"
	httpapi "github.com/burnspe2144/env-reporting-backend/internal/http"
	"github.com/burnspe2144/env-reporting-backend/internal/identity"
	"github.com/burnspe2144/env-reporting-backend/internal/metrics"
	"github.com/burnspe2144/env-reporting-backend/internal/repository"
	"github.com/burnspe2144/env-reporting-backend/internal/service"
	"github.com/burnspe2144/env-reporting-backend/migrations"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "envdata")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn("JWT_SECRET not set, using the development secret")
	}

	// 数据库：失败时回退到内存 repo（开发联调用）
	var (
		db         *sql.DB
		layersRepo repository.LayersRepository
		usersRepo  repository.UsersRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for envdata")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory", zap.Error(err))
		}
	}
	if db != nil {
		if cfg.MigrateOnStart {
			applied, err := database.ApplyMigrations(context.Background(), db, migrations.FS)
			if err != nil {
				log.Fatal("Failed to apply migrations", zap.Error(err))
			}
			log.Info("Migrations applied", zap.Strings("files", applied))
		}
		layersRepo = repository.NewPostgresLayersRepository(db)
		usersRepo = repository.NewPostgresUsersRepository(db)
	} else {
		layersRepo = repository.NewMemoryLayersRepository()
		mem := repository.NewMemoryUsersRepo()
		if cfg.Auth.SeedAdmin {
			seedAdmin(mem, cfg, log)
		}
		usersRepo = mem
	}

	// 广播：websocket 总是开启，Redis / MQTT 可选
	hub := broadcast.NewHub(log)
	broadcasters := broadcast.Multi{hub}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = commonredis.NewRedisClient(&cfg.Redis.Conn)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := commonredis.Ping(pingCtx, redisClient); err != nil {
			log.Warn("Redis ping failed, events will not be streamed", zap.Error(err))
			_ = commonredis.Close(redisClient)
			redisClient = nil
		} else {
			broadcasters = append(broadcasters, broadcast.NewRedisStreamBroadcaster(redisClient, cfg.Redis.Stream, cfg.Redis.StreamMaxLen))
		}
		cancel()
	}

	var mqttClient *commonmqtt.Client
	if cfg.MQTT.Enabled {
		if c, err := commonmqtt.NewClient(&cfg.MQTT.Conn); err == nil {
			mqttClient = c
			broadcasters = append(broadcasters, broadcast.NewMQTTBroadcaster(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.Conn.QoS))
		} else {
			log.Warn("MQTT connect failed, events will not be published to the broker", zap.Error(err))
		}
	}

	m := metrics.New()
	provider := identity.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	layers := service.NewLayerService(layersRepo, broadcasters, m, log)
	auth := service.NewAuthService(usersRepo, provider, log)

	router := httpapi.NewRouter(log)
	router.Use(m.Middleware)
	router.RegisterRootRoutes()
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(auth, provider, log))
	var limit func(next http.Handler) http.Handler
	if cfg.RateLimit.RPS > 0 {
		limit = httpapi.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware
	}
	router.RegisterLayerRoutes(
		httpapi.NewLayerHandler(layers, hub, cfg.HTTP.BodyLimit, log),
		httpapi.Authenticate(provider),
		httpapi.AuthenticateStream(provider),
		limit,
	)
	router.HandleHandler("/metrics", m.Handler())

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.HTTP.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)

	srv := service.NewServer(cfg.HTTP.Addr, cors(router), log)
	srv.OnShutdown(hub.Close)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", zap.Error(err))
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = commonredis.Close(redisClient)
	}
	if db != nil {
		_ = database.Close(db)
	}
}

// seedAdmin 内存模式下创建一个可登录的管理员账号
func seedAdmin(users *repository.MemoryUsersRepo, cfg *config.Config, log *zap.Logger) {
	hash, err := service.HashPassword(cfg.Auth.AdminPassword)
	if err != nil {
		log.Warn("Failed to hash seed admin password", zap.Error(err))
		return
	}
	_, err = users.CreateUser(context.Background(), &domain.User{
		Username: cfg.Auth.AdminUsername,
		Password: hash,
		Role:     "admin",
	})
	if err != nil {
		log.Warn("Failed to seed admin user", zap.Error(err))
		return
	}
	log.Info("Seeded admin user for memory mode", zap.String("username", cfg.Auth.AdminUsername))
}
