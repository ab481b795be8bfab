package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/burnspe2144/env-reporting-backend/common/database"
	"github.com/burnspe2144/env-reporting-backend/common/logger"
	"github.com/burnspe2144/env-reporting-backend/internal/config"
	"github.com/burnspe2144/env-reporting-backend/internal/repository"
	"github.com/burnspe2144/env-reporting-backend/internal/service"

	"go.uber.org/zap"
)

// hash-passwords 把 users.password 中残留的明文密码改写为 bcrypt 哈希，可重复执行
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "hash-passwords")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Cannot connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, err := service.NewPasswordMigrator(repository.NewPostgresUsersRepository(db), log).Run(ctx)
	if err != nil {
		log.Fatal("Password migration failed", zap.Error(err))
	}
	log.Info("Password migration finished", zap.Int("hashed", res.Hashed), zap.Int("skipped", res.Skipped))
}
