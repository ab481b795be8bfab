package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/burnspe2144/env-reporting-backend/common/database"
	"github.com/burnspe2144/env-reporting-backend/internal/config"
	"github.com/burnspe2144/env-reporting-backend/migrations"
)

// 用法：
//   apply-migration                 应用内置的所有未执行迁移
//   apply-migration -dry-run        只列出内置迁移
//   apply-migration extra.sql ...   额外执行指定 SQL 文件（单事务/文件）
func main() {
	dryRun := flag.Bool("dry-run", false, "list embedded migrations without applying them")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	if *dryRun {
		names, err := migrations.Names()
		if err != nil {
			log.Fatalf("Failed to list migrations: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()
	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if flag.NArg() == 0 {
		applied, err := database.ApplyMigrations(ctx, db, migrations.FS)
		for _, name := range applied {
			fmt.Printf("✅ %s applied\n", name)
		}
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		if len(applied) == 0 {
			fmt.Println("Schema is up to date")
			return
		}
		fmt.Println("✅ Migration completed successfully!")
		return
	}

	for _, file := range flag.Args() {
		if err := applyFile(ctx, db, file); err != nil {
			log.Fatalf("%v", err)
		}
	}
	fmt.Println("✅ Migration completed successfully!")
}

func applyFile(ctx context.Context, db *sql.DB, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}
	statements := database.SplitStatements(string(content))
	return database.WithTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range statements {
			fmt.Printf("Executing %s statement %d/%d...\n", file, i+1, len(statements))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute statement %d of %s: %w\nStatement: %s", i+1, file, err, stmt[:min(100, len(stmt))])
			}
		}
		return nil
	})
}
