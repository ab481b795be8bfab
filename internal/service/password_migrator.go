package service

import (
	"context"
	"fmt"

	"github.com/burnspe2144/env-reporting-backend/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// PasswordMigrator 将明文密码批量转换为 bcrypt 哈希
type PasswordMigrator struct {
	users  repository.UsersRepository
	logger *zap.Logger
}

func NewPasswordMigrator(users repository.UsersRepository, logger *zap.Logger) *PasswordMigrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordMigrator{users: users, logger: logger}
}

// MigrationResult 迁移统计
type MigrationResult struct {
	Hashed  int
	Skipped int
}

// Run hashes every stored password that is not already a bcrypt hash. It is
// safe to run repeatedly.
func (m *PasswordMigrator) Run(ctx context.Context) (*MigrationResult, error) {
	users, err := m.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	res := &MigrationResult{}
	for _, u := range users {
		if isBcryptHash(u.Password) {
			m.logger.Info("Password already hashed, skipping", zap.String("username", u.Username))
			res.Skipped++
			continue
		}
		hash, err := HashPassword(u.Password)
		if err != nil {
			return res, err
		}
		if err := m.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			return res, fmt.Errorf("failed to update password for %s: %w", u.Username, err)
		}
		m.logger.Info("Hashed password", zap.String("username", u.Username))
		res.Hashed++
	}
	return res, nil
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
