package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"
	"github.com/burnspe2144/env-reporting-backend/internal/identity"
	"github.com/burnspe2144/env-reporting-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func setupAuthService(t *testing.T) (*AuthService, *repository.MemoryUsersRepo, *identity.JWTProvider) {
	t.Helper()
	users := repository.NewMemoryUsersRepo()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	_, err = users.CreateUser(context.Background(), &domain.User{ID: "u-1", Username: "alice", Password: hash, Role: "admin"})
	require.NoError(t, err)

	jwtProvider := identity.NewJWTProvider("test-secret", time.Hour)
	return NewAuthService(users, jwtProvider, zap.NewNop()), users, jwtProvider
}

func TestLogin_Success(t *testing.T) {
	svc, _, jwtProvider := setupAuthService(t)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.UserID)
	assert.Equal(t, "admin", resp.Role)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	id, err := jwtProvider.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, "alice", id.Username)
}

func TestLogin_Failures(t *testing.T) {
	svc, _, _ := setupAuthService(t)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "alice"})
	assert.ErrorIs(t, err, ErrMissingCreds)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "nobody", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

type failingUsers struct{ repository.UsersRepository }

func (failingUsers) GetUserByUsername(context.Context, string) (*domain.User, error) {
	return nil, errors.New("connection refused")
}

func TestLogin_DependencyFailure(t *testing.T) {
	svc := NewAuthService(failingUsers{}, identity.NewJWTProvider("s", time.Hour), nil)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordMigrator(t *testing.T) {
	users := repository.NewMemoryUsersRepo()
	ctx := context.Background()
	_, err := users.CreateUser(ctx, &domain.User{Username: "plain", Password: "hunter2"})
	require.NoError(t, err)
	hashed, err := HashPassword("already")
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, &domain.User{Username: "hashed", Password: hashed})
	require.NoError(t, err)

	m := NewPasswordMigrator(users, zap.NewNop())
	res, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Hashed)
	assert.Equal(t, 1, res.Skipped)

	plain, _ := users.GetUserByUsername(ctx, "plain")
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(plain.Password), []byte("hunter2")))
	cost, err := bcrypt.Cost([]byte(plain.Password))
	require.NoError(t, err)
	assert.Equal(t, BcryptCost, cost)

	again, _ := users.GetUserByUsername(ctx, "hashed")
	assert.Equal(t, hashed, again.Password)

	// a second run changes nothing
	res, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Hashed)
	assert.Equal(t, 2, res.Skipped)
}
