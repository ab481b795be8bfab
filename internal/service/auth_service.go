package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"
	"github.com/burnspe2144/env-reporting-backend/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost matches the cost used when the stored passwords were first hashed.
const BcryptCost = 10

// TokenIssuer signs tokens for authenticated users.
type TokenIssuer interface {
	Issue(id domain.Identity) (string, error)
	TTL() time.Duration
}

// AuthService 登录服务
type AuthService struct {
	users  repository.UsersRepository
	issuer TokenIssuer
	logger *zap.Logger
}

// NewAuthService 创建登录服务
func NewAuthService(users repository.UsersRepository, issuer TokenIssuer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, issuer: issuer, logger: logger}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string
	Password string
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // 秒
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// Login checks the password against the stored bcrypt hash and issues a token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrMissingCreds
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("Login failed: user not found", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.logger.Info("Login failed: password mismatch", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}

	id := domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	token, err := s.issuer.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	s.logger.Info("Login succeeded", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return &LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.issuer.TTL() / time.Second),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
	}, nil
}

// HashPassword returns the bcrypt hash stored for a new or migrated account.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
