package httpapi

import (
	"errors"
	"net/http"

	"github.com/burnspe2144/env-reporting-backend/internal/identity"
	"github.com/burnspe2144/env-reporting-backend/internal/service"

	"go.uber.org/zap"
)

// AuthHandler 登录 / token 校验
type AuthHandler struct {
	auth     *service.AuthService
	provider identity.Provider
	logger   *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, provider identity.Provider, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, provider: provider, logger: logger}
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type validateResponse struct {
	Valid    bool   `json:"valid"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decodeBody(w, r, 64<<10, loginSchema, &body, h.logger) {
		return
	}
	resp, err := h.auth.Login(r.Context(), service.LoginRequest{Username: body.Username, Password: body.Password})
	if err != nil {
		var ve *service.ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, Fail(ve.Message))
		case errors.Is(err, service.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, Fail("Invalid username or password"))
		default:
			h.logger.Error("Login failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("Internal server error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Validate GET /api/auth/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token, ok := identity.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Fail("No token provided"))
		return
	}
	id, err := h.provider.Verify(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, Fail("Invalid or expired token"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(validateResponse{
		Valid:    true,
		UserID:   id.UserID,
		Username: id.Username,
		Role:     id.Role,
	}))
}
