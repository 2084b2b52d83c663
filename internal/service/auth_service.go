package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/procurement-service/internal/auth"
	"github.com/spec-kit/procurement-service/internal/config"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

// AuthService authenticates the operator of the HTTP API.
type AuthService struct {
	username     string
	passwordHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		username:     cfg.OperatorUsername,
		passwordHash: cfg.OperatorPasswordHash,
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// Login checks operator credentials and issues an access token.
func (s *AuthService) Login(_ context.Context, username, password string) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, errorutil.NewForbidden("operator login is disabled")
	}
	if strings.TrimSpace(username) != s.username {
		return "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(s.username, auth.RoleOperator)
	if err != nil {
		return "", time.Time{}, errorutil.NewInternalError(err)
	}
	return token, exp, nil
}

// Operator returns the configured operator username.
func (s *AuthService) Operator() string {
	return s.username
}

// TokenManager exposes the token manager for middleware use.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
