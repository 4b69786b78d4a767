package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/doorgate/internal/security/audit"
	"github.com/aryan0dhankhar/doorgate/internal/security/auth"
)

// AuthService handles administrator login
type AuthService struct {
	accounts *auth.AccountStore
	tokens   *auth.TokenManager
	ttl      time.Duration
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	accounts *auth.AccountStore,
	tokens *auth.TokenManager,
	ttl time.Duration,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		ttl:      ttl,
		audit:    auditLog,
		logger:   logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
	TokenType string `json:"token_type"`
}

// Login verifies credentials and issues a signed token
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	account, err := s.accounts.Authenticate(username, password)
	if err != nil {
		s.audit.LogLogin(ctx, username, "failed")
		return nil, err
	}

	token, err := s.tokens.GenerateToken(account.Username, account.Role, s.ttl)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("username", username), slog.String("error", err.Error()))
		return nil, errors.New("failed to issue token")
	}

	s.audit.LogLogin(ctx, username, "success")
	return &LoginResult{
		Username:  account.Username,
		Role:      account.Role,
		Token:     token,
		ExpiresIn: int(s.ttl.Seconds()),
		TokenType: "Bearer",
	}, nil
}
