package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/live-support/internal/auth"
	"github.com/spec-kit/live-support/internal/config"
	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/repository"
	apperrors "github.com/spec-kit/live-support/pkg/util"
)

// PresenceController is the slice of the presence tracker auth needs: an
// explicit logout bypasses the offline debounce.
type PresenceController interface {
	ForceOffline(actorID string)
}

// AuthService coordinates registration, login, and logout flows.
type AuthService struct {
	users      repository.UserRepository
	codes      repository.CodeStore
	presence   PresenceController
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	CodeStore repository.CodeStore
	Presence  PresenceController
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		codes:      deps.CodeStore,
		presence:   deps.Presence,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// TokenManager exposes the shared token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a new account with the given role.
func (s *AuthService) Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// Login authenticates an account of any role.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if user.Status != domain.UserStatusActive {
		return nil, "", time.Time{}, apperrors.NewForbidden("account suspended")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// Logout flips the actor offline immediately, bypassing the presence
// debounce, and lets presence listeners reclaim matching state.
func (s *AuthService) Logout(_ context.Context, userID string) error {
	if s.presence != nil {
		s.presence.ForceOffline(userID)
	}
	return nil
}

// IssueHandoffCode stores a short-lived one-time code for the user.
func (s *AuthService) IssueHandoffCode(ctx context.Context, userID string) (string, error) {
	code, err := s.codes.Generate(ctx, userID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	return code, nil
}

// RedeemHandoffCode consumes a one-time code and issues a session token.
func (s *AuthService) RedeemHandoffCode(ctx context.Context, code string) (*domain.User, string, time.Time, error) {
	userID, err := s.codes.Consume(ctx, code)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid or expired code")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}
