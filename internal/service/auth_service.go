package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// --- Interface ---

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Me(ctx context.Context, docID string) (*UserResponse, error)
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret []byte) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  24 * time.Hour,
	}
}

// --- Implementation ---

// Login authenticates a provisioned account. Accounts are created by an admin
// keyed by email only; the first successful login binds a fresh UID to the
// record and flips it from pending to active.
func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrValidation)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrValidation)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrInvariant)
	}

	// First login: bind an identity key to the provisioned record.
	if user.UID == "" {
		user.UID = uuid.NewString()
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to bind user identity: %w", err)
		}
	}

	// Last-login stamping is best-effort and must never fail the login.
	now := time.Now()
	if err := s.userRepo.StampLastLogin(ctx, user.ID, now); err != nil {
		logger.Warn().Err(err).Str("email", user.Email).Msg("failed to stamp last login")
	} else {
		user.LastLogin = &now
		user.AccountStatus = model.AccountStatusActive
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID.String(),
		"uid":   user.UID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   now.Add(s.tokenTTL).Unix(),
		"iat":   now.Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{Token: signed, User: toUserResponse(user)}, nil
}

func (s *authService) Me(ctx context.Context, docID string) (*UserResponse, error) {
	id, err := uuid.Parse(docID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", ErrValidation)
	}
	user, err := s.userRepo.FindByDocID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: user '%s'", ErrNotFound, docID)
	}
	return toUserResponse(user), nil
}
