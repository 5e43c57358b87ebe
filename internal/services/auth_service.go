package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo repository.UserRepository
	auditSvc *AuditService
	cfg      *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo repository.UserRepository, auditSvc *AuditService, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		auditSvc: auditSvc,
		cfg:      cfg,
	}
}

// LoginResult represents the result of a login attempt
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login authenticates a user and returns a signed token
func (s *AuthService) Login(ctx context.Context, email, password string, actor Actor) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("login lookup failed", "error", err)
		}
		return nil, apperr.New(apperr.KindUnauthenticated, "%s", ErrInvalidPassword.Error())
	}

	if !user.IsActive() {
		return nil, apperr.New(apperr.KindUnauthorized, "%s", ErrInactiveUser.Error())
	}

	if !VerifyPassword(password, user.EncryptedPassword) {
		return nil, apperr.New(apperr.KindUnauthenticated, "%s", ErrInvalidPassword.Error())
	}

	token, expiresAt, err := s.generateJWT(user)
	if err != nil {
		return nil, errors.New("failed to sign token")
	}

	now := time.Now().UTC()
	if err := s.userRepo.TouchLogin(ctx, user.ID, now); err != nil {
		logger.Warn("failed to record login time", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	actor.UserID, actor.Email, actor.Role = user.ID, user.Email, user.Role
	s.auditSvc.Log(ctx, actor, AuditLogin, "User", user.Email, "User logged in")

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// generateJWT creates a new JWT token for a user
func (s *AuthService) generateJWT(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(s.cfg.JWTExpirationHours) * time.Hour)
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	return signed, expiresAt, err
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword compares a password with a hash
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
