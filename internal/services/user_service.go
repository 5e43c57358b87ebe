package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/validation"
)

// minPasswordLength is enforced on every new password
const minPasswordLength = 8

// UserInput carries the fields of a new operator account
type UserInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// UserService manages operator accounts
type UserService struct {
	repo     repository.UserRepository
	auditSvc *AuditService
}

func NewUserService(repo repository.UserRepository, auditSvc *AuditService) *UserService {
	return &UserService{repo: repo, auditSvc: auditSvc}
}

func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user", fmt.Sprint(id))
	}
	return user, nil
}

// Create validates and stores a new user with a bcrypt password hash
func (s *UserService) Create(ctx context.Context, input *UserInput, actor Actor) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.New(apperr.KindInvalidInput, "email %q is not valid", input.Email)
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperr.New(apperr.KindInvalidInput, "password must have at least %d characters", minPasswordLength)
	}
	role := input.Role
	if role == "" {
		role = models.RoleViewer
	}
	if err := validation.OneOf("role", role, models.Roles); err != nil {
		return nil, err
	}

	hashed, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Email:             email,
		EncryptedPassword: hashed,
		FullName:          validation.Sanitize(input.FullName),
		Role:              role,
		Status:            models.StatusActive,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, duplicate(err, "email", email)
	}

	s.auditSvc.Log(ctx, actor, AuditCreate, "User", email, fmt.Sprintf("User created with role %s", role))
	return user, nil
}
