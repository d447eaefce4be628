package user

import (
	"context"
	"database/sql"
	"errors"

	"fitclass/internal/apperr"
	"fitclass/internal/auth"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository is the persistence port behind the identity service.
type Repository interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*User, string, string, error)
	GetByID(ctx context.Context, userID int) (*User, error)

	// ValidateTrainer and ValidateMember are the identity checks the
	// reservation core runs before any mutating operation.
	ValidateTrainer(ctx context.Context, trainerID int) error
	ValidateMember(ctx context.Context, memberID int) error
}

type service struct {
	repo          Repository
	accessSecret  string
	refreshSecret string
}

func NewService(repo Repository, accessSecret, refreshSecret string) Service {
	return &service{
		repo:          repo,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, string, string, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	role := req.Role
	if role == "" {
		role = RoleMember
	}
	if role != RoleMember && role != RoleTrainer {
		return nil, "", "", apperr.New(apperr.PolicyViolation, "role must be member or trainer")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	u, err := s.repo.Create(ctx, req.Name, req.Email, passwordHash, role)
	if err != nil {
		return nil, "", "", err
	}

	accessToken, refreshToken, err := auth.GenerateTokens(u.ID, u.Email, u.Role, s.accessSecret, s.refreshSecret)
	if err != nil {
		return nil, "", "", err
	}

	return u, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, string, string, error) {
	u, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := auth.GenerateTokens(u.ID, u.Email, u.Role, s.accessSecret, s.refreshSecret)
	if err != nil {
		return nil, "", "", err
	}

	return u, accessToken, refreshToken, nil
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *service) ValidateTrainer(ctx context.Context, trainerID int) error {
	return s.validateRole(ctx, trainerID, RoleTrainer, "trainer")
}

func (s *service) ValidateMember(ctx context.Context, memberID int) error {
	return s.validateRole(ctx, memberID, RoleMember, "member")
}

func (s *service) validateRole(ctx context.Context, id int, role, label string) error {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Newf(apperr.NotFound, "%s not found", label)
		}
		return err
	}
	if u.Role != role {
		return apperr.Newf(apperr.AccessDenied, "user %d is not a %s", id, label)
	}
	return nil
}
