package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"askcampus/internal/model"
	"askcampus/internal/pkg/jwtutil"
)

type userStore interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

type AuthService struct {
	users      userStore
	secret     string
	expiration time.Duration
	logger     *zap.Logger
}

func NewAuthService(users userStore, secret string, expiration time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, secret: secret, expiration: expiration, logger: logger}
}

// Login verifies the credential and issues a signed token. The same error is
// returned for an unknown username and a wrong password.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredential
	}
	token, err := jwtutil.GenerateToken(s.secret, s.expiration, user.ID, user.Username, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (s *AuthService) CreateUser(ctx context.Context, actor *model.User, req CreateUserRequest) (*model.User, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleAdmin && role != model.RoleUser {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}
	user := &model.User{
		Username:     username,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created",
		zap.Uint("user_id", user.ID),
		zap.String("role", user.Role),
		zap.Uint("actor_id", actor.ID))
	return user, nil
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (s *AuthService) UpdateUser(ctx context.Context, actor *model.User, id uint, req UpdateUserRequest) (*model.User, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		if *req.Role != model.RoleAdmin && *req.Role != model.RoleUser {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *req.Role)
		}
		user.Role = *req.Role
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password failed: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor *model.User) ([]model.User, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.users.List(ctx)
}

// EnsureBootstrapAdmin creates the initial admin account when the user table
// is empty, so a fresh deployment is reachable.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, username, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password failed: %w", err)
	}
	admin := &model.User{
		Username:     username,
		Name:         "Administrator",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("username", username))
	return nil
}
