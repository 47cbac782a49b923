package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/partsdesk/internal/events"
	"github.com/Skotchmaster/partsdesk/internal/hash"
	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/repo"
	"github.com/Skotchmaster/partsdesk/pkg/tokens"
)

type UserService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
	Events    events.Publisher
}

type LoginResult struct {
	AccessToken string
	AccessExp   time.Time
	User        *models.User
}

type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "users.login", "username", username)

	user, err := s.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	if hash.Outdated(user.PasswordHash) {
		if h, err := hash.HashPassword(password); err == nil {
			if err := s.Repo.UpdatePasswordHash(ctx, user.ID, h); err != nil {
				l.Warn("password_rehash_failed", "error", err)
			}
		}
	}

	exp := time.Now().Add(tokens.AccessTTL)
	token, err := tokens.SignAccessToken(user.ID, user.Username, user.Role, exp, s.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &LoginResult{AccessToken: token, AccessExp: exp, User: user}, nil
}

func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if req.Role == "" {
		req.Role = models.RoleClerk
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleClerk {
		return nil, fmt.Errorf("%w: role must be admin or clerk", ErrValidation)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: pwHash,
		Role:         req.Role,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, ErrUserAlreadyExist
		}
		return nil, err
	}

	events.Emit(ctx, s.Events, events.TopicUsers, strconv.FormatUint(uint64(user.ID), 10), events.UserCreated{
		Type:     events.TypeUserCreated,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error) {
	return s.Repo.ListUsers(ctx, offset, limit)
}

func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	if err := s.Repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// SeedAdmin creates the admin account unless a user with that name already exists.
func (s *UserService) SeedAdmin(ctx context.Context, username, password string) error {
	l := logging.FromContext(ctx).With("svc", "users.seed_admin")
	if username == "" || password == "" {
		l.Info("admin_seed_skipped", "reason", "no admin credentials configured")
		return nil
	}

	_, err := s.CreateUser(ctx, CreateUserRequest{Username: username, Password: password, Role: models.RoleAdmin})
	switch {
	case errors.Is(err, ErrUserAlreadyExist):
		return nil
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}
	l.Info("admin_seeded", "username", username)
	return nil
}
