package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aquant/internal/database"
)

// 认证业务错误
var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked 连续失败次数超限，账号临时锁定
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrUserExists 用户名或邮箱已被占用
	ErrUserExists = errors.New("username or email already exists")
)

// ServiceConfig tunes the login lockout policy
type ServiceConfig struct {
	MaxLoginAttempts int
	LockDuration     time.Duration
}

// UserService implements account registration and login on Postgres
type UserService struct {
	db  *database.DB
	cfg ServiceConfig
}

// NewUserService creates a user service
func NewUserService(db *database.DB, cfg ServiceConfig) *UserService {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 15 * time.Minute
	}
	return &UserService{db: db, cfg: cfg}
}

// Register creates a new account
func (s *UserService) Register(ctx context.Context, username, email, password string) (*database.User, error) {
	exists, err := s.db.CheckUserExists(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}
	return s.db.CreateUser(ctx, username, email, password)
}

// Login verifies credentials. Each failure counts toward the lockout
// limit; a success clears the counter and stamps last_login.
func (s *UserService) Login(ctx context.Context, username, password string) (*database.User, error) {
	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		return nil, fmt.Errorf("%w until %s", ErrAccountLocked,
			user.LockedUntil.Format(time.RFC3339))
	}

	if err := database.ValidatePassword(password, user.PasswordHash); err != nil {
		if rerr := s.db.RecordFailedLogin(ctx, user.ID, s.cfg.MaxLoginAttempts, s.cfg.LockDuration); rerr != nil {
			return nil, rerr
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.db.ResetFailedLogins(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// Profile returns the account behind a token subject
func (s *UserService) Profile(ctx context.Context, userID string) (*database.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return s.db.GetUserByID(ctx, id)
}
