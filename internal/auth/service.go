package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database"
	"github.com/mrlokans/growlin/internal/entities"
)

// DefaultGroupName is the group the first administrator is placed in.
const DefaultGroupName = "Staff"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,32}$`)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrUserInactive     = errors.New("user account is inactive")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrNoPassword       = errors.New("user has no password set")
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameInvalid  = errors.New("username must be 2-32 characters: letters, digits, dot, underscore or hyphen")
	ErrNameRequired     = errors.New("display name is required")
	ErrNameTooLong      = errors.New("display name must be at most 24 characters")
	ErrGroupRequired    = errors.New("group is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrSetupComplete    = errors.New("setup has already been completed")
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	CreateUser(user *entities.User) error
	GetUserByID(id uint) (*entities.User, error)
	GetUserByUsername(username string) (*entities.User, error)
	GetUserByTokenHash(tokenHash string) (*entities.User, error)
	UpdateUser(id uint, updates map[string]any) (int64, error)
	CountUsers() (int64, error)
	GetOrCreateGroup(name string, position int) (*entities.UserGroup, error)
	GetRoleByName(name string) (*entities.UserRole, error)
	LoginDirectory() ([]entities.UserGroup, error)
}

// NewUser describes an account to create. Password may be empty for
// borrowers who only use a kiosk; such accounts cannot log in.
type NewUser struct {
	Username string
	Name     string
	Email    string
	Password string
	GroupID  uint
	Group    string // Used when GroupID is 0; created if missing
	Roles    []string
}

// Service handles authentication and user management.
type Service struct {
	store  UserStore
	config config.Auth
	now    func() time.Time
}

// NewService creates a new authentication service.
func NewService(store UserStore, cfg config.Auth) *Service {
	return &Service{
		store:  store,
		config: cfg,
		now:    time.Now,
	}
}

// CreateUser validates and stores a new active user.
func (s *Service) CreateUser(params NewUser) (*entities.User, error) {
	params.Username = strings.TrimSpace(params.Username)
	params.Name = strings.TrimSpace(params.Name)

	if params.Username == "" {
		return nil, ErrUsernameRequired
	}
	if !usernamePattern.MatchString(params.Username) {
		return nil, ErrUsernameInvalid
	}
	if params.Name == "" {
		return nil, ErrNameRequired
	}
	if len([]rune(params.Name)) > 24 {
		return nil, ErrNameTooLong
	}

	groupID := params.GroupID
	if groupID == 0 {
		if strings.TrimSpace(params.Group) == "" {
			return nil, ErrGroupRequired
		}
		group, err := s.store.GetOrCreateGroup(strings.TrimSpace(params.Group), 0)
		if err != nil {
			return nil, err
		}
		groupID = group.ID
	}

	var roles []entities.UserRole
	for _, name := range params.Roles {
		role, err := s.store.GetRoleByName(name)
		if err != nil {
			return nil, fmt.Errorf("unknown role %q: %w", name, err)
		}
		roles = append(roles, *role)
	}

	var passwordHash string
	if params.Password != "" {
		hash, err := HashPassword(params.Password, s.config.BcryptCost)
		if err != nil {
			return nil, err
		}
		passwordHash = hash
	}

	user := &entities.User{
		Username:     params.Username,
		Name:         params.Name,
		Email:        strings.TrimSpace(params.Email),
		PasswordHash: passwordHash,
		GroupID:      groupID,
		Active:       true,
		Roles:        roles,
	}

	if err := s.store.CreateUser(user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// CreateFirstAdmin creates the initial administrator in the default group.
// It fails with ErrSetupComplete once any user exists.
func (s *Service) CreateFirstAdmin(username, name, email, password string) (*entities.User, error) {
	hasUsers, err := s.HasUsers()
	if err != nil {
		return nil, err
	}
	if hasUsers {
		return nil, ErrSetupComplete
	}
	if password == "" {
		return nil, ErrPasswordTooShort
	}
	if name == "" {
		name = username
	}
	return s.CreateUser(NewUser{
		Username: username,
		Name:     name,
		Email:    email,
		Password: password,
		Group:    DefaultGroupName,
		Roles:    []string{entities.RoleAdmin},
	})
}

// Authenticate validates credentials and returns the user.
// Implements account lockout after too many failed attempts.
func (s *Service) Authenticate(username, password string) (*entities.User, error) {
	user, err := s.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	if user.PasswordHash == "" {
		return nil, ErrNoPassword
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(user, now)
		return nil, err
	}

	user.LastLoginAt = &now
	if _, err := s.store.UpdateUser(user.ID, map[string]any{
		"last_login_at":         now,
		"failed_login_attempts": 0,
		"locked_until":          nil,
	}); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return user, nil
}

// recordFailedLogin increments the failed login counter and locks the account if threshold reached.
func (s *Service) recordFailedLogin(user *entities.User, now time.Time) {
	user.FailedLoginAttempts++

	updates := map[string]any{
		"failed_login_attempts": user.FailedLoginAttempts,
	}

	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if user.FailedLoginAttempts >= maxAttempts {
		lockoutDuration := s.config.LockoutDuration
		if lockoutDuration == 0 {
			lockoutDuration = 30 * time.Minute
		}
		lockedUntil := now.Add(lockoutDuration)
		user.LockedUntil = &lockedUntil
		updates["locked_until"] = lockedUntil
		updates["failed_login_attempts"] = 0
	}

	_, _ = s.store.UpdateUser(user.ID, updates)
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.store.GetUserByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ValidateToken checks a plaintext token and returns the associated user.
// Returns ErrTokenExpired if the token is past its expiry time.
func (s *Service) ValidateToken(token string) (*entities.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.store.GetUserByTokenHash(HashToken(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	if s.config.TokenExpiry > 0 && user.TokenCreatedAt != nil {
		if s.now().Sub(*user.TokenCreatedAt) > s.config.TokenExpiry {
			return nil, ErrTokenExpired
		}
	}

	return user, nil
}

// GenerateToken creates a new API token for a user.
// Returns the plaintext token (show to user once) - only the hash is stored in DB.
func (s *Service) GenerateToken(userID uint) (string, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	rows, err := s.store.UpdateUser(userID, map[string]any{
		"token_hash":       hash,
		"token_created_at": s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	if rows == 0 {
		return "", ErrUserNotFound
	}

	return plaintext, nil
}

// RevokeToken removes a user's API token.
func (s *Service) RevokeToken(userID uint) error {
	if _, err := s.store.UpdateUser(userID, map[string]any{
		"token_hash":       "",
		"token_created_at": nil,
	}); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// ChangePassword updates a user's password after checking the current one.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	if user.PasswordHash != "" {
		if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
			return err
		}
	}

	return s.SetPassword(userID, newPassword)
}

// SetPassword replaces a user's password without checking the old one.
func (s *Service) SetPassword(userID uint, newPassword string) error {
	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}

	rows, err := s.store.UpdateUser(userID, map[string]any{"password_hash": newHash})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers() (bool, error) {
	count, err := s.store.CountUsers()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LoginDirectory lists active users grouped by group for the login page.
func (s *Service) LoginDirectory() ([]entities.UserGroup, error) {
	return s.store.LoginDirectory()
}
