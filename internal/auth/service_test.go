package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database/users"
	"github.com/mrlokans/growlin/internal/entities"
)

func testAuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:  time.Hour,
		TokenExpiry:      24 * time.Hour,
		BcryptCost:       4,
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  10 * time.Minute,
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	require.NoError(t, db.AutoMigrate(&entities.UserGroup{}, &entities.UserRole{}, &entities.User{}))
	require.NoError(t, db.Create(&entities.UserRole{Name: entities.RoleAdmin, Permissions: []string{"admin"}}).Error)
	return db
}

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db := setupTestDB(t)
	return NewService(users.NewRepository(db), testAuthConfig()), db
}

func createBorrower(t *testing.T, svc *Service, username, password string) *entities.User {
	t.Helper()
	user, err := svc.CreateUser(NewUser{
		Username: username,
		Name:     username,
		Password: password,
		Group:    "Jupiter",
	})
	require.NoError(t, err)
	return user
}

func TestService_CreateUser(t *testing.T) {
	svc, _ := setupTestService(t)

	tests := []struct {
		name    string
		params  NewUser
		wantErr error
	}{
		{
			name:   "borrower with password",
			params: NewUser{Username: "io", Name: "Io", Password: "volcanoes", Group: "Jupiter"},
		},
		{
			name:   "kiosk-only borrower",
			params: NewUser{Username: "callisto", Name: "Callisto", Group: "Jupiter"},
		},
		{
			name:    "missing username",
			params:  NewUser{Name: "Io", Group: "Jupiter"},
			wantErr: ErrUsernameRequired,
		},
		{
			name:    "invalid username",
			params:  NewUser{Username: "io moon", Name: "Io", Group: "Jupiter"},
			wantErr: ErrUsernameInvalid,
		},
		{
			name:    "missing name",
			params:  NewUser{Username: "ganymede", Group: "Jupiter"},
			wantErr: ErrNameRequired,
		},
		{
			name:    "name too long",
			params:  NewUser{Username: "ganymede", Name: "Ganymede the largest moon", Group: "Jupiter"},
			wantErr: ErrNameTooLong,
		},
		{
			name:    "missing group",
			params:  NewUser{Username: "ganymede", Name: "Ganymede"},
			wantErr: ErrGroupRequired,
		},
		{
			name:    "short password",
			params:  NewUser{Username: "ganymede", Name: "Ganymede", Password: "short", Group: "Jupiter"},
			wantErr: ErrPasswordTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.CreateUser(tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.NotZero(t, user.GroupID)
			assert.True(t, user.Active)
		})
	}

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.CreateUser(NewUser{Username: "io", Name: "Io again", Group: "Jupiter"})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := svc.CreateUser(NewUser{Username: "europa", Name: "Europa", Group: "Jupiter", Roles: []string{"wizard"}})
		assert.Error(t, err)
	})
}

func TestService_CreateFirstAdmin(t *testing.T) {
	svc, _ := setupTestService(t)

	admin, err := svc.CreateFirstAdmin("europa", "", "", "icy-ocean")
	require.NoError(t, err)
	assert.Equal(t, "europa", admin.Name)

	loaded, err := svc.GetUserByID(admin.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsAdmin())
	assert.Equal(t, DefaultGroupName, loaded.Group.Name)

	_, err = svc.CreateFirstAdmin("moon", "Moon", "", "tidal-lock")
	assert.ErrorIs(t, err, ErrSetupComplete)
}

func TestService_Authenticate(t *testing.T) {
	svc, db := setupTestService(t)
	createBorrower(t, svc, "io", "volcanoes")
	createBorrower(t, svc, "callisto", "")

	t.Run("valid credentials", func(t *testing.T) {
		user, err := svc.Authenticate("io", "volcanoes")
		require.NoError(t, err)
		assert.Equal(t, "Jupiter", user.Group.Name)

		var stored entities.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate("io", "lava-lakes")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Authenticate("titan", "volcanoes")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("no password set", func(t *testing.T) {
		_, err := svc.Authenticate("callisto", "")
		assert.ErrorIs(t, err, ErrNoPassword)
	})

	t.Run("inactive user", func(t *testing.T) {
		require.NoError(t, db.Model(&entities.User{}).Where("username = ?", "io").Update("active", false).Error)
		t.Cleanup(func() {
			db.Model(&entities.User{}).Where("username = ?", "io").Update("active", true)
		})

		_, err := svc.Authenticate("io", "volcanoes")
		assert.ErrorIs(t, err, ErrUserInactive)
	})
}

func TestService_AccountLockout(t *testing.T) {
	svc, _ := setupTestService(t)
	createBorrower(t, svc, "mimas", "death-star")

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := svc.Authenticate("mimas", "wrong-password")
		require.ErrorIs(t, err, ErrInvalidPassword)
	}

	_, err := svc.Authenticate("mimas", "death-star")
	assert.ErrorIs(t, err, ErrAccountLocked)

	now = now.Add(11 * time.Minute)
	_, err = svc.Authenticate("mimas", "death-star")
	assert.NoError(t, err, "lockout expires")
}

func TestService_Tokens(t *testing.T) {
	svc, db := setupTestService(t)
	user := createBorrower(t, svc, "titan", "methane-lakes")

	token, err := svc.GenerateToken(user.ID)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	found, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err := svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, svc.RevokeToken(user.ID))
		_, err := svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)

		var stored entities.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		assert.Empty(t, stored.TokenHash)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.GenerateToken(9999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestService_ChangePassword(t *testing.T) {
	svc, _ := setupTestService(t)
	user := createBorrower(t, svc, "dione", "first-password")

	err := svc.ChangePassword(user.ID, "not-the-password", "second-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	require.NoError(t, svc.ChangePassword(user.ID, "first-password", "second-password"))

	_, err = svc.Authenticate("dione", "second-password")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.SetPassword(9999, "whatever-password"), ErrUserNotFound)
}

func TestService_LoginDirectory(t *testing.T) {
	svc, _ := setupTestService(t)

	assert.False(t, mustHasUsers(t, svc))

	createBorrower(t, svc, "io", "volcanoes")
	createBorrower(t, svc, "europa", "")
	_, err := svc.CreateUser(NewUser{Username: "titan", Name: "Titan", Group: "Saturn"})
	require.NoError(t, err)

	assert.True(t, mustHasUsers(t, svc))

	groups, err := svc.LoginDirectory()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Jupiter", groups[0].Name)
	require.Len(t, groups[0].Members, 2)
	assert.Equal(t, "europa", groups[0].Members[0].Name)
}

func mustHasUsers(t *testing.T, svc *Service) bool {
	t.Helper()
	has, err := svc.HasUsers()
	require.NoError(t, err)
	return has
}
