package audit

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/growlin/internal/circulation"
	auditRepo "github.com/mrlokans/growlin/internal/database/audit"
	"github.com/mrlokans/growlin/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	svc := NewService(auditRepo.NewRepository(db))
	t.Cleanup(func() {
		svc.Flush()
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return svc, db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventAdmin,
		Action:    "test_action",
		Status:    entities.AuditStatusSuccess,
	}

	require.NoError(t, svc.Log(event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "test_action", saved.Action)
}

func TestService_LogBorrow(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful borrow", func(t *testing.T) {
		svc.LogBorrow(3, 12, "B-012", nil)
		svc.Flush()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "borrow").First(&event).Error)
		assert.Equal(t, entities.AuditEventBorrow, event.EventType)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Equal(t, uint(3), event.UserID)
		require.NotNil(t, event.EntityID)
		assert.Equal(t, uint(12), *event.EntityID)
		assert.JSONEq(t, `{"accession":"B-012"}`, string(event.Metadata))
	})

	t.Run("refused borrow", func(t *testing.T) {
		svc.LogBorrow(4, 12, "B-012", fmt.Errorf("%w: %q", circulation.ErrAlreadyBorrowed, "Seals"))
		svc.Flush()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "borrow_refused").First(&event).Error)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Contains(t, event.ErrorMsg, "already borrowed")
	})

	t.Run("unexpected failure keeps plain action", func(t *testing.T) {
		svc.LogReturn(4, 0, "", errors.New("database is locked"))
		svc.Flush()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "return").First(&event).Error)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Nil(t, event.EntityID)
	})
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(1, "login", "192.168.1.1", "Mozilla/5.0", true)
	svc.LogAuth(0, "login_failed", "192.168.1.1", "Mozilla/5.0", false)
	svc.Flush()

	var count int64
	require.NoError(t, db.Model(&entities.AuditEvent{}).Where("event_type = ?", entities.AuditEventAuth).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var login, failed entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login").First(&login).Error)
	assert.Equal(t, entities.AuditStatusSuccess, login.Status)
	assert.Equal(t, "192.168.1.1", login.IPAddress)
	require.NoError(t, db.Where("action = ?", "login_failed").First(&failed).Error)
	assert.Equal(t, entities.AuditStatusFailed, failed.Status)
}

func TestService_LogAdmin(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAdmin(1, "item_update", "item", 5, "Updated B-005", nil)
	svc.Flush()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "item_update").First(&event).Error)
	assert.Equal(t, entities.AuditEventAdmin, event.EventType)
	assert.Equal(t, "item", event.EntityType)
}

func TestService_LogOverdue(t *testing.T) {
	svc, db := setupTestService(t)
	now := time.Now()
	due := now.Add(-72 * time.Hour)

	loan := entities.Loan{
		ID:      9,
		ItemID:  5,
		UserID:  2,
		Item:    &entities.Item{Accession: "B-005", Title: "The Slippery Seals", Kind: entities.ItemKindBook},
		User:    &entities.User{Name: "Io", Group: entities.UserGroup{Name: "Jupiter"}},
		DueDate: &due,
	}

	written, err := svc.LogOverdue(loan, now)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = svc.LogOverdue(loan, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.False(t, written, "an overdue loan is recorded once")

	var events []entities.AuditEvent
	require.NoError(t, db.Where("event_type = ?", entities.AuditEventOverdue).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, `"The Slippery Seals" is overdue (Io, Jupiter)`, events[0].Description)
	assert.Contains(t, string(events[0].Metadata), `"days_overdue":3`)
}

func TestService_Cleanup(t *testing.T) {
	svc, _ := setupTestService(t)

	require.NoError(t, svc.Log(&entities.AuditEvent{
		EventType: entities.AuditEventBorrow,
		Action:    "ancient",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().AddDate(0, 0, -400),
	}))
	require.NoError(t, svc.Log(&entities.AuditEvent{
		EventType: entities.AuditEventBorrow,
		Action:    "recent",
		Status:    entities.AuditStatusSuccess,
	}))

	deleted, err := svc.Cleanup(365)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = svc.Cleanup(0)
	require.NoError(t, err)
	assert.Zero(t, deleted, "zero retention keeps everything")

	events, total, err := svc.List(auditRepo.Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "recent", events[0].Action)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel", truncate("hello", 3))
}
