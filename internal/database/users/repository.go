// Package users provides database operations for borrowers, groups and roles.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetUserByUsername("europa")
package users

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user. Roles already carrying an ID are linked, not created.
func (r *Repository) CreateUser(user *entities.User) error {
	return r.db.Omit("Group").Create(user).Error
}

func (r *Repository) GetUserByID(id uint) (*entities.User, error) {
	var user entities.User
	err := r.withRelations().First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByUsername(username string) (*entities.User, error) {
	var user entities.User
	err := r.withRelations().Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByTokenHash retrieves a user by the SHA-256 of their API token.
func (r *Repository) GetUserByTokenHash(tokenHash string) (*entities.User, error) {
	var user entities.User
	err := r.withRelations().Where("token_hash = ? AND token_hash <> ''", tokenHash).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies column updates and returns the number of rows touched.
func (r *Repository) UpdateUser(id uint, updates map[string]any) (int64, error) {
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *Repository) CountUsers() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}

// ListGroups returns groups in display order.
func (r *Repository) ListGroups() ([]entities.UserGroup, error) {
	var groups []entities.UserGroup
	err := r.db.Order("position ASC, name ASC").Find(&groups).Error
	return groups, err
}

func (r *Repository) GetOrCreateGroup(name string, position int) (*entities.UserGroup, error) {
	group := entities.UserGroup{Name: name, Position: position}
	err := r.db.Where(entities.UserGroup{Name: name}).Attrs(entities.UserGroup{Position: position}).FirstOrCreate(&group).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", name, err)
	}
	return &group, nil
}

func (r *Repository) GetRoleByName(name string) (*entities.UserRole, error) {
	var role entities.UserRole
	err := r.db.Where("name = ?", name).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// LoginDirectory lists groups that have active members, members sorted by name.
func (r *Repository) LoginDirectory() ([]entities.UserGroup, error) {
	var groups []entities.UserGroup
	err := r.db.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Where("active = ?", true).Order("name ASC")
		}).
		Order("position ASC, name ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	populated := groups[:0]
	for _, g := range groups {
		if len(g.Members) > 0 {
			populated = append(populated, g)
		}
	}
	return populated, nil
}

func (r *Repository) withRelations() *gorm.DB {
	return r.db.Preload("Group").Preload("Roles")
}
