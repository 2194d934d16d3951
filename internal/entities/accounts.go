package entities

import (
	"fmt"
	"time"
)

// RoleAdmin grants access to the back office.
const RoleAdmin = "admin"

type CampusLocation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"uniqueIndex;size:128;not null" json:"name" validate:"required,max=128"`
	PreventBorrowing bool      `json:"prevent_borrowing"` // Reference shelves, staff rooms
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (CampusLocation) TableName() string {
	return "campus_locations"
}

// UserGroup is a class or cohort. Groups are listed by Position, then Name.
type UserGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name" validate:"required,max=128"`
	Position  int       `gorm:"index" json:"position"`
	Members   []User    `gorm:"foreignKey:GroupID" json:"members,omitempty" validate:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserGroup) TableName() string {
	return "user_groups"
}

type UserRole struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:16;not null" json:"name" validate:"required,max=16"`
	Permissions []string  `gorm:"serializer:json" json:"permissions" validate:"dive,max=32"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

type Currency struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name" validate:"required,max=32"`
	Symbol    string    `gorm:"size:4" json:"symbol" validate:"max=4"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Currency) TableName() string {
	return "currencies"
}

// User is a borrower. Staff are borrowers with the admin role.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username" validate:"required,max=32"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Name         string     `gorm:"size:24;not null" json:"name" validate:"required,max=24"`
	GroupID      uint       `gorm:"index;not null" json:"group_id" validate:"required"`
	Group        UserGroup  `gorm:"foreignKey:GroupID" json:"group,omitempty" validate:"-"`
	Email        string     `gorm:"size:255" json:"email,omitempty" validate:"omitempty,email,max=255"`
	Active       bool       `json:"active"`
	Roles        []UserRole `gorm:"many2many:user_role_assignments;" json:"roles,omitempty" validate:"-"`

	TokenHash      string     `gorm:"index;size:64" json:"-"` // SHA-256 of the API token
	TokenCreatedAt *time.Time `json:"-"`

	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// String renders the borrower the way the register prints it: "Name, Group".
func (u *User) String() string {
	if u.Group.Name == "" {
		return u.Name
	}
	return fmt.Sprintf("%s, %s", u.Name, u.Group.Name)
}
