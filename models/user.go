package models

import (
	"time"
)

// UserRole decides which rows a user may see and mutate
type UserRole string

const (
	UserRoleAdmin      UserRole = "admin"
	UserRoleAffiliate  UserRole = "affiliate"
	UserRoleOperations UserRole = "operations"
)

// Valid checks if the role is known
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleAffiliate, UserRoleOperations:
		return true
	default:
		return false
	}
}

// User is an account that can sign in to the dashboards
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"type:varchar(150);not null;uniqueIndex:uk_users_username" json:"username"`
	Email        string     `gorm:"type:varchar(255);not null;uniqueIndex:uk_users_email" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Role         UserRole   `gorm:"type:varchar(20);not null;default:'affiliate';index:idx_users_role" json:"role"`
	IsActive     *bool      `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID       *uint
	Username *string
	Email    *string
	Role     *UserRole
	IsActive *bool
}
