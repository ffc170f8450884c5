package models

import (
	"time"
)

// Setting keys with built-in defaults
const (
	SettingEmailNotifications = "email_notifications"
	SettingAutoAssignLeads    = "auto_assign_leads"
	SettingDefaultFormTheme   = "default_form_theme"
)

// DefaultSettings are returned for keys that have never been written
func DefaultSettings() map[string]string {
	return map[string]string{
		SettingEmailNotifications: "true",
		SettingAutoAssignLeads:    "false",
		SettingDefaultFormTheme:   "default",
	}
}

// Setting is a key/value configuration row editable by admins
type Setting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);not null;uniqueIndex:uk_settings_key" json:"key"`
	Value       string    `gorm:"type:text;not null;default:''" json:"value"`
	Description string    `gorm:"type:text;not null;default:''" json:"description"`
	UpdatedBy   *uint     `json:"updated_by,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

// SettingFilter represents filter criteria for setting queries
type SettingFilter struct {
	ID  *uint
	Key *string
}
