package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lead is a single form submission; it is the source of truth for every counter
type Lead struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_leads_uuid" json:"uuid"`
	FormID      uint       `gorm:"not null;index:idx_leads_form_created,priority:1" json:"form_id"`
	AffiliateID *uint      `gorm:"index:idx_leads_affiliate_created,priority:1" json:"affiliate_id,omitempty"`
	FormData    JSONMap    `gorm:"type:jsonb;not null" json:"form_data"`
	Email       string     `gorm:"type:varchar(255);not null;index:idx_leads_email" json:"email"`
	Name        string     `gorm:"type:varchar(200);not null;default:''" json:"name"`
	Phone       string     `gorm:"type:varchar(50);not null;default:''" json:"phone"`
	UTMSource   string     `gorm:"column:utm_source;type:varchar(100);not null;default:'';index:idx_leads_utm_source" json:"utm_source"`
	UTMMedium   string     `gorm:"column:utm_medium;type:varchar(100);not null;default:''" json:"utm_medium"`
	UTMCampaign string     `gorm:"column:utm_campaign;type:varchar(100);not null;default:''" json:"utm_campaign"`
	UTMTerm     string     `gorm:"column:utm_term;type:varchar(100);not null;default:''" json:"utm_term"`
	UTMContent  string     `gorm:"column:utm_content;type:varchar(100);not null;default:''" json:"utm_content"`
	ReferrerURL string     `gorm:"column:referrer_url;type:text;not null;default:''" json:"referrer_url"`
	IPAddress   string     `gorm:"type:varchar(64);not null;default:''" json:"ip_address"`
	UserAgent   string     `gorm:"type:text;not null;default:''" json:"user_agent"`
	Status      LeadStatus `gorm:"type:varchar(30);not null;default:'new';index:idx_leads_status" json:"status"`
	Notes       string     `gorm:"type:text;not null;default:''" json:"notes"`
	AssignedTo  *uint      `json:"assigned_to,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index:idx_leads_form_created,priority:2;index:idx_leads_affiliate_created,priority:2;index:idx_leads_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	Form      *Form      `gorm:"foreignKey:FormID;references:ID;constraint:OnDelete:RESTRICT" json:"form,omitempty"`
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID;references:ID;constraint:OnDelete:SET NULL" json:"affiliate,omitempty"`
}

func (Lead) TableName() string { return "leads" }

// BeforeCreate assigns the public identifier and the initial status
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	if l.FormData == nil {
		l.FormData = JSONMap{}
	}
	return nil
}

// IsConverted reports whether the lead currently counts as a conversion
func (l *Lead) IsConverted() bool {
	return l.Status.IsConversion()
}

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	FormID        *uint
	AffiliateID   *uint
	Status        *LeadStatus
	StatusIn      []LeadStatus
	UTMSource     *string
	EmailLike     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// GroupCount is one row of a GROUP BY count over leads
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// All returns every persisted model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&User{},
		&Form{},
		&Affiliate{},
		&AffiliateFormAssignment{},
		&Lead{},
		&LeadNote{},
		&LeadStatusChange{},
		&Setting{},
	}
}
