package models

import (
	"time"
)

// Affiliate is a referral partner; its counters are derived from the leads attributed to it
type Affiliate struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;uniqueIndex:uk_affiliates_user" json:"user_id"`
	AffiliateCode    string    `gorm:"type:varchar(50);not null;uniqueIndex:uk_affiliates_code" json:"affiliate_code"`
	CompanyName      string    `gorm:"type:varchar(200);not null;default:''" json:"company_name"`
	Website          string    `gorm:"type:varchar(255);not null;default:''" json:"website"`
	TotalLeads       int64     `gorm:"not null;default:0" json:"total_leads"`
	TotalConversions int64     `gorm:"not null;default:0" json:"total_conversions"`
	IsActive         *bool     `gorm:"not null;default:true;index:idx_affiliates_is_active" json:"is_active"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (Affiliate) TableName() string { return "affiliates" }

func (a *Affiliate) ConversionRate() float64 {
	return ConversionRate(a.TotalLeads, a.TotalConversions)
}

func (a *Affiliate) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// AffiliateFilter represents filter criteria for affiliate queries
type AffiliateFilter struct {
	ID            *uint
	UserID        *uint
	AffiliateCode *string
	IsActive      *bool
}
