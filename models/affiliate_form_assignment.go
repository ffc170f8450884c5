package models

import (
	"time"
)

// AffiliateFormAssignment records that an affiliate may receive attribution for a form
type AffiliateFormAssignment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AffiliateID    uint      `gorm:"not null;uniqueIndex:uk_assignments_affiliate_form,priority:1" json:"affiliate_id"`
	FormID         uint      `gorm:"not null;uniqueIndex:uk_assignments_affiliate_form,priority:2;index:idx_assignments_form" json:"form_id"`
	AssignedBy     *uint     `json:"assigned_by,omitempty"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	LeadsGenerated int64     `gorm:"not null;default:0" json:"leads_generated"`
	Conversions    int64     `gorm:"not null;default:0" json:"conversions"`
	AssignedAt     time.Time `gorm:"not null" json:"assigned_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`

	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID;references:ID;constraint:OnDelete:CASCADE" json:"affiliate,omitempty"`
	Form      *Form      `gorm:"foreignKey:FormID;references:ID;constraint:OnDelete:CASCADE" json:"form,omitempty"`
}

func (AffiliateFormAssignment) TableName() string { return "affiliate_form_assignments" }

func (a *AffiliateFormAssignment) ConversionRate() float64 {
	return ConversionRate(a.LeadsGenerated, a.Conversions)
}

func (a *AffiliateFormAssignment) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// AffiliateFormAssignmentFilter represents filter criteria for assignment queries
type AffiliateFormAssignmentFilter struct {
	ID          *uint
	AffiliateID *uint
	FormID      *uint
	IsActive    *bool
}
