package models

import (
	"time"
)

// LeadStatusChange is an audit row written whenever a lead moves through the pipeline
type LeadStatusChange struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	LeadID     uint       `gorm:"not null;index:idx_lead_status_changes_lead" json:"lead_id"`
	ChangedBy  uint       `gorm:"not null" json:"changed_by"`
	FromStatus LeadStatus `gorm:"type:varchar(30);not null" json:"from_status"`
	ToStatus   LeadStatus `gorm:"type:varchar(30);not null" json:"to_status"`
	IPAddress  string     `gorm:"type:varchar(64);not null;default:''" json:"ip_address"`
	RequestID  string     `gorm:"type:varchar(64);not null;default:''" json:"request_id"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`

	Lead *Lead `gorm:"foreignKey:LeadID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (LeadStatusChange) TableName() string { return "lead_status_changes" }

// LeadStatusChangeFilter represents filter criteria for status change queries
type LeadStatusChangeFilter struct {
	ID        *uint
	LeadID    *uint
	ChangedBy *uint
}
