package models

import (
	"time"
)

// LeadNote is an append-only comment on a lead
type LeadNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LeadID    uint      `gorm:"not null;index:idx_lead_notes_lead" json:"lead_id"`
	AuthorID  uint      `gorm:"not null" json:"author_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Lead   *Lead `gorm:"foreignKey:LeadID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Author *User `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:RESTRICT" json:"author,omitempty"`
}

func (LeadNote) TableName() string { return "lead_notes" }

// LeadNoteFilter represents filter criteria for lead note queries
type LeadNoteFilter struct {
	ID       *uint
	LeadID   *uint
	AuthorID *uint
}
