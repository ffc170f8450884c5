// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kitsune/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for dashboard users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID uint, at time.Time) error
}

// FormRepository defines operations for forms
type FormRepository interface {
	Repository[models.Form, models.FormFilter]
	ByUUID(ctx context.Context, uuidStr string) (*models.Form, error)
	ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Form, error)
	SetActive(ctx context.Context, formID uint, active bool) error
}

// AffiliateRepository defines operations for affiliates.
// Counter columns are written only through the Increment/Adjust/Set methods.
type AffiliateRepository interface {
	Repository[models.Affiliate, models.AffiliateFilter]
	ByCode(ctx context.Context, code string) (*models.Affiliate, error)
	ByUserID(ctx context.Context, userID uint) (*models.Affiliate, error)
	ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Affiliate, error)
	ByIDForUpdate(ctx context.Context, affiliateID uint) (*models.Affiliate, error)
	SetActive(ctx context.Context, affiliateID uint, active bool) error
	IncrementLeads(ctx context.Context, affiliateID uint) error
	AdjustConversions(ctx context.Context, affiliateID uint, delta int) error
	SetCounters(ctx context.Context, affiliateID uint, leads, conversions int64) error
}

// AffiliateFormAssignmentRepository defines operations for affiliate/form assignments
type AffiliateFormAssignmentRepository interface {
	Repository[models.AffiliateFormAssignment, models.AffiliateFormAssignmentFilter]
	ByPair(ctx context.Context, affiliateID, formID uint) (*models.AffiliateFormAssignment, error)
	ByIDForUpdate(ctx context.Context, assignmentID uint) (*models.AffiliateFormAssignment, error)
	SetActive(ctx context.Context, assignmentID uint, active bool, assignedBy *uint) error
	IncrementLeads(ctx context.Context, assignmentID uint) error
	AdjustConversions(ctx context.Context, assignmentID uint, delta int) error
	SetCounters(ctx context.Context, assignmentID uint, leads, conversions int64) error
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	ByUUID(ctx context.Context, uuidStr string) (*models.Lead, error)
	UpdateStatus(ctx context.Context, leadID uint, from, to models.LeadStatus) (bool, error)
	UpdateNotes(ctx context.Context, leadID uint, notes string) error
	CountConversions(ctx context.Context, filter models.LeadFilter) (int64, error)
	CountByBucket(ctx context.Context, filter models.LeadFilter, unit BucketUnit) ([]models.GroupCount, error)
	GroupCountBy(ctx context.Context, filter models.LeadFilter, column string) ([]models.GroupCount, error)
	CountByPair(ctx context.Context, affiliateID, formID uint) (leads, conversions int64, err error)
	ListWithRelations(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error)
}

// LeadNoteRepository defines operations for lead notes
type LeadNoteRepository interface {
	Repository[models.LeadNote, models.LeadNoteFilter]
	ListByLead(ctx context.Context, leadID uint) ([]*models.LeadNote, error)
}

// LeadStatusChangeRepository defines operations for lead status audit rows
type LeadStatusChangeRepository interface {
	Repository[models.LeadStatusChange, models.LeadStatusChangeFilter]
	ListByLead(ctx context.Context, leadID uint) ([]*models.LeadStatusChange, error)
}

// SettingRepository defines operations for key/value settings
type SettingRepository interface {
	Repository[models.Setting, models.SettingFilter]
	ByKey(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}
