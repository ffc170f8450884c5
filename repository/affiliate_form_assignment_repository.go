package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffiliateFormAssignmentRepositoryImpl implements AffiliateFormAssignmentRepository interface
type AffiliateFormAssignmentRepositoryImpl struct {
	*BaseRepository[models.AffiliateFormAssignment, models.AffiliateFormAssignmentFilter]
}

// NewAffiliateFormAssignmentRepository creates a new assignment repository
func NewAffiliateFormAssignmentRepository(db *gorm.DB) AffiliateFormAssignmentRepository {
	return &AffiliateFormAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AffiliateFormAssignment, models.AffiliateFormAssignmentFilter](db),
	}
}

// ByPair retrieves the assignment for (affiliate, form) regardless of its state
func (r *AffiliateFormAssignmentRepositoryImpl) ByPair(ctx context.Context, affiliateID, formID uint) (*models.AffiliateFormAssignment, error) {
	rows, err := r.ByFilter(ctx, models.AffiliateFormAssignmentFilter{AffiliateID: &affiliateID, FormID: &formID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByIDForUpdate loads an assignment and holds its row lock until the surrounding transaction ends
func (r *AffiliateFormAssignmentRepositoryImpl) ByIDForUpdate(ctx context.Context, assignmentID uint) (*models.AffiliateFormAssignment, error) {
	var assignment models.AffiliateFormAssignment
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", assignmentID).Take(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock assignment %d: %w", assignmentID, err)
	}
	return &assignment, nil
}

// SetActive toggles an assignment; counters are left untouched
func (r *AffiliateFormAssignmentRepositoryImpl) SetActive(ctx context.Context, assignmentID uint, active bool, assignedBy *uint) error {
	updates := map[string]any{"is_active": active, "updated_at": utils.UTCNow()}
	if active {
		updates["assigned_at"] = utils.UTCNow()
		if assignedBy != nil {
			updates["assigned_by"] = *assignedBy
		}
	}
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.AffiliateFormAssignment{}).Where("id = ?", assignmentID).UpdateColumns(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update assignment %d: %w", assignmentID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// IncrementLeads adds one to leads_generated in a single statement
func (r *AffiliateFormAssignmentRepositoryImpl) IncrementLeads(ctx context.Context, assignmentID uint) error {
	return r.updateCounter(ctx, assignmentID, "leads_generated", gorm.Expr("leads_generated + 1"))
}

// AdjustConversions moves conversions by delta without going below zero
func (r *AffiliateFormAssignmentRepositoryImpl) AdjustConversions(ctx context.Context, assignmentID uint, delta int) error {
	return r.updateCounter(ctx, assignmentID, "conversions", counterDelta("conversions", delta))
}

// SetCounters overwrites both counters with recomputed values
func (r *AffiliateFormAssignmentRepositoryImpl) SetCounters(ctx context.Context, assignmentID uint, leads, conversions int64) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.AffiliateFormAssignment{}).Where("id = ?", assignmentID).UpdateColumns(map[string]any{
			"leads_generated": leads,
			"conversions":     conversions,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to set assignment %d counters: %w", assignmentID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *AffiliateFormAssignmentRepositoryImpl) updateCounter(ctx context.Context, assignmentID uint, column string, expr any) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.AffiliateFormAssignment{}).Where("id = ?", assignmentID).UpdateColumn(column, expr)
		if res.Error != nil {
			return fmt.Errorf("failed to update assignment %d %s: %w", assignmentID, column, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *AffiliateFormAssignmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.AffiliateFormAssignmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AffiliateID != nil {
		query = query.Where("affiliate_id = ?", *filter.AffiliateID)
	}
	if filter.FormID != nil {
		query = query.Where("form_id = ?", *filter.FormID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves assignments based on filter criteria
func (r *AffiliateFormAssignmentRepositoryImpl) ByFilter(ctx context.Context, filter models.AffiliateFormAssignmentFilter, orderBy string, limit, offset int) ([]*models.AffiliateFormAssignment, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.AffiliateFormAssignment{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.AffiliateFormAssignment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return rows, nil
}

// Count returns number of assignments matching filter
func (r *AffiliateFormAssignmentRepositoryImpl) Count(ctx context.Context, filter models.AffiliateFormAssignmentFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.AffiliateFormAssignment{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

// Exists checks if any assignment matches the filter
func (r *AffiliateFormAssignmentRepositoryImpl) Exists(ctx context.Context, filter models.AffiliateFormAssignmentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
