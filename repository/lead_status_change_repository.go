package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kitsune/models"
	"gorm.io/gorm"
)

// LeadStatusChangeRepositoryImpl implements LeadStatusChangeRepository interface
type LeadStatusChangeRepositoryImpl struct {
	*BaseRepository[models.LeadStatusChange, models.LeadStatusChangeFilter]
}

// NewLeadStatusChangeRepository creates a new status change repository
func NewLeadStatusChangeRepository(db *gorm.DB) LeadStatusChangeRepository {
	return &LeadStatusChangeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LeadStatusChange, models.LeadStatusChangeFilter](db),
	}
}

// ListByLead returns the status history of a lead in the order it happened
func (r *LeadStatusChangeRepositoryImpl) ListByLead(ctx context.Context, leadID uint) ([]*models.LeadStatusChange, error) {
	return r.ByFilter(ctx, models.LeadStatusChangeFilter{LeadID: &leadID}, "id ASC", 0, 0)
}

func (r *LeadStatusChangeRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadStatusChangeFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.ChangedBy != nil {
		query = query.Where("changed_by = ?", *filter.ChangedBy)
	}
	return query
}

// ByFilter retrieves status changes based on filter criteria
func (r *LeadStatusChangeRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadStatusChangeFilter, orderBy string, limit, offset int) ([]*models.LeadStatusChange, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.LeadStatusChange{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.LeadStatusChange
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list status changes: %w", err)
	}
	return rows, nil
}

// Count returns number of status changes matching filter
func (r *LeadStatusChangeRepositoryImpl) Count(ctx context.Context, filter models.LeadStatusChangeFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.LeadStatusChange{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count status changes: %w", err)
	}
	return count, nil
}

// Exists checks if any status change matches the filter
func (r *LeadStatusChangeRepositoryImpl) Exists(ctx context.Context, filter models.LeadStatusChangeFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
