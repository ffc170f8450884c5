package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kitsune/models"
	"gorm.io/gorm"
)

// LeadNoteRepositoryImpl implements LeadNoteRepository interface
type LeadNoteRepositoryImpl struct {
	*BaseRepository[models.LeadNote, models.LeadNoteFilter]
}

// NewLeadNoteRepository creates a new lead note repository
func NewLeadNoteRepository(db *gorm.DB) LeadNoteRepository {
	return &LeadNoteRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LeadNote, models.LeadNoteFilter](db),
	}
}

// ListByLead returns the notes of a lead, oldest first, with authors preloaded
func (r *LeadNoteRepositoryImpl) ListByLead(ctx context.Context, leadID uint) ([]*models.LeadNote, error) {
	var rows []*models.LeadNote
	err := r.getDB(ctx).
		Preload("Author").
		Where("lead_id = ?", leadID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes for lead %d: %w", leadID, err)
	}
	return rows, nil
}

func (r *LeadNoteRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadNoteFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.AuthorID != nil {
		query = query.Where("author_id = ?", *filter.AuthorID)
	}
	return query
}

// ByFilter retrieves lead notes based on filter criteria
func (r *LeadNoteRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadNoteFilter, orderBy string, limit, offset int) ([]*models.LeadNote, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.LeadNote{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.LeadNote
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list lead notes: %w", err)
	}
	return rows, nil
}

// Count returns number of lead notes matching filter
func (r *LeadNoteRepositoryImpl) Count(ctx context.Context, filter models.LeadNoteFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.LeadNote{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count lead notes: %w", err)
	}
	return count, nil
}

// Exists checks if any lead note matches the filter
func (r *LeadNoteRepositoryImpl) Exists(ctx context.Context, filter models.LeadNoteFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
