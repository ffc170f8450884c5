package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
	"gorm.io/gorm"
)

// FormRepositoryImpl implements FormRepository interface
type FormRepositoryImpl struct {
	*BaseRepository[models.Form, models.FormFilter]
}

// NewFormRepository creates a new form repository
func NewFormRepository(db *gorm.DB) FormRepository {
	return &FormRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Form, models.FormFilter](db),
	}
}

// ByUUID retrieves a form by its public identifier; malformed identifiers are treated as missing
func (r *FormRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Form, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, nil
	}
	rows, err := r.ByFilter(ctx, models.FormFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByIDs loads forms keyed by ID
func (r *FormRepositoryImpl) ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Form, error) {
	out := make(map[uint]*models.Form, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*models.Form
	if err := r.getDB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load forms: %w", err)
	}
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

// SetActive enables or disables submissions; forms are never hard-deleted
func (r *FormRepositoryImpl) SetActive(ctx context.Context, formID uint, active bool) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Form{}).Where("id = ?", formID).Update("is_active", active)
		if res.Error != nil {
			return fmt.Errorf("failed to update form %d: %w", formID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *FormRepositoryImpl) applyFilter(query *gorm.DB, filter models.FormFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.NameLike != nil && *filter.NameLike != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(*filter.NameLike)+"%")
	}
	return query
}

// ByFilter retrieves forms based on filter criteria
func (r *FormRepositoryImpl) ByFilter(ctx context.Context, filter models.FormFilter, orderBy string, limit, offset int) ([]*models.Form, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Form{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.Form
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return rows, nil
}

// Count returns number of forms matching filter
func (r *FormRepositoryImpl) Count(ctx context.Context, filter models.FormFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Form{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count forms: %w", err)
	}
	return count, nil
}

// Exists checks if any form matches the filter
func (r *FormRepositoryImpl) Exists(ctx context.Context, filter models.FormFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
