package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kitsune/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepositoryImpl implements SettingRepository interface
type SettingRepositoryImpl struct {
	*BaseRepository[models.Setting, models.SettingFilter]
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &SettingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Setting, models.SettingFilter](db),
	}
}

// ByKey retrieves a setting by key
func (r *SettingRepositoryImpl) ByKey(ctx context.Context, key string) (*models.Setting, error) {
	rows, err := r.ByFilter(ctx, models.SettingFilter{Key: &key}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Upsert inserts the setting or overwrites the value of an existing key
func (r *SettingRepositoryImpl) Upsert(ctx context.Context, setting *models.Setting) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_by", "updated_at"}),
		}).Create(setting).Error
		if err != nil {
			return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
		}
		return nil
	})
}

func (r *SettingRepositoryImpl) applyFilter(query *gorm.DB, filter models.SettingFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Key != nil {
		query = query.Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: *filter.Key})
	}
	return query
}

// ByFilter retrieves settings based on filter criteria
func (r *SettingRepositoryImpl) ByFilter(ctx context.Context, filter models.SettingFilter, orderBy string, limit, offset int) ([]*models.Setting, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Setting{}), filter)
	query = paginate(query, orderBy, "id ASC", limit, offset)

	var rows []*models.Setting
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return rows, nil
}

// Count returns number of settings matching filter
func (r *SettingRepositoryImpl) Count(ctx context.Context, filter models.SettingFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Setting{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count settings: %w", err)
	}
	return count, nil
}

// Exists checks if any setting matches the filter
func (r *SettingRepositoryImpl) Exists(ctx context.Context, filter models.SettingFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
