package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kitsune/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffiliateRepositoryImpl implements AffiliateRepository interface
type AffiliateRepositoryImpl struct {
	*BaseRepository[models.Affiliate, models.AffiliateFilter]
}

// NewAffiliateRepository creates a new affiliate repository
func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &AffiliateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Affiliate, models.AffiliateFilter](db),
	}
}

// ByCode retrieves an affiliate by its referral code
func (r *AffiliateRepositoryImpl) ByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	rows, err := r.ByFilter(ctx, models.AffiliateFilter{AffiliateCode: &code}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByUserID retrieves the affiliate profile of a user
func (r *AffiliateRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.Affiliate, error) {
	rows, err := r.ByFilter(ctx, models.AffiliateFilter{UserID: &userID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByIDForUpdate loads an affiliate and holds its row lock until the surrounding transaction ends.
// Counter increments on the same row wait for that transaction.
func (r *AffiliateRepositoryImpl) ByIDForUpdate(ctx context.Context, affiliateID uint) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", affiliateID).Take(&affiliate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock affiliate %d: %w", affiliateID, err)
	}
	return &affiliate, nil
}

// ByIDs loads affiliates keyed by ID
func (r *AffiliateRepositoryImpl) ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Affiliate, error) {
	out := make(map[uint]*models.Affiliate, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*models.Affiliate
	if err := r.getDB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load affiliates: %w", err)
	}
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

// SetActive enables or disables an affiliate
func (r *AffiliateRepositoryImpl) SetActive(ctx context.Context, affiliateID uint, active bool) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Affiliate{}).Where("id = ?", affiliateID).Update("is_active", active)
		if res.Error != nil {
			return fmt.Errorf("failed to update affiliate %d: %w", affiliateID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// IncrementLeads adds one to total_leads in a single statement
func (r *AffiliateRepositoryImpl) IncrementLeads(ctx context.Context, affiliateID uint) error {
	return r.updateCounter(ctx, affiliateID, "total_leads", gorm.Expr("total_leads + 1"))
}

// AdjustConversions moves total_conversions by delta without going below zero
func (r *AffiliateRepositoryImpl) AdjustConversions(ctx context.Context, affiliateID uint, delta int) error {
	return r.updateCounter(ctx, affiliateID, "total_conversions", counterDelta("total_conversions", delta))
}

// SetCounters overwrites both counters with recomputed values
func (r *AffiliateRepositoryImpl) SetCounters(ctx context.Context, affiliateID uint, leads, conversions int64) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Affiliate{}).Where("id = ?", affiliateID).UpdateColumns(map[string]any{
			"total_leads":       leads,
			"total_conversions": conversions,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to set affiliate %d counters: %w", affiliateID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *AffiliateRepositoryImpl) updateCounter(ctx context.Context, affiliateID uint, column string, expr any) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Affiliate{}).Where("id = ?", affiliateID).UpdateColumn(column, expr)
		if res.Error != nil {
			return fmt.Errorf("failed to update affiliate %d %s: %w", affiliateID, column, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *AffiliateRepositoryImpl) applyFilter(query *gorm.DB, filter models.AffiliateFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.AffiliateCode != nil {
		query = query.Where("affiliate_code = ?", *filter.AffiliateCode)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves affiliates based on filter criteria
func (r *AffiliateRepositoryImpl) ByFilter(ctx context.Context, filter models.AffiliateFilter, orderBy string, limit, offset int) ([]*models.Affiliate, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Affiliate{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.Affiliate
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list affiliates: %w", err)
	}
	return rows, nil
}

// Count returns number of affiliates matching filter
func (r *AffiliateRepositoryImpl) Count(ctx context.Context, filter models.AffiliateFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Affiliate{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count affiliates: %w", err)
	}
	return count, nil
}

// Exists checks if any affiliate matches the filter
func (r *AffiliateRepositoryImpl) Exists(ctx context.Context, filter models.AffiliateFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
