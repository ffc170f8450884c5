package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
	"gorm.io/gorm"
)

// Columns leads may be grouped by
const (
	LeadColumnUTMSource   = "utm_source"
	LeadColumnFormID      = "form_id"
	LeadColumnAffiliateID = "affiliate_id"
)

// LeadRepositoryImpl implements LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

// ByUUID retrieves a lead by its public identifier; malformed identifiers are treated as missing
func (r *LeadRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Lead, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, nil
	}
	rows, err := r.ListWithRelations(ctx, models.LeadFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateStatus moves a lead from one pipeline status to another.
// The write only applies while the stored status still equals from; false means it did not.
func (r *LeadRepositoryImpl) UpdateStatus(ctx context.Context, leadID uint, from, to models.LeadStatus) (bool, error) {
	if !to.Valid() {
		return false, fmt.Errorf("invalid lead status %q", to)
	}
	var applied bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Lead{}).
			Where("id = ? AND status = ?", leadID, from).
			UpdateColumns(map[string]any{"status": to, "updated_at": utils.UTCNow()})
		if res.Error != nil {
			return fmt.Errorf("failed to update lead %d status: %w", leadID, res.Error)
		}
		applied = res.RowsAffected == 1
		return nil
	})
	return applied, err
}

// UpdateNotes replaces the free-text notes field of a lead
func (r *LeadRepositoryImpl) UpdateNotes(ctx context.Context, leadID uint, notes string) error {
	return r.updateColumns(ctx, leadID, map[string]any{"notes": notes, "updated_at": utils.UTCNow()})
}

func (r *LeadRepositoryImpl) updateColumns(ctx context.Context, leadID uint, updates map[string]any) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Lead{}).Where("id = ?", leadID).UpdateColumns(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update lead %d: %w", leadID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CountConversions counts leads matching filter whose status is a conversion
func (r *LeadRepositoryImpl) CountConversions(ctx context.Context, filter models.LeadFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter)
	query = query.Where("status IN ?", models.ConversionStatuses())

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return count, nil
}

// BucketUnit is the calendar period leads are grouped into
type BucketUnit string

const (
	BucketDay   BucketUnit = "day"
	BucketMonth BucketUnit = "month"
)

// bucketExpr renders created_at as a UTC period key (YYYY-MM-DD or YYYY-MM) in the dialect's SQL
func bucketExpr(dialect string, unit BucketUnit) (string, error) {
	var pgFormat, sqliteFormat string
	switch unit {
	case BucketDay:
		pgFormat, sqliteFormat = "YYYY-MM-DD", "%Y-%m-%d"
	case BucketMonth:
		pgFormat, sqliteFormat = "YYYY-MM", "%Y-%m"
	default:
		return "", fmt.Errorf("unknown bucket unit %q", unit)
	}
	if dialect == "postgres" {
		return fmt.Sprintf("to_char(leads.created_at AT TIME ZONE 'UTC', '%s')", pgFormat), nil
	}
	return fmt.Sprintf("strftime('%s', leads.created_at)", sqliteFormat), nil
}

// CountByBucket counts leads matching filter per calendar period, oldest period first.
// Periods without leads are absent from the result.
func (r *LeadRepositoryImpl) CountByBucket(ctx context.Context, filter models.LeadFilter, unit BucketUnit) ([]models.GroupCount, error) {
	db := r.getDB(ctx)
	expr, err := bucketExpr(db.Dialector.Name(), unit)
	if err != nil {
		return nil, err
	}

	query := r.applyFilter(db.Model(&models.Lead{}), filter).
		Select(expr + " AS group_key, COUNT(*) AS total").
		Group("group_key").
		Order("group_key ASC")

	var rows []groupCountRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads by %s: %w", unit, err)
	}

	out := make([]models.GroupCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.GroupCount{Key: row.GroupKey.String, Count: row.Total})
	}
	return out, nil
}

type groupCountRow struct {
	GroupKey sql.NullString `gorm:"column:group_key"`
	Total    int64          `gorm:"column:total"`
}

// GroupCountBy counts leads matching filter per distinct value of column.
// Rows where the column is NULL are skipped.
func (r *LeadRepositoryImpl) GroupCountBy(ctx context.Context, filter models.LeadFilter, column string) ([]models.GroupCount, error) {
	switch column {
	case LeadColumnUTMSource, LeadColumnFormID, LeadColumnAffiliateID:
	default:
		return nil, fmt.Errorf("cannot group leads by %q", column)
	}

	query := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter).
		Select(fmt.Sprintf("%s AS group_key, COUNT(*) AS total", column)).
		Where(fmt.Sprintf("%s IS NOT NULL", column)).
		Group(column)

	var rows []groupCountRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group leads by %s: %w", column, err)
	}

	out := make([]models.GroupCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.GroupCount{Key: row.GroupKey.String, Count: row.Total})
	}
	return out, nil
}

// CountByPair recounts the leads and conversions attributed to an affiliate on one form
func (r *LeadRepositoryImpl) CountByPair(ctx context.Context, affiliateID, formID uint) (int64, int64, error) {
	filter := models.LeadFilter{AffiliateID: &affiliateID, FormID: &formID}
	leads, err := r.Count(ctx, filter)
	if err != nil {
		return 0, 0, err
	}
	conversions, err := r.CountConversions(ctx, filter)
	if err != nil {
		return 0, 0, err
	}
	return leads, conversions, nil
}

// ListWithRelations is ByFilter with the form and affiliate preloaded
func (r *LeadRepositoryImpl) ListWithRelations(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter).
		Preload("Form").
		Preload("Affiliate")
	query = paginate(query, orderBy, "created_at DESC, id DESC", limit, offset)

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return rows, nil
}

func (r *LeadRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("leads.id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("leads.uuid = ?", *filter.UUID)
	}
	if filter.FormID != nil {
		query = query.Where("leads.form_id = ?", *filter.FormID)
	}
	if filter.AffiliateID != nil {
		query = query.Where("leads.affiliate_id = ?", *filter.AffiliateID)
	}
	if filter.Status != nil {
		query = query.Where("leads.status = ?", *filter.Status)
	}
	if len(filter.StatusIn) > 0 {
		query = query.Where("leads.status IN ?", filter.StatusIn)
	}
	if filter.UTMSource != nil {
		query = query.Where("leads.utm_source = ?", *filter.UTMSource)
	}
	if filter.EmailLike != nil && *filter.EmailLike != "" {
		query = query.Where("LOWER(leads.email) LIKE ?", "%"+strings.ToLower(*filter.EmailLike)+"%")
	}
	if filter.CreatedAfter != nil {
		query = query.Where("leads.created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("leads.created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves leads based on filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter)
	query = paginate(query, orderBy, "created_at DESC, id DESC", limit, offset)

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return rows, nil
}

// Count returns number of leads matching filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

// Exists checks if any lead matches the filter
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
