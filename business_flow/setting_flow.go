package businessflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	"gorm.io/gorm"
)

// boolean settings only accept values strconv.ParseBool understands
var booleanSettings = map[string]bool{
	models.SettingEmailNotifications: true,
	models.SettingAutoAssignLeads:    true,
}

// SettingFlow reads and writes admin settings
type SettingFlow interface {
	GetSettings(ctx context.Context) (*dto.SettingsResponse, error)
	UpdateSettings(ctx context.Context, actor Actor, req *dto.UpdateSettingsRequest) (*dto.SettingsResponse, error)
}

// SettingFlowImpl implements SettingFlow
type SettingFlowImpl struct {
	settingRepo repository.SettingRepository
	db          *gorm.DB
}

// NewSettingFlow creates a new setting flow
func NewSettingFlow(settingRepo repository.SettingRepository, db *gorm.DB) SettingFlow {
	return &SettingFlowImpl{settingRepo: settingRepo, db: db}
}

// GetSettings returns stored settings plus defaults for keys never written, sorted by key
func (f *SettingFlowImpl) GetSettings(ctx context.Context) (*dto.SettingsResponse, error) {
	stored, err := f.settingRepo.ByFilter(ctx, models.SettingFilter{}, "key ASC", 0, 0)
	if err != nil {
		return nil, err
	}

	items := make([]dto.SettingItem, 0, len(stored)+len(models.DefaultSettings()))
	seen := make(map[string]bool, len(stored))
	for _, s := range stored {
		seen[s.Key] = true
		items = append(items, dto.SettingItem{
			Key:         s.Key,
			Value:       s.Value,
			Description: s.Description,
			UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
		})
	}
	for key, value := range models.DefaultSettings() {
		if seen[key] {
			continue
		}
		items = append(items, dto.SettingItem{Key: key, Value: value, IsDefault: true})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return &dto.SettingsResponse{Items: items}, nil
}

// UpdateSettings upserts every entry or none
func (f *SettingFlowImpl) UpdateSettings(ctx context.Context, actor Actor, req *dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	if req == nil || len(req.Settings) == 0 {
		return nil, NewValidationError("at least one setting is required")
	}
	if actor.Role != models.UserRoleAdmin {
		return nil, ErrPermissionDenied
	}

	rows := make([]*models.Setting, 0, len(req.Settings))
	for _, s := range req.Settings {
		key := strings.TrimSpace(s.Key)
		if key == "" {
			return nil, NewValidationError("setting key is required")
		}
		value := strings.TrimSpace(s.Value)
		if booleanSettings[key] {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, NewValidationError(fmt.Sprintf("%s must be true or false", key))
			}
			value = strconv.FormatBool(b)
		}
		rows = append(rows, &models.Setting{
			Key:         key,
			Value:       value,
			Description: s.Description,
			UpdatedBy:   utils.ToPtr(actor.UserID),
		})
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		for _, row := range rows {
			if err := f.settingRepo.Upsert(txCtx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("SETTINGS_UPDATE_FAILED", "Failed to update settings", err)
	}
	return f.GetSettings(ctx)
}
