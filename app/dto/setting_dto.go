package dto

// SettingItem is one key/value setting
type SettingItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"is_default"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest upserts settings by key
type UpdateSettingsRequest struct {
	Settings []SettingUpdate `json:"settings" validate:"required,min=1,dive"`
}

// SettingUpdate is a single key/value write
type SettingUpdate struct {
	Key         string `json:"key" validate:"required,min=1,max=100"`
	Value       string `json:"value" validate:"max=10000"`
	Description string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// SettingsResponse lists every known setting, defaults included
type SettingsResponse struct {
	Items []SettingItem `json:"items"`
}
