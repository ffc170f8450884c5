package handlers

import (
	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// SettingHandlerInterface defines the contract for settings administration
type SettingHandlerInterface interface {
	GetSettings(c fiber.Ctx) error
	UpdateSettings(c fiber.Ctx) error
}

// SettingHandler reads and writes key/value settings
type SettingHandler struct {
	baseHandler
	settingFlow businessflow.SettingFlow
}

// NewSettingHandler creates a new setting handler
func NewSettingHandler(settingFlow businessflow.SettingFlow) *SettingHandler {
	return &SettingHandler{
		baseHandler: newBaseHandler(),
		settingFlow: settingFlow,
	}
}

// GetSettings lists every known setting with defaults filled in
// @Summary Get Settings
// @Tags Admin Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SettingsResponse} "Settings retrieved"
// @Router /api/v1/admin/settings [get]
func (h *SettingHandler) GetSettings(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/settings")
	defer cancel()

	result, err := h.settingFlow.GetSettings(ctx)
	if err != nil {
		return h.handleError(c, err, "Get settings")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings retrieved successfully", result)
}

// UpdateSettings upserts settings by key
// @Summary Update Settings
// @Tags Admin Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateSettingsRequest true "Settings"
// @Success 200 {object} dto.APIResponse{data=dto.SettingsResponse} "Settings updated"
// @Router /api/v1/admin/settings [put]
func (h *SettingHandler) UpdateSettings(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.UpdateSettingsRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/settings")
	defer cancel()

	result, err := h.settingFlow.UpdateSettings(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Update settings")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings updated successfully", result)
}
