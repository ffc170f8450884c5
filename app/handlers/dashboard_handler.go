package handlers

import (
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// DashboardHandlerInterface defines the contract for the role-shaped dashboard
type DashboardHandlerInterface interface {
	GetDashboard(c fiber.Ctx) error
}

// DashboardHandler serves the landing view for each role
type DashboardHandler struct {
	baseHandler
	dashboardFlow businessflow.DashboardFlow
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardFlow businessflow.DashboardFlow) *DashboardHandler {
	return &DashboardHandler{
		baseHandler:   newBaseHandler(),
		dashboardFlow: dashboardFlow,
	}
}

// GetDashboard returns the dashboard for the caller's role
// @Summary Dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.DashboardResponse} "Dashboard retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) GetDashboard(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dashboard")
	defer cancel()

	result, err := h.dashboardFlow.GetDashboard(ctx, actor)
	if err != nil {
		return h.handleError(c, err, "Dashboard")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved successfully", result)
}
