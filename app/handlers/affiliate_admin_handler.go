package handlers

import (
	"strconv"

	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AffiliateAdminHandlerInterface defines the contract for affiliate and assignment administration
type AffiliateAdminHandlerInterface interface {
	CreateAffiliate(c fiber.Ctx) error
	ListAffiliates(c fiber.Ctx) error
	SetAffiliateActive(c fiber.Ctx) error
	GetAffiliateStats(c fiber.Ctx) error
	AssignForm(c fiber.Ctx) error
	SetAssignmentActive(c fiber.Ctx) error
	ReassignForms(c fiber.Ctx) error
	RecomputeCounters(c fiber.Ctx) error
}

// AffiliateAdminHandler manages affiliates, their form assignments and counter repair
type AffiliateAdminHandler struct {
	baseHandler
	affiliateFlow businessflow.AffiliateFlow
}

// NewAffiliateAdminHandler creates a new affiliate admin handler
func NewAffiliateAdminHandler(affiliateFlow businessflow.AffiliateFlow) *AffiliateAdminHandler {
	return &AffiliateAdminHandler{
		baseHandler:   newBaseHandler(),
		affiliateFlow: affiliateFlow,
	}
}

// CreateAffiliate creates an affiliate user and profile
// @Summary Create Affiliate
// @Tags Admin Affiliates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateAffiliateRequest true "Affiliate data"
// @Success 201 {object} dto.APIResponse{data=dto.AffiliateItem} "Affiliate created"
// @Failure 409 {object} dto.APIResponse "Code, username or email already in use"
// @Router /api/v1/admin/affiliates [post]
func (h *AffiliateAdminHandler) CreateAffiliate(c fiber.Ctx) error {
	var req dto.CreateAffiliateRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/affiliates")
	defer cancel()

	result, err := h.affiliateFlow.CreateAffiliate(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "Create affiliate")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Affiliate created successfully", result)
}

// ListAffiliates returns affiliates with their maintained counters
// @Summary List Affiliates
// @Tags Admin Affiliates
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Filter by active flag"
// @Success 200 {object} dto.APIResponse{data=[]dto.AffiliateItem} "Affiliates retrieved"
// @Router /api/v1/admin/affiliates [get]
func (h *AffiliateAdminHandler) ListAffiliates(c fiber.Ctx) error {
	var active *bool
	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid active filter", "INVALID_REQUEST", nil)
		}
		active = &v
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/affiliates")
	defer cancel()

	result, err := h.affiliateFlow.ListAffiliates(ctx, active)
	if err != nil {
		return h.handleError(c, err, "List affiliates")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Affiliates retrieved successfully", result)
}

// SetAffiliateActive enables or disables attribution to an affiliate
// @Summary Toggle Affiliate
// @Tags Admin Affiliates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Param request body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} dto.APIResponse{data=dto.AffiliateItem} "Affiliate updated"
// @Router /api/v1/admin/affiliates/{id}/active [patch]
func (h *AffiliateAdminHandler) SetAffiliateActive(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}
	var req dto.SetActiveRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/affiliates/:id/active")
	defer cancel()

	result, err := h.affiliateFlow.SetAffiliateActive(ctx, id, *req.IsActive)
	if err != nil {
		return h.handleError(c, err, "Update affiliate")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Affiliate updated successfully", result)
}

// GetAffiliateStats returns the counter view of an affiliate and its assignments
// @Summary Affiliate Stats
// @Tags Admin Affiliates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Affiliate ID"
// @Success 200 {object} dto.APIResponse{data=dto.AffiliateStatsResponse} "Stats retrieved"
// @Failure 404 {object} dto.APIResponse "Affiliate not found"
// @Router /api/v1/admin/affiliates/{id}/stats [get]
func (h *AffiliateAdminHandler) GetAffiliateStats(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/affiliates/:id/stats")
	defer cancel()

	result, err := h.affiliateFlow.GetAffiliateStats(ctx, id)
	if err != nil {
		return h.handleError(c, err, "Affiliate stats")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Affiliate stats retrieved successfully", result)
}

// AssignForm links an affiliate to a form, reactivating an earlier assignment if one exists
// @Summary Assign Form
// @Tags Admin Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AssignFormRequest true "Assignment"
// @Success 200 {object} dto.APIResponse{data=dto.AssignmentItem} "Form assigned"
// @Failure 409 {object} dto.APIResponse "Affiliate inactive"
// @Router /api/v1/admin/assignments [post]
func (h *AffiliateAdminHandler) AssignForm(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.AssignFormRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assignments")
	defer cancel()

	result, err := h.affiliateFlow.AssignForm(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Assign form")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Form assigned successfully", result)
}

// SetAssignmentActive enables or disables counting for one assignment
// @Summary Toggle Assignment
// @Tags Admin Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Assignment ID"
// @Param request body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} dto.APIResponse{data=dto.AssignmentItem} "Assignment updated"
// @Router /api/v1/admin/assignments/{id}/active [patch]
func (h *AffiliateAdminHandler) SetAssignmentActive(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}
	var req dto.SetActiveRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assignments/:id/active")
	defer cancel()

	result, err := h.affiliateFlow.SetAssignmentActive(ctx, actor, id, *req.IsActive)
	if err != nil {
		return h.handleError(c, err, "Update assignment")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Assignment updated successfully", result)
}

// ReassignForms moves active assignments from one affiliate to another
// @Summary Reassign Forms
// @Tags Admin Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ReassignFormsRequest true "Source and target affiliates"
// @Success 200 {object} dto.APIResponse{data=dto.ReassignFormsResponse} "Forms reassigned"
// @Router /api/v1/admin/assignments/reassign [post]
func (h *AffiliateAdminHandler) ReassignForms(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.ReassignFormsRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/assignments/reassign")
	defer cancel()

	result, err := h.affiliateFlow.ReassignForms(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Reassign forms")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// RecomputeCounters rebuilds every maintained counter from stored leads
// @Summary Recompute Counters
// @Tags Admin Affiliates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.RecomputeCountersResponse} "Counters checked"
// @Failure 429 {object} dto.APIResponse "Recompute already running"
// @Router /api/v1/admin/counters/recompute [post]
func (h *AffiliateAdminHandler) RecomputeCounters(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/counters/recompute")
	defer cancel()

	result, err := h.affiliateFlow.RecomputeAll(ctx)
	if err != nil {
		return h.handleError(c, err, "Recompute counters")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
