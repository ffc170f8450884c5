package handlers

import (
	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// FormAdminHandlerInterface defines the contract for form administration
type FormAdminHandlerInterface interface {
	CreateForm(c fiber.Ctx) error
	ListForms(c fiber.Ctx) error
	GetForm(c fiber.Ctx) error
	SetFormActive(c fiber.Ctx) error
}

// FormAdminHandler manages form definitions
type FormAdminHandler struct {
	baseHandler
	formFlow businessflow.FormFlow
}

// NewFormAdminHandler creates a new form admin handler
func NewFormAdminHandler(formFlow businessflow.FormFlow) *FormAdminHandler {
	return &FormAdminHandler{
		baseHandler: newBaseHandler(),
		formFlow:    formFlow,
	}
}

// CreateForm defines a new form and returns its embed code
// @Summary Create Form
// @Tags Admin Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateFormRequest true "Form definition"
// @Success 201 {object} dto.APIResponse{data=dto.FormItem} "Form created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/admin/forms [post]
func (h *FormAdminHandler) CreateForm(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.CreateFormRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/forms")
	defer cancel()

	result, err := h.formFlow.CreateForm(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Create form")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Form created successfully", result)
}

// ListForms returns forms with their lead totals
// @Summary List Forms
// @Tags Admin Forms
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Name search"
// @Success 200 {object} dto.APIResponse{data=dto.ListFormsResponse} "Forms retrieved"
// @Router /api/v1/admin/forms [get]
func (h *FormAdminHandler) ListForms(c fiber.Ctx) error {
	var req dto.ListFormsRequest
	if ok, err := h.bindQuery(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/forms")
	defer cancel()

	result, err := h.formFlow.ListForms(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "List forms")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Forms retrieved successfully", result)
}

// GetForm returns one form definition
// @Summary Get Form
// @Tags Admin Forms
// @Produce json
// @Security BearerAuth
// @Param id path int true "Form ID"
// @Success 200 {object} dto.APIResponse{data=dto.FormItem} "Form retrieved"
// @Failure 404 {object} dto.APIResponse "Form not found"
// @Router /api/v1/admin/forms/{id} [get]
func (h *FormAdminHandler) GetForm(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/forms/:id")
	defer cancel()

	result, err := h.formFlow.GetForm(ctx, id)
	if err != nil {
		return h.handleError(c, err, "Get form")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Form retrieved successfully", result)
}

// SetFormActive enables or disables submissions for a form
// @Summary Toggle Form
// @Tags Admin Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Form ID"
// @Param request body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} dto.APIResponse{data=dto.FormItem} "Form updated"
// @Router /api/v1/admin/forms/{id}/active [patch]
func (h *FormAdminHandler) SetFormActive(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}
	var req dto.SetActiveRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/forms/:id/active")
	defer cancel()

	result, err := h.formFlow.SetFormActive(ctx, id, *req.IsActive)
	if err != nil {
		return h.handleError(c, err, "Update form")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Form updated successfully", result)
}
