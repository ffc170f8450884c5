package handlers

import (
	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// UserAdminHandlerInterface defines the contract for staff account administration
type UserAdminHandlerInterface interface {
	CreateStaffUser(c fiber.Ctx) error
	ListUsers(c fiber.Ctx) error
}

// UserAdminHandler manages admin and operations accounts
type UserAdminHandler struct {
	baseHandler
	userFlow businessflow.UserFlow
}

// NewUserAdminHandler creates a new user admin handler
func NewUserAdminHandler(userFlow businessflow.UserFlow) *UserAdminHandler {
	return &UserAdminHandler{
		baseHandler: newBaseHandler(),
		userFlow:    userFlow,
	}
}

// CreateStaffUser creates an admin or operations account
// @Summary Create Staff User
// @Tags Admin Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateStaffUserRequest true "User data"
// @Success 201 {object} dto.APIResponse{data=dto.UserInfo} "User created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Username or email already in use"
// @Router /api/v1/admin/users [post]
func (h *UserAdminHandler) CreateStaffUser(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.CreateStaffUserRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users")
	defer cancel()

	result, err := h.userFlow.CreateStaffUser(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Create user")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "User created successfully", result)
}

// ListUsers returns dashboard accounts
// @Summary List Users
// @Tags Admin Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "admin, operations or affiliate"
// @Success 200 {object} dto.APIResponse{data=[]dto.UserInfo} "Users retrieved"
// @Router /api/v1/admin/users [get]
func (h *UserAdminHandler) ListUsers(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users")
	defer cancel()

	result, err := h.userFlow.ListUsers(ctx, c.Query("role"))
	if err != nil {
		return h.handleError(c, err, "List users")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved successfully", result)
}
