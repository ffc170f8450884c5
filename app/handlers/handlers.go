// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/app/middleware"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler holds what every handler needs for binding and responding
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: validator.New()}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext detaches the flow from the fiber context, which is recycled after the handler returns
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}

func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	m := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	m.ReferrerURL = c.Get("Referer")
	m.RequestID = requestid.FromContext(c)
	return m
}

// bindJSON decodes and validates the body; a non-nil error has already been written to the response
func (h *baseHandler) bindJSON(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	return h.check(c, req)
}

func (h *baseHandler) bindQuery(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().Query(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	return h.check(c, req)
}

func (h *baseHandler) check(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}
		messages := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			messages = append(messages, getValidationErrorMessage(fe))
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}
	return true, nil
}

// actor builds the caller identity from the validated token claims
func (h *baseHandler) actor(c fiber.Ctx) (businessflow.Actor, bool, error) {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok || claims.UserID == 0 {
		return businessflow.Actor{}, false, h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}
	return businessflow.Actor{
		UserID:      claims.UserID,
		Role:        models.UserRole(claims.Role),
		AffiliateID: claims.AffiliateID,
	}, true, nil
}

func (h *baseHandler) idParam(c fiber.Ctx, name string) (uint, bool, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false, h.ErrorResponse(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid %s", name), "INVALID_ID", nil)
	}
	return uint(id), true, nil
}

// handleError maps business errors onto HTTP statuses; anything unrecognized is logged as a 500
func (h *baseHandler) handleError(c fiber.Ctx, err error, operation string) error {
	var be *businessflow.BusinessError
	switch {
	case businessflow.IsValidation(err):
		msg := "Validation failed"
		if errors.As(err, &be) {
			msg = be.Message
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, msg, "VALIDATION_ERROR", nil)
	case businessflow.IsFormNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Form not found", "FORM_NOT_FOUND", nil)
	case businessflow.IsLeadNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
	case businessflow.IsAffiliateNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Affiliate not found", "AFFILIATE_NOT_FOUND", nil)
	case businessflow.IsNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Resource not found", "NOT_FOUND", nil)
	case businessflow.IsFormInactive(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Form is inactive", "FORM_INACTIVE", nil)
	case businessflow.IsPermissionDenied(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "Permission denied", "PERMISSION_DENIED", nil)
	case businessflow.IsInvalidCredentials(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid username or password", "INVALID_CREDENTIALS", nil)
	case businessflow.IsAccountInactive(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account is inactive", "ACCOUNT_INACTIVE", nil)
	case errors.Is(err, businessflow.ErrAffiliateInactive):
		return h.ErrorResponse(c, fiber.StatusConflict, "Affiliate is inactive", "AFFILIATE_INACTIVE", nil)
	case errors.Is(err, businessflow.ErrUserNotAffiliate):
		return h.ErrorResponse(c, fiber.StatusForbidden, "User is not linked to an affiliate", "USER_NOT_AFFILIATE", nil)
	case businessflow.IsAffiliateCodeTaken(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Affiliate code already in use", "AFFILIATE_CODE_TAKEN", nil)
	case businessflow.IsUsernameTaken(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Username or email already in use", "USERNAME_TAKEN", nil)
	case businessflow.IsLeadStatusConflict(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Lead status changed meanwhile, reload and retry", "LEAD_STATUS_CONFLICT", nil)
	case businessflow.IsRecomputeInProgress(err):
		return h.ErrorResponse(c, fiber.StatusTooManyRequests, "Counter recompute already running", "RECOMPUTE_IN_PROGRESS", nil)
	}

	log.Printf("%s failed: %v", operation, err)
	code := "INTERNAL_ERROR"
	if errors.As(err, &be) {
		code = be.Code
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, operation+" failed", code, nil)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "uuid":
		return err.Field() + " must be a UUID"
	case "url":
		return err.Field() + " must be a URL"
	case "alphanum":
		return err.Field() + " must contain only letters and digits"
	case "nefield":
		return err.Field() + " must differ from " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}
