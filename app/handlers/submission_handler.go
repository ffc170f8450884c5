package handlers

import (
	"log"

	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// SubmissionHandlerInterface defines the contract for the public form endpoint
type SubmissionHandlerInterface interface {
	Submit(c fiber.Ctx) error
}

// SubmissionHandler accepts lead submissions from embedded forms
type SubmissionHandler struct {
	baseHandler
	attributionFlow businessflow.AttributionFlow
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(attributionFlow businessflow.AttributionFlow) *SubmissionHandler {
	return &SubmissionHandler{
		baseHandler:     newBaseHandler(),
		attributionFlow: attributionFlow,
	}
}

// Submit stores a lead for the form and attributes it to the referring affiliate
// @Summary Submit Form
// @Description Public endpoint used by embedded forms; unknown referral codes are stored unattributed
// @Tags Forms
// @Accept json
// @Produce json
// @Param uuid path string true "Form UUID"
// @Param request body dto.SubmitLeadRequest true "Submission payload"
// @Success 201 {object} dto.SubmitLeadResponse "Lead stored"
// @Failure 400 {object} dto.APIResponse "Validation error or inactive form"
// @Failure 404 {object} dto.APIResponse "Form not found"
// @Failure 429 {object} dto.APIResponse "Rate limited"
// @Router /api/v1/forms/{uuid}/submit [post]
func (h *SubmissionHandler) Submit(c fiber.Ctx) error {
	var req dto.SubmitLeadRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}
	req.FormUUID = c.Params("uuid")

	// Query string tracking parameters fill whatever the body left empty
	fillFromQuery(c, &req)

	ctx, cancel := h.createRequestContext(c, "/api/v1/forms/:uuid/submit")
	defer cancel()

	result, err := h.attributionFlow.SubmitLead(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleError(c, err, "Form submission")
	}
	if result.Warning != nil {
		log.Println("Lead stored with counter warning:", result.Warning)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SubmitLeadResponse{
		Status:  "success",
		Message: "Form submitted successfully",
		LeadID:  result.Lead.UUID.String(),
	})
}

func fillFromQuery(c fiber.Ctx, req *dto.SubmitLeadRequest) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = c.Query(key)
		}
	}
	fill(&req.ReferralCode, "ref")
	fill(&req.UTMSource, "utm_source")
	fill(&req.UTMMedium, "utm_medium")
	fill(&req.UTMCampaign, "utm_campaign")
	fill(&req.UTMTerm, "utm_term")
	fill(&req.UTMContent, "utm_content")
	if req.ReferrerURL == "" {
		req.ReferrerURL = c.Get("Referer")
	}
}
