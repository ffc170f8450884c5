package handlers

import (
	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// LeadHandlerInterface defines the contract for lead management handlers
type LeadHandlerInterface interface {
	ListLeads(c fiber.Ctx) error
	ExportLeads(c fiber.Ctx) error
	GetLead(c fiber.Ctx) error
	UpdateStatus(c fiber.Ctx) error
	UpdateNotes(c fiber.Ctx) error
	AddNote(c fiber.Ctx) error
	ListNotes(c fiber.Ctx) error
}

// LeadHandler handles lead listing, export and pipeline updates
type LeadHandler struct {
	baseHandler
	leadFlow   businessflow.LeadFlow
	exportFlow businessflow.ExportFlow
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadFlow businessflow.LeadFlow, exportFlow businessflow.ExportFlow) *LeadHandler {
	return &LeadHandler{
		baseHandler: newBaseHandler(),
		leadFlow:    leadFlow,
		exportFlow:  exportFlow,
	}
}

// ListLeads returns a page of leads visible to the caller
// @Summary List Leads
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param form query string false "Form UUID"
// @Param status query string false "Pipeline status"
// @Param utm_source query string false "UTM source"
// @Param search query string false "Email search"
// @Param window query string false "Time window"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListLeadsResponse} "Leads retrieved"
// @Router /api/v1/leads [get]
func (h *LeadHandler) ListLeads(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.ListLeadsRequest
	if ok, err := h.bindQuery(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads")
	defer cancel()

	result, err := h.leadFlow.ListLeads(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "List leads")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}

// ExportLeads streams the filtered lead listing as an Excel workbook
// @Summary Export Leads
// @Tags Leads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "Excel file"
// @Router /api/v1/leads/export [get]
func (h *LeadHandler) ExportLeads(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.ListLeadsRequest
	if ok, err := h.bindQuery(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/export")
	defer cancel()

	filename, data, err := h.exportFlow.ExportLeads(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Export leads")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GetLead returns one lead with its submitted payload
// @Summary Get Lead
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Lead UUID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadItem} "Lead retrieved"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/{uuid} [get]
func (h *LeadHandler) GetLead(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:uuid")
	defer cancel()

	result, err := h.leadFlow.GetLead(ctx, actor, c.Params("uuid"))
	if err != nil {
		return h.handleError(c, err, "Get lead")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead retrieved successfully", result)
}

// UpdateStatus moves a lead to another pipeline status and adjusts conversion counters
// @Summary Update Lead Status
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Lead UUID"
// @Param request body dto.UpdateLeadStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateLeadStatusResponse} "Status updated"
// @Failure 400 {object} dto.APIResponse "Invalid status"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/{uuid}/status [patch]
func (h *LeadHandler) UpdateStatus(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.UpdateLeadStatusRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:uuid/status")
	defer cancel()

	result, err := h.leadFlow.UpdateStatus(ctx, actor, c.Params("uuid"), &req, h.metadata(c))
	if err != nil {
		return h.handleError(c, err, "Update lead status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// UpdateNotes replaces the free-text notes of a lead
// @Summary Update Lead Notes
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Lead UUID"
// @Param request body dto.UpdateLeadNotesRequest true "Notes"
// @Success 200 {object} dto.APIResponse{data=dto.LeadItem} "Notes updated"
// @Router /api/v1/leads/{uuid}/notes [patch]
func (h *LeadHandler) UpdateNotes(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.UpdateLeadNotesRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:uuid/notes")
	defer cancel()

	result, err := h.leadFlow.UpdateNotes(ctx, actor, c.Params("uuid"), &req)
	if err != nil {
		return h.handleError(c, err, "Update lead notes")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notes updated successfully", result)
}

// AddNote appends a note entry to a lead
// @Summary Add Lead Note
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Lead UUID"
// @Param request body dto.AddLeadNoteRequest true "Note"
// @Success 201 {object} dto.APIResponse{data=dto.LeadNoteItem} "Note added"
// @Router /api/v1/leads/{uuid}/notes/entries [post]
func (h *LeadHandler) AddNote(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.AddLeadNoteRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:uuid/notes/entries")
	defer cancel()

	result, err := h.leadFlow.AddNote(ctx, actor, c.Params("uuid"), &req)
	if err != nil {
		return h.handleError(c, err, "Add lead note")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Note added successfully", result)
}

// ListNotes returns every note entry of a lead, oldest first
// @Summary List Lead Notes
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Lead UUID"
// @Success 200 {object} dto.APIResponse{data=[]dto.LeadNoteItem} "Notes retrieved"
// @Router /api/v1/leads/{uuid}/notes/entries [get]
func (h *LeadHandler) ListNotes(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:uuid/notes/entries")
	defer cancel()

	result, err := h.leadFlow.ListNotes(ctx, actor, c.Params("uuid"))
	if err != nil {
		return h.handleError(c, err, "List lead notes")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notes retrieved successfully", result)
}
