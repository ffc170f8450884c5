package handlers

import (
	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/gofiber/fiber/v3"
)

// StatsHandlerInterface defines the contract for statistics endpoints
type StatsHandlerInterface interface {
	Summary(c fiber.Ctx) error
	Series(c fiber.Ctx) error
	Top(c fiber.Ctx) error
}

// StatsHandler exposes lead statistics scoped to the caller
type StatsHandler struct {
	baseHandler
	statsFlow businessflow.StatsFlow
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsFlow businessflow.StatsFlow) *StatsHandler {
	return &StatsHandler{
		baseHandler: newBaseHandler(),
		statsFlow:   statsFlow,
	}
}

// Summary returns totals, growth, funnel and top rankings for a window
// @Summary Stats Summary
// @Description Affiliates only ever see their own leads; admins may narrow by form or affiliate
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param window query string false "7d, 30d, 90d, 365d or all"
// @Param from query string false "Start date (YYYY-MM-DD), overrides window"
// @Param to query string false "End date (YYYY-MM-DD), inclusive"
// @Param form query string false "Form UUID"
// @Param affiliate_id query int false "Affiliate ID (admin only)"
// @Success 200 {object} dto.APIResponse{data=dto.StatsSummaryResponse} "Stats retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid window"
// @Failure 403 {object} dto.APIResponse "Out of scope"
// @Router /api/v1/stats [get]
func (h *StatsHandler) Summary(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.StatsRequest
	if ok, err := h.bindQuery(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/stats")
	defer cancel()

	result, err := h.statsFlow.Summary(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Stats summary")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Stats retrieved successfully", result)
}

// Series returns lead and conversion counts per day or month
// @Summary Stats Series
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param granularity query string false "daily or monthly"
// @Param points query int false "Number of buckets"
// @Success 200 {object} dto.APIResponse{data=dto.SeriesResponse} "Series retrieved"
// @Router /api/v1/stats/series [get]
func (h *StatsHandler) Series(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.SeriesRequest
	if ok, err := h.bindQuery(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/stats/series")
	defer cancel()

	result, err := h.statsFlow.Series(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Stats series")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Series retrieved successfully", result)
}

// Top ranks UTM sources, forms or affiliate codes by lead count
// @Summary Stats Top
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param by query string true "utm_source, form or affiliate_code"
// @Param top query int false "Number of entries"
// @Success 200 {object} dto.APIResponse{data=dto.TopResponse} "Ranking retrieved"
// @Router /api/v1/stats/top [get]
func (h *StatsHandler) Top(c fiber.Ctx) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	var req dto.TopRequest
	if ok, err := h.bindQuery(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/stats/top")
	defer cancel()

	result, err := h.statsFlow.Top(ctx, actor, &req)
	if err != nil {
		return h.handleError(c, err, "Stats ranking")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Ranking retrieved successfully", result)
}
