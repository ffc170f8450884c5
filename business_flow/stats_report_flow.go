package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/config"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
)

const fallbackWindow = "days=30"

// StatsFlow resolves the caller's scope and window and delegates to the aggregator
type StatsFlow interface {
	Summary(ctx context.Context, actor Actor, req *dto.StatsRequest) (*dto.StatsSummaryResponse, error)
	Series(ctx context.Context, actor Actor, req *dto.SeriesRequest) (*dto.SeriesResponse, error)
	Top(ctx context.Context, actor Actor, req *dto.TopRequest) (*dto.TopResponse, error)
}

// StatsFlowImpl implements StatsFlow
type StatsFlowImpl struct {
	aggregator StatsAggregator
	formRepo   repository.FormRepository
	cfg        config.StatsConfig
	now        func() time.Time
}

// NewStatsFlow creates a new stats flow
func NewStatsFlow(aggregator StatsAggregator, formRepo repository.FormRepository, cfg config.StatsConfig) StatsFlow {
	return &StatsFlowImpl{
		aggregator: aggregator,
		formRepo:   formRepo,
		cfg:        cfg,
		now:        utils.UTCNow,
	}
}

// Summary returns the combined statistics for the resolved scope and window
func (f *StatsFlowImpl) Summary(ctx context.Context, actor Actor, req *dto.StatsRequest) (*dto.StatsSummaryResponse, error) {
	if req == nil {
		req = &dto.StatsRequest{}
	}
	q, err := f.query(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	window, err := f.window(req)
	if err != nil {
		return nil, err
	}
	return f.aggregator.Summary(ctx, q, window, req.TopN)
}

// Series returns a daily or monthly series ending now; the window parameter is ignored
func (f *StatsFlowImpl) Series(ctx context.Context, actor Actor, req *dto.SeriesRequest) (*dto.SeriesResponse, error) {
	if req == nil {
		req = &dto.SeriesRequest{}
	}
	q, err := f.query(ctx, actor, &req.StatsRequest)
	if err != nil {
		return nil, err
	}

	granularity := strings.ToLower(strings.TrimSpace(req.Granularity))
	var points []dto.SeriesPoint
	switch granularity {
	case "", "daily":
		granularity = "daily"
		points, err = f.aggregator.DailySeries(ctx, q, req.Points)
	case "monthly":
		points, err = f.aggregator.MonthlySeries(ctx, q, req.Points)
	default:
		return nil, NewValidationError("granularity must be daily or monthly")
	}
	if err != nil {
		return nil, err
	}
	return &dto.SeriesResponse{Granularity: granularity, Points: points}, nil
}

// Top ranks leads in the resolved scope and window by one dimension
func (f *StatsFlowImpl) Top(ctx context.Context, actor Actor, req *dto.TopRequest) (*dto.TopResponse, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	q, err := f.query(ctx, actor, &req.StatsRequest)
	if err != nil {
		return nil, err
	}
	window, err := f.window(&req.StatsRequest)
	if err != nil {
		return nil, err
	}

	entries, err := f.aggregator.TopNBy(ctx, q.InWindow(window), TopField(req.By), req.TopN)
	if err != nil {
		return nil, err
	}
	return &dto.TopResponse{By: req.By, Entries: entries}, nil
}

// query builds the unbounded query for the scope the actor may see
func (f *StatsFlowImpl) query(ctx context.Context, actor Actor, req *dto.StatsRequest) (StatsQuery, error) {
	scope, err := f.resolveScope(ctx, actor, req)
	if err != nil {
		return StatsQuery{}, err
	}
	q := StatsQuery{Scope: scope}
	if req.Status != "" {
		status := models.LeadStatus(req.Status)
		if !status.Valid() {
			return StatsQuery{}, NewValidationError("unknown status " + req.Status)
		}
		q.Status = &status
	}
	if s := strings.TrimSpace(req.UTMSource); s != "" {
		q.UTMSource = &s
	}
	return q, nil
}

// resolveScope pins affiliates to their own scope; admins and operations pick one
func (f *StatsFlowImpl) resolveScope(ctx context.Context, actor Actor, req *dto.StatsRequest) (Scope, error) {
	switch actor.Role {
	case models.UserRoleAffiliate:
		if actor.AffiliateID == nil {
			return Scope{}, ErrPermissionDenied
		}
		if req.AffiliateID != 0 && req.AffiliateID != *actor.AffiliateID {
			return Scope{}, ErrPermissionDenied
		}
		if req.FormUUID != "" {
			return Scope{}, NewValidationError("affiliates cannot scope statistics by form")
		}
		return AffiliateScope(*actor.AffiliateID), nil
	case models.UserRoleAdmin, models.UserRoleOperations:
	default:
		return Scope{}, ErrPermissionDenied
	}

	if req.FormUUID != "" && req.AffiliateID != 0 {
		return Scope{}, NewValidationError("choose either form or affiliate_id")
	}
	if req.AffiliateID != 0 {
		return AffiliateScope(req.AffiliateID), nil
	}
	if req.FormUUID != "" {
		form, err := f.formRepo.ByUUID(ctx, req.FormUUID)
		if err != nil {
			return Scope{}, err
		}
		if form == nil {
			return Scope{}, ErrFormNotFound
		}
		return FormScope(form.ID), nil
	}
	return GlobalScope(), nil
}

func (f *StatsFlowImpl) window(req *dto.StatsRequest) (Window, error) {
	if req.From != "" || req.To != "" {
		return RangeWindow(req.From, req.To, f.cfg.MaxWindowDays)
	}
	name := utils.FirstNonEmpty(req.Window, f.cfg.DefaultWindow, fallbackWindow)
	return ParseWindow(name, f.now(), f.cfg.MaxWindowDays)
}
