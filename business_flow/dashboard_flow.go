package businessflow

import (
	"context"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
)

// DashboardFlow builds the landing view for each role
type DashboardFlow interface {
	GetDashboard(ctx context.Context, actor Actor) (*dto.DashboardResponse, error)
}

// DashboardFlowImpl implements DashboardFlow
type DashboardFlowImpl struct {
	formRepo      repository.FormRepository
	affiliateRepo repository.AffiliateRepository
	leadRepo      repository.LeadRepository
}

// NewDashboardFlow creates a new dashboard flow
func NewDashboardFlow(
	formRepo repository.FormRepository,
	affiliateRepo repository.AffiliateRepository,
	leadRepo repository.LeadRepository,
) DashboardFlow {
	return &DashboardFlowImpl{
		formRepo:      formRepo,
		affiliateRepo: affiliateRepo,
		leadRepo:      leadRepo,
	}
}

// GetDashboard dispatches on the actor's role
func (f *DashboardFlowImpl) GetDashboard(ctx context.Context, actor Actor) (*dto.DashboardResponse, error) {
	switch actor.Role {
	case models.UserRoleAdmin:
		return f.adminDashboard(ctx)
	case models.UserRoleAffiliate:
		return f.affiliateDashboard(ctx, actor)
	case models.UserRoleOperations:
		return f.operationsDashboard(ctx)
	default:
		return nil, ErrPermissionDenied
	}
}

func (f *DashboardFlowImpl) adminDashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	forms, err := f.formRepo.Count(ctx, models.FormFilter{})
	if err != nil {
		return nil, err
	}
	affiliates, err := f.affiliateRepo.Count(ctx, models.AffiliateFilter{})
	if err != nil {
		return nil, err
	}
	leads, conversions, err := f.leadTotals(ctx, models.LeadFilter{})
	if err != nil {
		return nil, err
	}
	recent, err := f.recentLeads(ctx, models.LeadFilter{}, utils.DefaultRecentLeads)
	if err != nil {
		return nil, err
	}

	return &dto.DashboardResponse{
		Role:            string(models.UserRoleAdmin),
		TotalForms:      &forms,
		TotalLeads:      &leads,
		TotalAffiliates: &affiliates,
		ConversionRate:  models.ConversionRate(leads, conversions),
		RecentLeads:     recent,
	}, nil
}

// affiliateDashboard reports the maintained counters, not a recount
func (f *DashboardFlowImpl) affiliateDashboard(ctx context.Context, actor Actor) (*dto.DashboardResponse, error) {
	if actor.AffiliateID == nil {
		return nil, ErrUserNotAffiliate
	}
	affiliate, err := f.affiliateRepo.ByID(ctx, *actor.AffiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	recent, err := f.recentLeads(ctx, models.LeadFilter{AffiliateID: &affiliate.ID}, utils.DefaultRecentLeads)
	if err != nil {
		return nil, err
	}

	item := toAffiliateItem(affiliate)
	return &dto.DashboardResponse{
		Role:           string(models.UserRoleAffiliate),
		Affiliate:      &item,
		TotalLeads:     &affiliate.TotalLeads,
		ConversionRate: affiliate.ConversionRate(),
		RecentLeads:    recent,
	}, nil
}

func (f *DashboardFlowImpl) operationsDashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	leads, conversions, err := f.leadTotals(ctx, models.LeadFilter{})
	if err != nil {
		return nil, err
	}
	pending, err := f.leadRepo.Count(ctx, models.LeadFilter{Status: utils.ToPtr(models.LeadStatusNew)})
	if err != nil {
		return nil, err
	}
	qualified, err := f.leadRepo.Count(ctx, models.LeadFilter{Status: utils.ToPtr(models.LeadStatusQualified)})
	if err != nil {
		return nil, err
	}
	recent, err := f.recentLeads(ctx, models.LeadFilter{}, utils.OperationsRecentLead)
	if err != nil {
		return nil, err
	}

	return &dto.DashboardResponse{
		Role:           string(models.UserRoleOperations),
		TotalLeads:     &leads,
		PendingLeads:   &pending,
		QualifiedLeads: &qualified,
		ConversionRate: models.ConversionRate(leads, conversions),
		RecentLeads:    recent,
	}, nil
}

func (f *DashboardFlowImpl) leadTotals(ctx context.Context, filter models.LeadFilter) (int64, int64, error) {
	leads, err := f.leadRepo.Count(ctx, filter)
	if err != nil {
		return 0, 0, err
	}
	conversions, err := f.leadRepo.CountConversions(ctx, filter)
	if err != nil {
		return 0, 0, err
	}
	return leads, conversions, nil
}

func (f *DashboardFlowImpl) recentLeads(ctx context.Context, filter models.LeadFilter, n int) ([]dto.LeadItem, error) {
	leads, err := f.leadRepo.ListWithRelations(ctx, filter, "", n, 0)
	if err != nil {
		return nil, err
	}
	items := make([]dto.LeadItem, 0, len(leads))
	for _, l := range leads {
		items = append(items, toLeadItem(l, false))
	}
	return items, nil
}
