package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const recomputeLockName = "counters"

// AffiliateFlow handles affiliate accounts, form assignments and counter repair
type AffiliateFlow interface {
	CreateAffiliate(ctx context.Context, req *dto.CreateAffiliateRequest) (*dto.AffiliateItem, error)
	SetAffiliateActive(ctx context.Context, affiliateID uint, active bool) (*dto.AffiliateItem, error)
	ListAffiliates(ctx context.Context, active *bool) ([]dto.AffiliateItem, error)
	GetAffiliateStats(ctx context.Context, affiliateID uint) (*dto.AffiliateStatsResponse, error)
	AssignForm(ctx context.Context, actor Actor, req *dto.AssignFormRequest) (*dto.AssignmentItem, error)
	SetAssignmentActive(ctx context.Context, actor Actor, assignmentID uint, active bool) (*dto.AssignmentItem, error)
	ReassignForms(ctx context.Context, actor Actor, req *dto.ReassignFormsRequest) (*dto.ReassignFormsResponse, error)
	RecomputeAll(ctx context.Context) (*dto.RecomputeCountersResponse, error)
}

// AffiliateFlowImpl implements AffiliateFlow
type AffiliateFlowImpl struct {
	userRepo       repository.UserRepository
	affiliateRepo  repository.AffiliateRepository
	assignmentRepo repository.AffiliateFormAssignmentRepository
	formRepo       repository.FormRepository
	counters       CounterMaintainer
	locker         Locker
	db             *gorm.DB
	bcryptCost     int
}

// NewAffiliateFlow creates a new affiliate flow; locker may be nil for a process-local lock
func NewAffiliateFlow(
	userRepo repository.UserRepository,
	affiliateRepo repository.AffiliateRepository,
	assignmentRepo repository.AffiliateFormAssignmentRepository,
	formRepo repository.FormRepository,
	counters CounterMaintainer,
	locker Locker,
	db *gorm.DB,
	bcryptCost int,
) AffiliateFlow {
	if locker == nil {
		locker = NewLocker(nil, "", 0)
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AffiliateFlowImpl{
		userRepo:       userRepo,
		affiliateRepo:  affiliateRepo,
		assignmentRepo: assignmentRepo,
		formRepo:       formRepo,
		counters:       counters,
		locker:         locker,
		db:             db,
		bcryptCost:     bcryptCost,
	}
}

// CreateAffiliate creates the login account and the affiliate profile together
func (f *AffiliateFlowImpl) CreateAffiliate(ctx context.Context, req *dto.CreateAffiliateRequest) (*dto.AffiliateItem, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	code := strings.TrimSpace(req.AffiliateCode)
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if code == "" || username == "" || email == "" || req.Password == "" {
		return nil, NewValidationError("username, email, password and affiliate_code are required")
	}

	existing, err := f.affiliateRepo.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAffiliateCodeTaken
	}
	taken, err := f.userRepo.Exists(ctx, models.UserFilter{Username: &username})
	if err != nil {
		return nil, err
	}
	if !taken {
		taken, err = f.userRepo.Exists(ctx, models.UserFilter{Email: &email})
		if err != nil {
			return nil, err
		}
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.bcryptCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.UserRoleAffiliate,
		IsActive:     utils.ToPtr(true),
	}
	affiliate := &models.Affiliate{
		AffiliateCode: code,
		CompanyName:   req.CompanyName,
		Website:       req.Website,
		IsActive:      utils.ToPtr(true),
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.userRepo.Save(txCtx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrUsernameTaken
			}
			return err
		}
		affiliate.UserID = user.ID
		if err := f.affiliateRepo.Save(txCtx, affiliate); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAffiliateCodeTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		if IsUsernameTaken(err) || IsAffiliateCodeTaken(err) {
			return nil, err
		}
		return nil, NewBusinessError("AFFILIATE_CREATE_FAILED", "Failed to create affiliate", err)
	}
	affiliate.User = user

	logEvent("info", "affiliate_created", map[string]any{
		"affiliate_id":   affiliate.ID,
		"affiliate_code": code,
		"user_id":        user.ID,
	})
	item := toAffiliateItem(affiliate)
	return &item, nil
}

// SetAffiliateActive toggles an affiliate; inactive codes stop attributing new leads
func (f *AffiliateFlowImpl) SetAffiliateActive(ctx context.Context, affiliateID uint, active bool) (*dto.AffiliateItem, error) {
	affiliate, err := f.affiliateRepo.ByID(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	if err := f.affiliateRepo.SetActive(ctx, affiliateID, active); err != nil {
		return nil, NewBusinessError("AFFILIATE_UPDATE_FAILED", "Failed to update affiliate", err)
	}
	affiliate.IsActive = utils.ToPtr(active)
	item := toAffiliateItem(affiliate)
	return &item, nil
}

// ListAffiliates returns affiliates ordered by code
func (f *AffiliateFlowImpl) ListAffiliates(ctx context.Context, active *bool) ([]dto.AffiliateItem, error) {
	affiliates, err := f.affiliateRepo.ByFilter(ctx, models.AffiliateFilter{IsActive: active}, "affiliate_code ASC", 0, 0)
	if err != nil {
		return nil, err
	}
	items := make([]dto.AffiliateItem, 0, len(affiliates))
	for _, a := range affiliates {
		items = append(items, toAffiliateItem(a))
	}
	return items, nil
}

// GetAffiliateStats returns the maintained counters of an affiliate and its assignments
func (f *AffiliateFlowImpl) GetAffiliateStats(ctx context.Context, affiliateID uint) (*dto.AffiliateStatsResponse, error) {
	affiliate, err := f.affiliateRepo.ByID(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}

	assignments, err := f.assignmentRepo.ByFilter(ctx, models.AffiliateFormAssignmentFilter{AffiliateID: &affiliateID}, "", 0, 0)
	if err != nil {
		return nil, err
	}
	items, err := f.assignmentItems(ctx, assignments)
	if err != nil {
		return nil, err
	}
	return &dto.AffiliateStatsResponse{
		Affiliate:   toAffiliateItem(affiliate),
		Assignments: items,
	}, nil
}

// AssignForm links an affiliate to a form. Assigning an existing pair reactivates it.
// The assignment counters are rebuilt from the pair's leads afterwards.
func (f *AffiliateFlowImpl) AssignForm(ctx context.Context, actor Actor, req *dto.AssignFormRequest) (*dto.AssignmentItem, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	var assignment *models.AffiliateFormAssignment
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		assignment, err = f.assign(txCtx, actor, req.AffiliateID, req.FormID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f.recomputeAssignment(ctx, assignment.ID)
}

// SetAssignmentActive toggles an assignment; its counters keep following the pair's leads either way
func (f *AffiliateFlowImpl) SetAssignmentActive(ctx context.Context, actor Actor, assignmentID uint, active bool) (*dto.AssignmentItem, error) {
	assignment, err := f.assignmentRepo.ByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if err := f.assignmentRepo.SetActive(ctx, assignmentID, active, utils.ToPtr(actor.UserID)); err != nil {
		return nil, NewBusinessError("ASSIGNMENT_UPDATE_FAILED", "Failed to update assignment", err)
	}
	return f.recomputeAssignment(ctx, assignmentID)
}

// ReassignForms moves active assignments from one affiliate to another.
// Leads keep their original attribution; only future submissions follow the new assignment.
func (f *AffiliateFlowImpl) ReassignForms(ctx context.Context, actor Actor, req *dto.ReassignFormsRequest) (*dto.ReassignFormsResponse, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	if req.FromAffiliateID == req.ToAffiliateID {
		return nil, NewValidationError("source and target affiliate must differ")
	}
	from, err := f.affiliateRepo.ByID(ctx, req.FromAffiliateID)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, ErrAffiliateNotFound
	}

	onlyForms := make(map[uint]bool, len(req.FormIDs))
	for _, id := range req.FormIDs {
		onlyForms[id] = true
	}

	var moved []*models.AffiliateFormAssignment
	deactivated := 0
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.assignmentRepo.ByFilter(txCtx, models.AffiliateFormAssignmentFilter{
			AffiliateID: &req.FromAffiliateID,
			IsActive:    utils.ToPtr(true),
		}, "", 0, 0)
		if err != nil {
			return err
		}
		for _, a := range current {
			if len(onlyForms) > 0 && !onlyForms[a.FormID] {
				continue
			}
			if err := f.assignmentRepo.SetActive(txCtx, a.ID, false, nil); err != nil {
				return err
			}
			deactivated++
			target, err := f.assign(txCtx, actor, req.ToAffiliateID, a.FormID)
			if err != nil {
				return err
			}
			moved = append(moved, target)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]dto.AssignmentItem, 0, len(moved))
	for _, a := range moved {
		item, err := f.recomputeAssignment(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	logEvent("info", "assignments_reassigned", map[string]any{
		"from_affiliate_id": req.FromAffiliateID,
		"to_affiliate_id":   req.ToAffiliateID,
		"moved":             len(moved),
		"actor_id":          actor.UserID,
	})
	return &dto.ReassignFormsResponse{
		Message:     fmt.Sprintf("Reassigned %d forms", len(moved)),
		Deactivated: deactivated,
		Assignments: items,
	}, nil
}

// RecomputeAll rebuilds every affiliate and assignment counter from leads.
// Only one run may be in progress at a time.
func (f *AffiliateFlowImpl) RecomputeAll(ctx context.Context) (*dto.RecomputeCountersResponse, error) {
	unlock, ok, err := f.locker.TryLock(ctx, recomputeLockName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecomputeInProgress
	}
	defer unlock()

	affiliates, err := f.affiliateRepo.ByFilter(ctx, models.AffiliateFilter{}, "id ASC", 0, 0)
	if err != nil {
		return nil, err
	}
	assignments, err := f.assignmentRepo.ByFilter(ctx, models.AffiliateFormAssignmentFilter{}, "id ASC", 0, 0)
	if err != nil {
		return nil, err
	}

	resp := &dto.RecomputeCountersResponse{
		AffiliatesChecked:  len(affiliates),
		AssignmentsChecked: len(assignments),
		Repaired:           []dto.CounterRepair{},
	}
	for _, a := range affiliates {
		result, err := f.counters.RecomputeAffiliate(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if result.Repaired {
			resp.Repaired = append(resp.Repaired, toCounterRepair(result))
		}
	}
	for _, a := range assignments {
		result, err := f.counters.RecomputeAssignment(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if result.Repaired {
			resp.Repaired = append(resp.Repaired, toCounterRepair(result))
		}
	}

	resp.Message = fmt.Sprintf("Checked %d affiliates and %d assignments, repaired %d",
		resp.AffiliatesChecked, resp.AssignmentsChecked, len(resp.Repaired))
	return resp, nil
}

// assign creates or reactivates the pair; it must run inside a transaction context
func (f *AffiliateFlowImpl) assign(ctx context.Context, actor Actor, affiliateID, formID uint) (*models.AffiliateFormAssignment, error) {
	affiliate, err := f.affiliateRepo.ByID(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	if !affiliate.Active() {
		return nil, ErrAffiliateInactive
	}
	form, err := f.formRepo.ByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, ErrFormNotFound
	}

	existing, err := f.assignmentRepo.ByPair(ctx, affiliateID, formID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Active() {
			if err := f.assignmentRepo.SetActive(ctx, existing.ID, true, utils.ToPtr(actor.UserID)); err != nil {
				return nil, err
			}
			existing.IsActive = utils.ToPtr(true)
		}
		return existing, nil
	}

	assignment := &models.AffiliateFormAssignment{
		AffiliateID: affiliateID,
		FormID:      formID,
		AssignedBy:  utils.ToPtr(actor.UserID),
		IsActive:    utils.ToPtr(true),
		AssignedAt:  utils.UTCNow(),
	}
	if err := f.assignmentRepo.Save(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (f *AffiliateFlowImpl) recomputeAssignment(ctx context.Context, assignmentID uint) (*dto.AssignmentItem, error) {
	if _, err := f.counters.RecomputeAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	assignment, err := f.assignmentRepo.ByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	items, err := f.assignmentItems(ctx, []*models.AffiliateFormAssignment{assignment})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (f *AffiliateFlowImpl) assignmentItems(ctx context.Context, assignments []*models.AffiliateFormAssignment) ([]dto.AssignmentItem, error) {
	ids := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.FormID)
	}
	forms, err := f.formRepo.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]dto.AssignmentItem, 0, len(assignments))
	for _, a := range assignments {
		item := dto.AssignmentItem{
			ID:             a.ID,
			AffiliateID:    a.AffiliateID,
			FormID:         a.FormID,
			IsActive:       a.Active(),
			LeadsGenerated: a.LeadsGenerated,
			Conversions:    a.Conversions,
			ConversionRate: a.ConversionRate(),
			AssignedAt:     a.AssignedAt.Format(time.RFC3339),
		}
		if form, ok := forms[a.FormID]; ok {
			item.FormName = form.Name
		}
		items = append(items, item)
	}
	return items, nil
}

func toAffiliateItem(a *models.Affiliate) dto.AffiliateItem {
	item := dto.AffiliateItem{
		ID:               a.ID,
		UserID:           a.UserID,
		AffiliateCode:    a.AffiliateCode,
		CompanyName:      a.CompanyName,
		Website:          a.Website,
		IsActive:         a.Active(),
		TotalLeads:       a.TotalLeads,
		TotalConversions: a.TotalConversions,
		ConversionRate:   a.ConversionRate(),
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
	if a.User != nil {
		item.Username = a.User.Username
	}
	return item
}

func toCounterRepair(r *RecomputeResult) dto.CounterRepair {
	return dto.CounterRepair{
		Target:            r.Target,
		ID:                r.ID,
		LeadsBefore:       r.Before.Leads,
		ConversionsBefore: r.Before.Conversions,
		LeadsAfter:        r.After.Leads,
		ConversionsAfter:  r.After.Conversions,
	}
}
