package businessflow

import (
	"context"
	"errors"
	"strings"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Accepted payload keys per logical field, tried in order; the first non-empty value wins
var (
	emailKeys = []string{"email", "Email", "email_address"}
	nameKeys  = []string{"name", "full_name", "Name"}
	phoneKeys = []string{"phone", "Phone"}
)

const maxTrackingLen = 100

// SubmissionResult is a stored lead plus any counter problem encountered after storing it
type SubmissionResult struct {
	Lead    *models.Lead
	Warning *ConsistencyWarning
}

// AttributionFlow turns public form submissions into leads
type AttributionFlow interface {
	SubmitLead(ctx context.Context, req *dto.SubmitLeadRequest, metadata *ClientMetadata) (*SubmissionResult, error)
}

// AttributionFlowImpl implements AttributionFlow
type AttributionFlowImpl struct {
	formRepo      repository.FormRepository
	affiliateRepo repository.AffiliateRepository
	leadRepo      repository.LeadRepository
	counters      CounterMaintainer
	db            *gorm.DB
	validate      *validator.Validate
}

// NewAttributionFlow creates a new attribution flow
func NewAttributionFlow(
	formRepo repository.FormRepository,
	affiliateRepo repository.AffiliateRepository,
	leadRepo repository.LeadRepository,
	counters CounterMaintainer,
	db *gorm.DB,
) AttributionFlow {
	return &AttributionFlowImpl{
		formRepo:      formRepo,
		affiliateRepo: affiliateRepo,
		leadRepo:      leadRepo,
		counters:      counters,
		db:            db,
		validate:      validator.New(),
	}
}

// SubmitLead validates and stores a submission, then updates counters before returning.
// An unknown referral code never rejects the submission; the lead is stored unattributed.
func (f *AttributionFlowImpl) SubmitLead(ctx context.Context, req *dto.SubmitLeadRequest, metadata *ClientMetadata) (*SubmissionResult, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	if metadata == nil {
		metadata = NewClientMetadata("", "")
	}

	form, err := f.formRepo.ByUUID(ctx, req.FormUUID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		leadSubmissionsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrFormNotFound
	}
	if !form.Active() {
		leadSubmissionsTotal.WithLabelValues("rejected_inactive").Inc()
		return nil, ErrFormInactive
	}

	payload := models.JSONMap(req.FormData)
	if payload == nil {
		payload = models.JSONMap{}
	}

	email := firstValue(payload, emailKeys)
	if email == "" {
		leadSubmissionsTotal.WithLabelValues("rejected_invalid").Inc()
		return nil, NewValidationError("email required")
	}
	if err := f.validate.Var(email, "email"); err != nil {
		leadSubmissionsTotal.WithLabelValues("rejected_invalid").Inc()
		return nil, NewValidationError("email is invalid")
	}

	affiliateID, err := f.resolveAffiliate(ctx, req.ReferralCode, form)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		FormID:      form.ID,
		AffiliateID: affiliateID,
		FormData:    payload,
		Email:       email,
		Name:        firstValue(payload, nameKeys),
		Phone:       firstValue(payload, phoneKeys),
		UTMSource:   tracking(req.UTMSource, req.UTMParams, "utm_source"),
		UTMMedium:   tracking(req.UTMMedium, req.UTMParams, "utm_medium"),
		UTMCampaign: tracking(req.UTMCampaign, req.UTMParams, "utm_campaign"),
		UTMTerm:     tracking(req.UTMTerm, req.UTMParams, "utm_term"),
		UTMContent:  tracking(req.UTMContent, req.UTMParams, "utm_content"),
		ReferrerURL: utils.FirstNonEmpty(req.ReferrerURL, metadata.ReferrerURL),
		IPAddress:   metadata.IPAddress,
		UserAgent:   metadata.UserAgent,
		Status:      models.LeadStatusNew,
	}

	// the counter deltas run in a savepoint of the lead's transaction: they commit together,
	// yet a counter failure only undoes the counters
	result := &SubmissionResult{Lead: lead}
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.leadRepo.Save(txCtx, lead); err != nil {
			return err
		}
		if err := f.counters.OnLeadCreated(txCtx, lead); err != nil {
			result.Warning = asConsistencyWarning("on_lead_created", lead, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	leadSubmissionsTotal.WithLabelValues("created").Inc()
	return result, nil
}

// resolveAffiliate maps a referral code to an active affiliate, or nil
func (f *AttributionFlowImpl) resolveAffiliate(ctx context.Context, code string, form *models.Form) (*uint, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	affiliate, err := f.affiliateRepo.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if affiliate == nil || !affiliate.Active() {
		reason := "unknown"
		if affiliate != nil {
			reason = "inactive"
		}
		unknownReferralTotal.Inc()
		logEvent("warn", "unresolved_referral_code", map[string]any{
			"referral_code": code,
			"reason":        reason,
			"form_uuid":     form.UUID.String(),
		})
		return nil, nil
	}

	id := affiliate.ID
	return &id, nil
}

// firstValue walks keys in order and returns the first value that is non-empty after trimming
func firstValue(payload models.JSONMap, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(payload.String(k)); v != "" {
			return v
		}
	}
	return ""
}

func tracking(flat string, nested map[string]string, key string) string {
	v := utils.FirstNonEmpty(flat, nested[key])
	if len(v) > maxTrackingLen {
		v = v[:maxTrackingLen]
	}
	return v
}

func asConsistencyWarning(operation string, lead *models.Lead, err error) *ConsistencyWarning {
	var w *ConsistencyWarning
	if errors.As(err, &w) {
		return w
	}
	w = &ConsistencyWarning{Operation: operation, LeadID: lead.ID, Failures: []error{err}}
	if lead.AffiliateID != nil {
		w.AffiliateID = *lead.AffiliateID
	}
	return w
}
