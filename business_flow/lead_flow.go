package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/config"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	"gorm.io/gorm"
)

const (
	defaultLeadPageSize = 25
	maxLeadPageSize     = 200
)

// LeadFlow handles lead listing and pipeline changes made from the dashboard
type LeadFlow interface {
	ListLeads(ctx context.Context, actor Actor, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error)
	GetLead(ctx context.Context, actor Actor, leadUUID string) (*dto.LeadItem, error)
	UpdateStatus(ctx context.Context, actor Actor, leadUUID string, req *dto.UpdateLeadStatusRequest, metadata *ClientMetadata) (*dto.UpdateLeadStatusResponse, error)
	UpdateNotes(ctx context.Context, actor Actor, leadUUID string, req *dto.UpdateLeadNotesRequest) (*dto.LeadItem, error)
	AddNote(ctx context.Context, actor Actor, leadUUID string, req *dto.AddLeadNoteRequest) (*dto.LeadNoteItem, error)
	ListNotes(ctx context.Context, actor Actor, leadUUID string) ([]dto.LeadNoteItem, error)
}

// LeadFlowImpl implements LeadFlow
type LeadFlowImpl struct {
	leadRepo         repository.LeadRepository
	formRepo         repository.FormRepository
	noteRepo         repository.LeadNoteRepository
	statusChangeRepo repository.LeadStatusChangeRepository
	counters         CounterMaintainer
	db               *gorm.DB
	cfg              config.StatsConfig
	now              func() time.Time
}

// NewLeadFlow creates a new lead flow
func NewLeadFlow(
	leadRepo repository.LeadRepository,
	formRepo repository.FormRepository,
	noteRepo repository.LeadNoteRepository,
	statusChangeRepo repository.LeadStatusChangeRepository,
	counters CounterMaintainer,
	db *gorm.DB,
	cfg config.StatsConfig,
) LeadFlow {
	return &LeadFlowImpl{
		leadRepo:         leadRepo,
		formRepo:         formRepo,
		noteRepo:         noteRepo,
		statusChangeRepo: statusChangeRepo,
		counters:         counters,
		db:               db,
		cfg:              cfg,
		now:              utils.UTCNow,
	}
}

// ListLeads returns a page of leads visible to the actor, newest first
func (f *LeadFlowImpl) ListLeads(ctx context.Context, actor Actor, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error) {
	if req == nil {
		req = &dto.ListLeadsRequest{}
	}
	filter, err := leadListFilter(ctx, f.formRepo, actor, req, f.now(), f.cfg.MaxWindowDays)
	if err != nil {
		return nil, err
	}

	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultLeadPageSize
	}
	pageSize = min(pageSize, maxLeadPageSize)

	total, err := f.leadRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	leads, err := f.leadRepo.ListWithRelations(ctx, filter, "", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]dto.LeadItem, 0, len(leads))
	for _, l := range leads {
		items = append(items, toLeadItem(l, false))
	}
	return &dto.ListLeadsResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// leadListFilter narrows the request filters to what the actor may see
func leadListFilter(
	ctx context.Context,
	formRepo repository.FormRepository,
	actor Actor,
	req *dto.ListLeadsRequest,
	now time.Time,
	maxWindowDays int,
) (models.LeadFilter, error) {
	var filter models.LeadFilter

	switch actor.Role {
	case models.UserRoleAdmin, models.UserRoleOperations:
	case models.UserRoleAffiliate:
		if actor.AffiliateID == nil {
			return filter, ErrPermissionDenied
		}
		filter.AffiliateID = utils.ToPtr(*actor.AffiliateID)
	default:
		return filter, ErrPermissionDenied
	}

	if req.FormUUID != "" {
		form, err := formRepo.ByUUID(ctx, req.FormUUID)
		if err != nil {
			return filter, err
		}
		if form == nil {
			return filter, ErrFormNotFound
		}
		filter.FormID = utils.ToPtr(form.ID)
	}
	if req.Status != "" {
		status := models.LeadStatus(req.Status)
		if !status.Valid() {
			return filter, NewValidationError(fmt.Sprintf("unknown status %q", req.Status))
		}
		filter.Status = &status
	}
	if s := strings.TrimSpace(req.UTMSource); s != "" {
		filter.UTMSource = &s
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		filter.EmailLike = &s
	}
	if req.Window != "" {
		w, err := ParseWindow(req.Window, now, maxWindowDays)
		if err != nil {
			return filter, err
		}
		filter.CreatedAfter = &w.Since
		filter.CreatedBefore = &w.Until
	}
	return filter, nil
}

// GetLead returns a single lead with its payload
func (f *LeadFlowImpl) GetLead(ctx context.Context, actor Actor, leadUUID string) (*dto.LeadItem, error) {
	lead, err := f.accessibleLead(ctx, actor, leadUUID)
	if err != nil {
		return nil, err
	}
	item := toLeadItem(lead, true)
	return &item, nil
}

// UpdateStatus moves a lead to a new pipeline status and records the change.
// The status write only applies if nobody changed the status since it was read; otherwise
// ErrLeadStatusConflict is returned and no counter moves. The status, the audit row and the
// counter deltas commit together; a counter failure is rolled back on its own and reported
// as a warning.
func (f *LeadFlowImpl) UpdateStatus(ctx context.Context, actor Actor, leadUUID string, req *dto.UpdateLeadStatusRequest, metadata *ClientMetadata) (*dto.UpdateLeadStatusResponse, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	newStatus := models.LeadStatus(strings.TrimSpace(req.Status))
	if !newStatus.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unknown status %q", req.Status))
	}
	if metadata == nil {
		metadata = NewClientMetadata("", "")
	}

	lead, err := f.accessibleLead(ctx, actor, leadUUID)
	if err != nil {
		return nil, err
	}
	oldStatus := lead.Status

	resp := &dto.UpdateLeadStatusResponse{
		Message:    "Lead status updated successfully",
		LeadID:     lead.UUID.String(),
		FromStatus: string(oldStatus),
		ToStatus:   string(newStatus),
	}
	if oldStatus == newStatus {
		resp.Message = "Lead status unchanged"
		return resp, nil
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		applied, err := f.leadRepo.UpdateStatus(txCtx, lead.ID, oldStatus, newStatus)
		if err != nil {
			return err
		}
		if !applied {
			return ErrLeadStatusConflict
		}
		if err := f.statusChangeRepo.Save(txCtx, &models.LeadStatusChange{
			LeadID:     lead.ID,
			ChangedBy:  actor.UserID,
			FromStatus: oldStatus,
			ToStatus:   newStatus,
			IPAddress:  metadata.IPAddress,
			RequestID:  metadata.RequestID,
		}); err != nil {
			return err
		}

		lead.Status = newStatus
		if err := f.counters.OnStatusChanged(txCtx, lead, oldStatus, newStatus); err != nil {
			resp.Warning = asConsistencyWarning("on_status_changed", lead, err).Error()
		}
		return nil
	})
	if err != nil {
		lead.Status = oldStatus
		if errors.Is(err, ErrLeadStatusConflict) {
			return nil, err
		}
		return nil, NewBusinessError("LEAD_STATUS_UPDATE_FAILED", "Failed to update lead status", err)
	}
	return resp, nil
}

// UpdateNotes replaces the free-text notes of a lead
func (f *LeadFlowImpl) UpdateNotes(ctx context.Context, actor Actor, leadUUID string, req *dto.UpdateLeadNotesRequest) (*dto.LeadItem, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	lead, err := f.accessibleLead(ctx, actor, leadUUID)
	if err != nil {
		return nil, err
	}
	if err := f.leadRepo.UpdateNotes(ctx, lead.ID, req.Notes); err != nil {
		return nil, NewBusinessError("LEAD_NOTES_UPDATE_FAILED", "Failed to update lead notes", err)
	}
	lead.Notes = req.Notes
	item := toLeadItem(lead, true)
	return &item, nil
}

// AddNote appends a note authored by the actor
func (f *LeadFlowImpl) AddNote(ctx context.Context, actor Actor, leadUUID string, req *dto.AddLeadNoteRequest) (*dto.LeadNoteItem, error) {
	if req == nil || strings.TrimSpace(req.Note) == "" {
		return nil, NewValidationError("note is required")
	}
	lead, err := f.accessibleLead(ctx, actor, leadUUID)
	if err != nil {
		return nil, err
	}

	note := &models.LeadNote{
		LeadID:   lead.ID,
		AuthorID: actor.UserID,
		Note:     strings.TrimSpace(req.Note),
	}
	if err := f.noteRepo.Save(ctx, note); err != nil {
		return nil, NewBusinessError("LEAD_NOTE_CREATE_FAILED", "Failed to add note", err)
	}
	item := toLeadNoteItem(note)
	return &item, nil
}

// ListNotes returns the notes of a lead, oldest first
func (f *LeadFlowImpl) ListNotes(ctx context.Context, actor Actor, leadUUID string) ([]dto.LeadNoteItem, error) {
	lead, err := f.accessibleLead(ctx, actor, leadUUID)
	if err != nil {
		return nil, err
	}
	notes, err := f.noteRepo.ListByLead(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.LeadNoteItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, toLeadNoteItem(n))
	}
	return items, nil
}

func (f *LeadFlowImpl) accessibleLead(ctx context.Context, actor Actor, leadUUID string) (*models.Lead, error) {
	lead, err := f.leadRepo.ByUUID(ctx, leadUUID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}
	if !actor.CanAccessLead(lead) {
		return nil, ErrPermissionDenied
	}
	return lead, nil
}

func toLeadItem(l *models.Lead, withPayload bool) dto.LeadItem {
	item := dto.LeadItem{
		ID:          l.ID,
		UUID:        l.UUID.String(),
		FormID:      l.FormID,
		AffiliateID: l.AffiliateID,
		Email:       l.Email,
		Name:        l.Name,
		Phone:       l.Phone,
		Status:      string(l.Status),
		IsConverted: l.IsConverted(),
		UTMSource:   l.UTMSource,
		UTMMedium:   l.UTMMedium,
		UTMCampaign: l.UTMCampaign,
		UTMTerm:     l.UTMTerm,
		UTMContent:  l.UTMContent,
		ReferrerURL: l.ReferrerURL,
		Notes:       l.Notes,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   l.UpdatedAt.Format(time.RFC3339),
	}
	if l.Form != nil {
		item.FormName = l.Form.Name
	}
	if l.Affiliate != nil {
		item.AffiliateCode = l.Affiliate.AffiliateCode
	}
	if withPayload {
		item.FormData = l.FormData
	}
	return item
}

func toLeadNoteItem(n *models.LeadNote) dto.LeadNoteItem {
	item := dto.LeadNoteItem{
		ID:        n.ID,
		AuthorID:  n.AuthorID,
		Note:      n.Note,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.Author != nil {
		item.Author = n.Author.Username
	}
	return item
}
