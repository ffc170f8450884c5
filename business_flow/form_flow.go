package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
)

// FormFlow handles form administration
type FormFlow interface {
	CreateForm(ctx context.Context, actor Actor, req *dto.CreateFormRequest) (*dto.FormItem, error)
	GetForm(ctx context.Context, formID uint) (*dto.FormItem, error)
	ListForms(ctx context.Context, req *dto.ListFormsRequest) (*dto.ListFormsResponse, error)
	SetFormActive(ctx context.Context, formID uint, active bool) (*dto.FormItem, error)
}

// FormFlowImpl implements FormFlow
type FormFlowImpl struct {
	formRepo repository.FormRepository
	leadRepo repository.LeadRepository
}

// NewFormFlow creates a new form flow
func NewFormFlow(formRepo repository.FormRepository, leadRepo repository.LeadRepository) FormFlow {
	return &FormFlowImpl{formRepo: formRepo, leadRepo: leadRepo}
}

// CreateForm stores a new form owned by the actor
func (f *FormFlowImpl) CreateForm(ctx context.Context, actor Actor, req *dto.CreateFormRequest) (*dto.FormItem, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	if actor.Role != models.UserRoleAdmin {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("name is required")
	}

	formType := models.FormType(req.FormType)
	if formType == "" {
		formType = models.FormTypeLeadCapture
	}
	if !formType.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unknown form type %q", req.FormType))
	}

	fields, err := toFormFields(req.Fields)
	if err != nil {
		return nil, err
	}

	form := &models.Form{
		Name:          name,
		Description:   req.Description,
		FormType:      formType,
		Fields:        fields,
		StylingConfig: models.JSONMap(req.StylingConfig),
		NotifyEmails:  req.NotifyEmails,
		IsActive:      utils.ToPtr(true),
		CreatedBy:     actor.UserID,
	}
	if err := f.formRepo.Save(ctx, form); err != nil {
		return nil, NewBusinessError("FORM_CREATE_FAILED", "Failed to create form", err)
	}

	item := toFormItem(form, 0)
	return &item, nil
}

// GetForm returns one form with its lead total
func (f *FormFlowImpl) GetForm(ctx context.Context, formID uint) (*dto.FormItem, error) {
	form, err := f.formRepo.ByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, ErrFormNotFound
	}
	total, err := f.leadRepo.Count(ctx, models.LeadFilter{FormID: &form.ID})
	if err != nil {
		return nil, err
	}
	item := toFormItem(form, total)
	return &item, nil
}

// ListForms returns forms newest first
func (f *FormFlowImpl) ListForms(ctx context.Context, req *dto.ListFormsRequest) (*dto.ListFormsResponse, error) {
	if req == nil {
		req = &dto.ListFormsRequest{}
	}
	filter := models.FormFilter{IsActive: req.Active}
	if s := strings.TrimSpace(req.Search); s != "" {
		filter.NameLike = &s
	}

	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultLeadPageSize
	}

	total, err := f.formRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	forms, err := f.formRepo.ByFilter(ctx, filter, "", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]dto.FormItem, 0, len(forms))
	for _, form := range forms {
		count, err := f.leadRepo.Count(ctx, models.LeadFilter{FormID: &form.ID})
		if err != nil {
			return nil, err
		}
		items = append(items, toFormItem(form, count))
	}
	return &dto.ListFormsResponse{Items: items, Total: total}, nil
}

// SetFormActive toggles whether the form accepts submissions
func (f *FormFlowImpl) SetFormActive(ctx context.Context, formID uint, active bool) (*dto.FormItem, error) {
	form, err := f.formRepo.ByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, ErrFormNotFound
	}
	if err := f.formRepo.SetActive(ctx, formID, active); err != nil {
		return nil, NewBusinessError("FORM_UPDATE_FAILED", "Failed to update form", err)
	}
	form.IsActive = utils.ToPtr(active)

	logEvent("info", "form_active_changed", map[string]any{
		"form_id":   formID,
		"is_active": active,
	})
	item := toFormItem(form, 0)
	return &item, nil
}

func toFormFields(in []dto.FormFieldDTO) (models.FormFields, error) {
	if len(in) == 0 {
		return nil, NewValidationError("at least one field is required")
	}
	seen := make(map[string]bool, len(in))
	out := make(models.FormFields, 0, len(in))
	for i, field := range in {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return nil, NewValidationError(fmt.Sprintf("field %d has no name", i))
		}
		if seen[name] {
			return nil, NewValidationError(fmt.Sprintf("duplicate field %q", name))
		}
		seen[name] = true

		fieldType := models.FieldType(field.Type)
		if !fieldType.Valid() {
			return nil, NewValidationError(fmt.Sprintf("field %q has unknown type %q", name, field.Type))
		}
		if fieldType.IsChoice() && len(field.Options) == 0 {
			return nil, NewValidationError(fmt.Sprintf("field %q needs options", name))
		}
		out = append(out, models.FormField{
			Name:        name,
			Type:        fieldType,
			Label:       field.Label,
			Placeholder: field.Placeholder,
			Required:    field.Required,
			Options:     field.Options,
			Order:       field.Order,
		})
	}
	return out, nil
}

func toFormItem(form *models.Form, totalLeads int64) dto.FormItem {
	fields := make([]dto.FormFieldDTO, 0, len(form.Fields))
	for _, field := range form.Fields {
		fields = append(fields, dto.FormFieldDTO{
			Name:        field.Name,
			Type:        string(field.Type),
			Label:       field.Label,
			Placeholder: field.Placeholder,
			Required:    field.Required,
			Options:     field.Options,
			Order:       field.Order,
		})
	}
	return dto.FormItem{
		ID:            form.ID,
		UUID:          form.UUID.String(),
		Name:          form.Name,
		Description:   form.Description,
		FormType:      string(form.FormType),
		Fields:        fields,
		StylingConfig: form.StylingConfig,
		NotifyEmails:  form.NotifyEmails,
		IsActive:      form.Active(),
		EmbedCode:     form.EmbedCode(),
		TotalLeads:    totalLeads,
		CreatedAt:     form.CreatedAt.Format(time.RFC3339),
	}
}
