package dto

// FormFieldDTO is one input of a form definition
type FormFieldDTO struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Type        string   `json:"type" validate:"required,oneof=text email phone textarea select checkbox radio"`
	Label       string   `json:"label" validate:"required,max=200"`
	Placeholder string   `json:"placeholder,omitempty" validate:"omitempty,max=200"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty" validate:"omitempty,dive,max=200"`
	Order       int      `json:"order" validate:"min=0"`
}

// CreateFormRequest defines a new form
type CreateFormRequest struct {
	Name          string         `json:"name" validate:"required,min=1,max=200"`
	Description   string         `json:"description" validate:"omitempty,max=5000"`
	FormType      string         `json:"form_type" validate:"omitempty,oneof=lead_capture contact newsletter"`
	Fields        []FormFieldDTO `json:"fields" validate:"required,min=1,dive"`
	StylingConfig map[string]any `json:"styling_config,omitempty"`
	NotifyEmails  []string       `json:"notify_emails,omitempty" validate:"omitempty,dive,email"`
}

// FormItem represents a form in listings and detail views
type FormItem struct {
	ID            uint           `json:"id"`
	UUID          string         `json:"uuid"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	FormType      string         `json:"form_type"`
	Fields        []FormFieldDTO `json:"fields"`
	StylingConfig map[string]any `json:"styling_config,omitempty"`
	NotifyEmails  []string       `json:"notify_emails,omitempty"`
	IsActive      bool           `json:"is_active"`
	EmbedCode     string         `json:"embed_code"`
	TotalLeads    int64          `json:"total_leads"`
	CreatedAt     string         `json:"created_at"`
}

// ListFormsRequest filters the admin form listing
type ListFormsRequest struct {
	Active   *bool  `query:"active"`
	Search   string `query:"search" validate:"omitempty,max=200"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=200"`
}

// ListFormsResponse is a page of forms
type ListFormsResponse struct {
	Items []FormItem `json:"items"`
	Total int64      `json:"total"`
}

// SetActiveRequest toggles forms, affiliates and assignments
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}
