package dto

// SubmitLeadRequest is the public form submission; FormData keys are free-form
type SubmitLeadRequest struct {
	FormUUID     string         `json:"-"`
	FormData     map[string]any `json:"form_data" validate:"required"`
	ReferralCode string         `json:"referral_code,omitempty" validate:"omitempty,max=50"`
	UTMSource    string         `json:"utm_source,omitempty" validate:"omitempty,max=100"`
	UTMMedium    string         `json:"utm_medium,omitempty" validate:"omitempty,max=100"`
	UTMCampaign  string         `json:"utm_campaign,omitempty" validate:"omitempty,max=100"`
	UTMTerm      string         `json:"utm_term,omitempty" validate:"omitempty,max=100"`
	UTMContent   string         `json:"utm_content,omitempty" validate:"omitempty,max=100"`
	ReferrerURL  string         `json:"referrer_url,omitempty" validate:"omitempty,max=2048"`

	// UTMParams is the nested form sent by older embeds; flat fields win
	UTMParams map[string]string `json:"utm_params,omitempty"`
}

// SubmitLeadResponse is returned to the embedding page
type SubmitLeadResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Form submitted successfully"`
	LeadID  string `json:"lead_id"`
}

// LeadItem represents a lead row in listings and detail views
type LeadItem struct {
	ID            uint           `json:"id"`
	UUID          string         `json:"uuid"`
	FormID        uint           `json:"form_id"`
	FormName      string         `json:"form_name"`
	AffiliateID   *uint          `json:"affiliate_id,omitempty"`
	AffiliateCode string         `json:"affiliate_code,omitempty"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Status        string         `json:"status"`
	IsConverted   bool           `json:"is_converted"`
	UTMSource     string         `json:"utm_source"`
	UTMMedium     string         `json:"utm_medium"`
	UTMCampaign   string         `json:"utm_campaign"`
	UTMTerm       string         `json:"utm_term"`
	UTMContent    string         `json:"utm_content"`
	ReferrerURL   string         `json:"referrer_url"`
	Notes         string         `json:"notes"`
	FormData      map[string]any `json:"form_data,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// ListLeadsRequest filters a lead listing; scope restrictions are applied by the caller
type ListLeadsRequest struct {
	FormUUID  string `query:"form" validate:"omitempty,uuid"`
	Status    string `query:"status" validate:"omitempty"`
	UTMSource string `query:"utm_source" validate:"omitempty,max=100"`
	Search    string `query:"search" validate:"omitempty,max=255"`
	Window    string `query:"window" validate:"omitempty,max=20"`
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,min=1,max=200"`
}

// ListLeadsResponse is a page of leads
type ListLeadsResponse struct {
	Items      []LeadItem `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// UpdateLeadStatusRequest moves a lead through the pipeline
type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified demo_scheduled demo_completed proposal_sent negotiating closed_won closed_lost"`
}

// UpdateLeadStatusResponse reports the transition and any counter warning
type UpdateLeadStatusResponse struct {
	Message    string `json:"message"`
	LeadID     string `json:"lead_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Warning    string `json:"warning,omitempty"`
}

// UpdateLeadNotesRequest replaces the notes field of a lead
type UpdateLeadNotesRequest struct {
	Notes string `json:"notes" validate:"max=10000"`
}

// AddLeadNoteRequest appends a note entry to a lead
type AddLeadNoteRequest struct {
	Note string `json:"note" validate:"required,min=1,max=10000"`
}

// LeadNoteItem is one appended note
type LeadNoteItem struct {
	ID        uint   `json:"id"`
	AuthorID  uint   `json:"author_id"`
	Author    string `json:"author"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
}
