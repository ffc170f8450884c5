package dto

// CreateAffiliateRequest creates an affiliate user together with its affiliate profile
type CreateAffiliateRequest struct {
	Username      string `json:"username" validate:"required,min=3,max=150"`
	Email         string `json:"email" validate:"required,email,max=255"`
	Password      string `json:"password" validate:"required,min=8,max=100"`
	AffiliateCode string `json:"affiliate_code" validate:"required,min=3,max=50,alphanum"`
	CompanyName   string `json:"company_name" validate:"omitempty,max=200"`
	Website       string `json:"website" validate:"omitempty,url,max=255"`
}

// AffiliateItem represents an affiliate with its maintained counters
type AffiliateItem struct {
	ID               uint    `json:"id"`
	UserID           uint    `json:"user_id"`
	Username         string  `json:"username,omitempty"`
	AffiliateCode    string  `json:"affiliate_code"`
	CompanyName      string  `json:"company_name"`
	Website          string  `json:"website"`
	IsActive         bool    `json:"is_active"`
	TotalLeads       int64   `json:"total_leads"`
	TotalConversions int64   `json:"total_conversions"`
	ConversionRate   float64 `json:"conversion_rate"`
	CreatedAt        string  `json:"created_at"`
}

// AffiliateStatsResponse is the counter view of one affiliate plus its assignments
type AffiliateStatsResponse struct {
	Affiliate   AffiliateItem    `json:"affiliate"`
	Assignments []AssignmentItem `json:"assignments"`
}

// AssignFormRequest links an affiliate to a form
type AssignFormRequest struct {
	AffiliateID uint `json:"affiliate_id" validate:"required"`
	FormID      uint `json:"form_id" validate:"required"`
}

// ReassignFormsRequest moves every active assignment of one affiliate to another
type ReassignFormsRequest struct {
	FromAffiliateID uint   `json:"from_affiliate_id" validate:"required"`
	ToAffiliateID   uint   `json:"to_affiliate_id" validate:"required,nefield=FromAffiliateID"`
	FormIDs         []uint `json:"form_ids,omitempty"`
}

// ReassignFormsResponse lists the assignments touched by a reassign
type ReassignFormsResponse struct {
	Message     string           `json:"message"`
	Deactivated int              `json:"deactivated"`
	Assignments []AssignmentItem `json:"assignments"`
}

// AssignmentItem represents one affiliate/form assignment
type AssignmentItem struct {
	ID             uint    `json:"id"`
	AffiliateID    uint    `json:"affiliate_id"`
	FormID         uint    `json:"form_id"`
	FormName       string  `json:"form_name,omitempty"`
	IsActive       bool    `json:"is_active"`
	LeadsGenerated int64   `json:"leads_generated"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	AssignedAt     string  `json:"assigned_at"`
}

// RecomputeCountersResponse summarizes a consistency check over every affiliate
type RecomputeCountersResponse struct {
	Message            string          `json:"message"`
	AffiliatesChecked  int             `json:"affiliates_checked"`
	AssignmentsChecked int             `json:"assignments_checked"`
	Repaired           []CounterRepair `json:"repaired"`
}

// CounterRepair describes one drifted counter row and its corrected values
type CounterRepair struct {
	Target            string `json:"target"`
	ID                uint   `json:"id"`
	LeadsBefore       int64  `json:"leads_before"`
	ConversionsBefore int64  `json:"conversions_before"`
	LeadsAfter        int64  `json:"leads_after"`
	ConversionsAfter  int64  `json:"conversions_after"`
}
