package dto

// DashboardResponse is the role-specific landing view; unused sections are omitted
type DashboardResponse struct {
	Role string `json:"role"`

	// admin
	TotalForms      *int64 `json:"total_forms,omitempty"`
	TotalLeads      *int64 `json:"total_leads,omitempty"`
	TotalAffiliates *int64 `json:"total_affiliates,omitempty"`

	// affiliate
	Affiliate *AffiliateItem `json:"affiliate,omitempty"`

	// operations
	PendingLeads   *int64 `json:"pending_leads,omitempty"`
	QualifiedLeads *int64 `json:"qualified_leads,omitempty"`

	ConversionRate float64    `json:"conversion_rate"`
	RecentLeads    []LeadItem `json:"recent_leads"`
}
