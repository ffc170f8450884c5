package dto

// StatsRequest selects the scope and window of a statistics query
type StatsRequest struct {
	FormUUID    string `query:"form" validate:"omitempty,uuid"`
	AffiliateID uint   `query:"affiliate_id"`
	Window      string `query:"window" validate:"omitempty,max=20"`
	From        string `query:"from" validate:"omitempty"`
	To          string `query:"to" validate:"omitempty"`
	Status      string `query:"status" validate:"omitempty"`
	UTMSource   string `query:"utm_source" validate:"omitempty,max=100"`
	TopN        int    `query:"top" validate:"omitempty,min=1,max=50"`
}

// SeriesRequest selects a daily or monthly series
type SeriesRequest struct {
	StatsRequest
	Granularity string `query:"granularity" validate:"omitempty,oneof=daily monthly"`
	Points      int    `query:"points" validate:"omitempty,min=1,max=366"`
}

// TopRequest selects a ranking
type TopRequest struct {
	StatsRequest
	By string `query:"by" validate:"required,oneof=utm_source form affiliate_code"`
}

// SeriesPoint is one bucket of a time series
type SeriesPoint struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// TopEntry is one row of a ranking
type TopEntry struct {
	Key   string `json:"key"`
	ID    uint   `json:"id,omitempty"`
	Count int64  `json:"count"`
}

// FunnelDTO holds the pipeline stage counts
type FunnelDTO struct {
	All       int64 `json:"all"`
	Contacted int64 `json:"contacted"`
	Qualified int64 `json:"qualified"`
	ClosedWon int64 `json:"closed_won"`
}

// StatsSummaryResponse is the combined statistics view for one scope and window
type StatsSummaryResponse struct {
	Scope          string        `json:"scope"`
	ScopeID        uint          `json:"scope_id,omitempty"`
	Window         string        `json:"window"`
	From           string        `json:"from"`
	To             string        `json:"to"`
	TotalLeads     int64         `json:"total_leads"`
	Conversions    int64         `json:"conversions"`
	ConversionRate float64       `json:"conversion_rate"`
	PreviousLeads  int64         `json:"previous_leads"`
	GrowthRate     float64       `json:"growth_rate"`
	Funnel         FunnelDTO     `json:"funnel"`
	DailySeries    []SeriesPoint `json:"daily_series"`
	TopSources     []TopEntry    `json:"top_sources"`
	TopForms       []TopEntry    `json:"top_forms"`
	TopAffiliates  []TopEntry    `json:"top_affiliates,omitempty"`
}

// SeriesResponse is a zero-filled series
type SeriesResponse struct {
	Granularity string        `json:"granularity"`
	Points      []SeriesPoint `json:"points"`
}

// TopResponse is a ranking
type TopResponse struct {
	By      string     `json:"by"`
	Entries []TopEntry `json:"entries"`
}
