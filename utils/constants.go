package utils

// Request-scoped context keys set by handlers
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
)

// Stats constants
const (
	DefaultTopN          = 5
	MaxTopN              = 50
	DefaultSeriesDays    = 30
	MaxSeriesDays        = 366
	DefaultSeriesMonths  = 12
	MaxSeriesMonths      = 60
	DefaultRecentLeads   = 5
	OperationsRecentLead = 10
)

// Cache key fragments
const (
	StatsCacheKeyPrefix    = "stats"
	RecomputeLockKeyPrefix = "lock:recompute"
)
