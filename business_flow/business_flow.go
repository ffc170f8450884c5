// Package businessflow contains the lead attribution, counter maintenance and statistics use cases
package businessflow

import (
	"encoding/json"
	"log"

	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
)

// ClientMetadata holds request-derived information stored with submissions and audit rows
type ClientMetadata struct {
	IPAddress   string `json:"ip_address"`
	UserAgent   string `json:"user_agent"`
	ReferrerURL string `json:"referrer_url,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// Actor is the authenticated caller of a mutating operation
type Actor struct {
	UserID      uint
	Role        models.UserRole
	AffiliateID *uint
}

// CanAccessLead reports whether the actor may read or change the lead.
// Affiliates only see leads attributed to them.
func (a Actor) CanAccessLead(lead *models.Lead) bool {
	switch a.Role {
	case models.UserRoleAdmin, models.UserRoleOperations:
		return true
	case models.UserRoleAffiliate:
		return a.AffiliateID != nil && lead.AffiliateID != nil && *a.AffiliateID == *lead.AffiliateID
	default:
		return false
	}
}

// logEvent writes one JSON line through the standard logger
func logEvent(level, event string, fields map[string]any) {
	entry := map[string]any{
		"level":     level,
		"event":     event,
		"timestamp": utils.UTCNowRFC3339(),
	}
	for k, v := range fields {
		entry[k] = v
	}
	b, err := json.Marshal(entry)
	if err != nil {
		log.Printf("%s %s %v", level, event, fields)
		return
	}
	log.Println(string(b))
}
