package models

import (
	"database/sql/driver"
	"fmt"
)

// LeadStatus is a stage of the sales pipeline
type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusContacted     LeadStatus = "contacted"
	LeadStatusQualified     LeadStatus = "qualified"
	LeadStatusDemoScheduled LeadStatus = "demo_scheduled"
	LeadStatusDemoCompleted LeadStatus = "demo_completed"
	LeadStatusProposalSent  LeadStatus = "proposal_sent"
	LeadStatusNegotiating   LeadStatus = "negotiating"
	LeadStatusClosedWon     LeadStatus = "closed_won"
	LeadStatusClosedLost    LeadStatus = "closed_lost"
)

// pipeline order; both closed states share the terminal rank
var leadStatusRank = map[LeadStatus]int{
	LeadStatusNew:           0,
	LeadStatusContacted:     1,
	LeadStatusQualified:     2,
	LeadStatusDemoScheduled: 3,
	LeadStatusDemoCompleted: 4,
	LeadStatusProposalSent:  5,
	LeadStatusNegotiating:   6,
	LeadStatusClosedWon:     7,
	LeadStatusClosedLost:    7,
}

// AllLeadStatuses lists every status in pipeline order
func AllLeadStatuses() []LeadStatus {
	return []LeadStatus{
		LeadStatusNew,
		LeadStatusContacted,
		LeadStatusQualified,
		LeadStatusDemoScheduled,
		LeadStatusDemoCompleted,
		LeadStatusProposalSent,
		LeadStatusNegotiating,
		LeadStatusClosedWon,
		LeadStatusClosedLost,
	}
}

// IsConversion reports whether a lead in this status counts as converted.
// This is the only place the conversion set is defined.
func (s LeadStatus) IsConversion() bool {
	switch s {
	case LeadStatusQualified, LeadStatusDemoCompleted, LeadStatusClosedWon:
		return true
	default:
		return false
	}
}

// ConversionStatuses returns the statuses for which IsConversion holds, for use in SQL filters
func ConversionStatuses() []LeadStatus {
	var out []LeadStatus
	for _, s := range AllLeadStatuses() {
		if s.IsConversion() {
			out = append(out, s)
		}
	}
	return out
}

// StatusesAtOrBeyond returns every status whose pipeline rank is at least that of s
func StatusesAtOrBeyond(s LeadStatus) []LeadStatus {
	floor, ok := leadStatusRank[s]
	if !ok {
		return nil
	}
	var out []LeadStatus
	for _, candidate := range AllLeadStatuses() {
		if leadStatusRank[candidate] >= floor {
			out = append(out, candidate)
		}
	}
	return out
}

// Rank returns the pipeline position, or -1 for unknown statuses
func (s LeadStatus) Rank() int {
	if r, ok := leadStatusRank[s]; ok {
		return r
	}
	return -1
}

// Valid checks if the status is one of the pipeline statuses
func (s LeadStatus) Valid() bool {
	_, ok := leadStatusRank[s]
	return ok
}

// Scan implements the sql.Scanner interface for LeadStatus
func (s *LeadStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = LeadStatus(v)
	case []byte:
		*s = LeadStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LeadStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for LeadStatus
func (s LeadStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid LeadStatus: %s", s)
	}
	return string(s), nil
}
