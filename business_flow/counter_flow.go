package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"gorm.io/gorm"
)

// CounterMaintainer is the only writer of affiliate and assignment counters.
// OnLeadCreated and OnStatusChanged apply deltas; the Recompute methods rebuild from leads.
type CounterMaintainer interface {
	OnLeadCreated(ctx context.Context, lead *models.Lead) error
	OnStatusChanged(ctx context.Context, lead *models.Lead, oldStatus, newStatus models.LeadStatus) error
	RecomputeAffiliate(ctx context.Context, affiliateID uint) (*RecomputeResult, error)
	RecomputeAssignment(ctx context.Context, assignmentID uint) (*RecomputeResult, error)
}

// CounterPair is a (leads, conversions) snapshot
type CounterPair struct {
	Leads       int64 `json:"leads"`
	Conversions int64 `json:"conversions"`
}

// RecomputeResult reports the stored and recounted values of one counter row
type RecomputeResult struct {
	Target   string      `json:"target"`
	ID       uint        `json:"id"`
	Before   CounterPair `json:"before"`
	After    CounterPair `json:"after"`
	Repaired bool        `json:"repaired"`
}

// CounterMaintainerImpl implements CounterMaintainer
type CounterMaintainerImpl struct {
	affiliateRepo  repository.AffiliateRepository
	assignmentRepo repository.AffiliateFormAssignmentRepository
	leadRepo       repository.LeadRepository
	db             *gorm.DB
}

// NewCounterMaintainer creates a new counter maintainer
func NewCounterMaintainer(
	affiliateRepo repository.AffiliateRepository,
	assignmentRepo repository.AffiliateFormAssignmentRepository,
	leadRepo repository.LeadRepository,
	db *gorm.DB,
) CounterMaintainer {
	return &CounterMaintainerImpl{
		affiliateRepo:  affiliateRepo,
		assignmentRepo: assignmentRepo,
		leadRepo:       leadRepo,
		db:             db,
	}
}

// OnLeadCreated counts a freshly stored lead against its affiliate and the pair's assignment.
// Assignment counters cover every lead of the (affiliate, form) pair whatever the active flag,
// which is exactly what RecomputeAssignment rebuilds.
// Either every counter moves or none does; a failure is returned as *ConsistencyWarning.
// Callers run it in the transaction that stored the lead so a concurrent recompute sees both or neither.
func (c *CounterMaintainerImpl) OnLeadCreated(ctx context.Context, lead *models.Lead) error {
	if lead == nil || lead.AffiliateID == nil {
		return nil
	}
	affiliateID := *lead.AffiliateID
	converted := lead.Status.IsConversion()

	err := repository.WithTransaction(ctx, c.db, func(txCtx context.Context) error {
		if err := c.affiliateRepo.IncrementLeads(txCtx, affiliateID); err != nil {
			return fmt.Errorf("affiliate total_leads: %w", err)
		}
		if converted {
			if err := c.affiliateRepo.AdjustConversions(txCtx, affiliateID, 1); err != nil {
				return fmt.Errorf("affiliate total_conversions: %w", err)
			}
		}

		assignment, err := c.assignmentRepo.ByPair(txCtx, affiliateID, lead.FormID)
		if err != nil {
			return fmt.Errorf("assignment lookup: %w", err)
		}
		if assignment == nil {
			return nil
		}
		if err := c.assignmentRepo.IncrementLeads(txCtx, assignment.ID); err != nil {
			return fmt.Errorf("assignment leads_generated: %w", err)
		}
		if converted {
			if err := c.assignmentRepo.AdjustConversions(txCtx, assignment.ID, 1); err != nil {
				return fmt.Errorf("assignment conversions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return c.warn("on_lead_created", lead, err)
	}
	return nil
}

// OnStatusChanged moves conversion counters by one when the lead crosses the conversion boundary.
// The pair's assignment follows even while inactive; it keeps its historical counters.
func (c *CounterMaintainerImpl) OnStatusChanged(ctx context.Context, lead *models.Lead, oldStatus, newStatus models.LeadStatus) error {
	if lead == nil || lead.AffiliateID == nil {
		return nil
	}
	wasConverted, isConverted := oldStatus.IsConversion(), newStatus.IsConversion()
	if wasConverted == isConverted {
		return nil
	}
	delta := 1
	if wasConverted {
		delta = -1
	}
	affiliateID := *lead.AffiliateID

	err := repository.WithTransaction(ctx, c.db, func(txCtx context.Context) error {
		if err := c.affiliateRepo.AdjustConversions(txCtx, affiliateID, delta); err != nil {
			return fmt.Errorf("affiliate total_conversions: %w", err)
		}
		assignment, err := c.assignmentRepo.ByPair(txCtx, affiliateID, lead.FormID)
		if err != nil {
			return fmt.Errorf("assignment lookup: %w", err)
		}
		if assignment == nil {
			return nil
		}
		if err := c.assignmentRepo.AdjustConversions(txCtx, assignment.ID, delta); err != nil {
			return fmt.Errorf("assignment conversions: %w", err)
		}
		return nil
	})
	if err != nil {
		return c.warn("on_status_changed", lead, err)
	}
	return nil
}

// RecomputeAffiliate recounts the affiliate's leads and overwrites its counters when they drifted.
// The affiliate row stays locked from the recount to the write, so increments committed
// meanwhile are neither lost nor counted twice.
func (c *CounterMaintainerImpl) RecomputeAffiliate(ctx context.Context, affiliateID uint) (*RecomputeResult, error) {
	var result *RecomputeResult
	err := repository.WithTransaction(ctx, c.db, func(txCtx context.Context) error {
		affiliate, err := c.affiliateRepo.ByIDForUpdate(txCtx, affiliateID)
		if err != nil {
			return err
		}
		if affiliate == nil {
			return ErrAffiliateNotFound
		}

		filter := models.LeadFilter{AffiliateID: &affiliateID}
		leads, err := c.leadRepo.Count(txCtx, filter)
		if err != nil {
			return err
		}
		conversions, err := c.leadRepo.CountConversions(txCtx, filter)
		if err != nil {
			return err
		}

		result = &RecomputeResult{
			Target: "affiliate",
			ID:     affiliateID,
			Before: CounterPair{Leads: affiliate.TotalLeads, Conversions: affiliate.TotalConversions},
			After:  CounterPair{Leads: leads, Conversions: conversions},
		}
		if result.Before == result.After {
			return nil
		}
		if err := c.affiliateRepo.SetCounters(txCtx, affiliateID, leads, conversions); err != nil {
			return err
		}
		result.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Repaired {
		c.logRepair(result, "affiliate_id")
	}
	return result, nil
}

// RecomputeAssignment recounts every lead of the assignment's (affiliate, form) pair under the
// assignment's row lock
func (c *CounterMaintainerImpl) RecomputeAssignment(ctx context.Context, assignmentID uint) (*RecomputeResult, error) {
	var result *RecomputeResult
	err := repository.WithTransaction(ctx, c.db, func(txCtx context.Context) error {
		assignment, err := c.assignmentRepo.ByIDForUpdate(txCtx, assignmentID)
		if err != nil {
			return err
		}
		if assignment == nil {
			return ErrAssignmentNotFound
		}

		leads, conversions, err := c.leadRepo.CountByPair(txCtx, assignment.AffiliateID, assignment.FormID)
		if err != nil {
			return err
		}

		result = &RecomputeResult{
			Target: "assignment",
			ID:     assignmentID,
			Before: CounterPair{Leads: assignment.LeadsGenerated, Conversions: assignment.Conversions},
			After:  CounterPair{Leads: leads, Conversions: conversions},
		}
		if result.Before == result.After {
			return nil
		}
		if err := c.assignmentRepo.SetCounters(txCtx, assignmentID, leads, conversions); err != nil {
			return err
		}
		result.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Repaired {
		c.logRepair(result, "assignment_id")
	}
	return result, nil
}

func (c *CounterMaintainerImpl) logRepair(result *RecomputeResult, idField string) {
	counterDriftRepairedTotal.WithLabelValues(result.Target).Inc()
	logEvent("warn", "counter_drift_repaired", map[string]any{
		"target":             result.Target,
		idField:              result.ID,
		"leads_before":       result.Before.Leads,
		"conversions_before": result.Before.Conversions,
		"leads_after":        result.After.Leads,
		"conversions_after":  result.After.Conversions,
	})
}

func (c *CounterMaintainerImpl) warn(operation string, lead *models.Lead, cause error) *ConsistencyWarning {
	w := &ConsistencyWarning{
		Operation: operation,
		LeadID:    lead.ID,
		Failures:  []error{cause},
	}
	if lead.AffiliateID != nil {
		w.AffiliateID = *lead.AffiliateID
	}
	counterConsistencyWarningsTotal.WithLabelValues(operation).Inc()
	logEvent("error", "counter_consistency_warning", map[string]any{
		"operation":    operation,
		"lead_id":      w.LeadID,
		"affiliate_id": w.AffiliateID,
		"error":        cause.Error(),
	})
	return w
}
