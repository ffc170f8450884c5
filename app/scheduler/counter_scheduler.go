// Package scheduler runs periodic background jobs next to the HTTP server
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	businessflow "github.com/amirphl/Kitsune/business_flow"
)

// Recomputer is the slice of AffiliateFlow the reconciliation job needs
type Recomputer interface {
	RecomputeAll(ctx context.Context) (*dto.RecomputeCountersResponse, error)
}

// CounterScheduler periodically rebuilds affiliate and assignment counters from stored leads,
// repairing drift left behind by failed counter updates
type CounterScheduler struct {
	recomputer Recomputer
	logger     *log.Logger
	interval   time.Duration
	timeout    time.Duration
}

func NewCounterScheduler(recomputer Recomputer, logger *log.Logger, interval, timeout time.Duration) *CounterScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}
	return &CounterScheduler{
		recomputer: recomputer,
		logger:     logger,
		interval:   interval,
		timeout:    timeout,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function.
// The first run waits one full interval so startup is not slowed by a recount.
func (s *CounterScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *CounterScheduler) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	started := time.Now()
	result, err := s.recomputer.RecomputeAll(ctx)
	if err != nil {
		if businessflow.IsRecomputeInProgress(err) {
			s.logger.Printf("counter reconcile skipped: another recompute holds the lock")
			return
		}
		s.logger.Printf("counter reconcile failed: %v", err)
		return
	}

	s.logger.Printf("counter reconcile done in %s: affiliates=%d assignments=%d repaired=%d",
		time.Since(started).Round(time.Millisecond), result.AffiliatesChecked, result.AssignmentsChecked, len(result.Repaired))
	for _, r := range result.Repaired {
		s.logger.Printf("counter drift repaired: %s %d leads %d->%d conversions %d->%d",
			r.Target, r.ID, r.LeadsBefore, r.LeadsAfter, r.ConversionsBefore, r.ConversionsAfter)
	}
}
