package businessflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/config"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
)

// TopField names a dimension leads can be ranked by
type TopField string

const (
	TopByUTMSource     TopField = "utm_source"
	TopByForm          TopField = "form"
	TopByAffiliateCode TopField = "affiliate_code"
)

// Funnel counts leads at or past each stage; each stage is a subset of the one before
type Funnel struct {
	All       int64 `json:"all"`
	Contacted int64 `json:"contacted"`
	Qualified int64 `json:"qualified"`
	ClosedWon int64 `json:"closed_won"`
}

// GrowthResult compares two adjacent windows
type GrowthResult struct {
	Recent   int64   `json:"recent"`
	Previous int64   `json:"previous"`
	Rate     float64 `json:"rate"`
}

// StatsAggregator answers read-only statistics queries. It never errors on empty data.
type StatsAggregator interface {
	WindowedCount(ctx context.Context, q StatsQuery) (int64, error)
	ConversionCount(ctx context.Context, q StatsQuery) (int64, error)
	Growth(ctx context.Context, q StatsQuery, recent Window) (*GrowthResult, error)
	TopNBy(ctx context.Context, q StatsQuery, field TopField, n int) ([]dto.TopEntry, error)
	DailySeries(ctx context.Context, q StatsQuery, days int) ([]dto.SeriesPoint, error)
	MonthlySeries(ctx context.Context, q StatsQuery, months int) ([]dto.SeriesPoint, error)
	Funnel(ctx context.Context, q StatsQuery) (*Funnel, error)
	Summary(ctx context.Context, q StatsQuery, window Window, topN int) (*dto.StatsSummaryResponse, error)
}

// StatsAggregatorImpl implements StatsAggregator
type StatsAggregatorImpl struct {
	leadRepo      repository.LeadRepository
	formRepo      repository.FormRepository
	affiliateRepo repository.AffiliateRepository
	cache         StatsCache
	cfg           config.StatsConfig
	now           func() time.Time
}

// NewStatsAggregator creates a new stats aggregator; cache may be nil
func NewStatsAggregator(
	leadRepo repository.LeadRepository,
	formRepo repository.FormRepository,
	affiliateRepo repository.AffiliateRepository,
	cache StatsCache,
	cfg config.StatsConfig,
) StatsAggregator {
	if cache == nil {
		cache = noopStatsCache{}
	}
	return &StatsAggregatorImpl{
		leadRepo:      leadRepo,
		formRepo:      formRepo,
		affiliateRepo: affiliateRepo,
		cache:         cache,
		cfg:           cfg,
		now:           utils.UTCNow,
	}
}

// WindowedCount counts leads in scope matching the query's predicate and bounds
func (s *StatsAggregatorImpl) WindowedCount(ctx context.Context, q StatsQuery) (int64, error) {
	if err := q.Scope.Validate(); err != nil {
		return 0, err
	}
	return s.leadRepo.Count(ctx, q.LeadFilter())
}

// ConversionCount counts leads in scope whose status is a conversion
func (s *StatsAggregatorImpl) ConversionCount(ctx context.Context, q StatsQuery) (int64, error) {
	if err := q.Scope.Validate(); err != nil {
		return 0, err
	}
	return s.leadRepo.CountConversions(ctx, q.LeadFilter())
}

// Growth compares the recent window with the window of equal length right before it
func (s *StatsAggregatorImpl) Growth(ctx context.Context, q StatsQuery, recent Window) (*GrowthResult, error) {
	recentCount, err := s.WindowedCount(ctx, q.InWindow(recent))
	if err != nil {
		return nil, err
	}
	previousCount, err := s.WindowedCount(ctx, q.InWindow(recent.Previous()))
	if err != nil {
		return nil, err
	}
	return &GrowthResult{
		Recent:   recentCount,
		Previous: previousCount,
		Rate:     models.GrowthRate(recentCount, previousCount),
	}, nil
}

// TopNBy ranks by count descending then key ascending and keeps the first n.
// Leads without a value for the field are not ranked.
func (s *StatsAggregatorImpl) TopNBy(ctx context.Context, q StatsQuery, field TopField, n int) ([]dto.TopEntry, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	n = clampTopN(n, s.cfg.DefaultTopN)

	var column string
	switch field {
	case TopByUTMSource:
		column = repository.LeadColumnUTMSource
	case TopByForm:
		column = repository.LeadColumnFormID
	case TopByAffiliateCode:
		column = repository.LeadColumnAffiliateID
	default:
		return nil, NewValidationError(fmt.Sprintf("cannot rank by %q", field))
	}

	groups, err := s.leadRepo.GroupCountBy(ctx, q.LeadFilter(), column)
	if err != nil {
		return nil, err
	}

	entries, err := s.labelGroups(ctx, field, groups)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].ID < entries[j].ID
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// labelGroups turns raw group keys into display keys: form names and affiliate codes
func (s *StatsAggregatorImpl) labelGroups(ctx context.Context, field TopField, groups []models.GroupCount) ([]dto.TopEntry, error) {
	entries := make([]dto.TopEntry, 0, len(groups))
	if field == TopByUTMSource {
		for _, g := range groups {
			if g.Key == "" {
				continue
			}
			entries = append(entries, dto.TopEntry{Key: g.Key, Count: g.Count})
		}
		return entries, nil
	}

	ids := make([]uint, 0, len(groups))
	counts := make(map[uint]int64, len(groups))
	for _, g := range groups {
		id, err := strconv.ParseUint(g.Key, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, uint(id))
		counts[uint(id)] += g.Count
	}

	labels := make(map[uint]string, len(ids))
	if field == TopByForm {
		forms, err := s.formRepo.ByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for id, f := range forms {
			labels[id] = f.Name
		}
	} else {
		affiliates, err := s.affiliateRepo.ByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for id, a := range affiliates {
			labels[id] = a.AffiliateCode
		}
	}

	for _, id := range ids {
		label, ok := labels[id]
		if !ok {
			continue
		}
		entries = append(entries, dto.TopEntry{Key: label, ID: id, Count: counts[id]})
	}
	return entries, nil
}

// DailySeries returns exactly days buckets ending today, oldest first, zero filled
func (s *StatsAggregatorImpl) DailySeries(ctx context.Context, q StatsQuery, days int) ([]dto.SeriesPoint, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	if days < 1 {
		days = utils.DefaultSeriesDays
	}
	if days > utils.MaxSeriesDays {
		days = utils.MaxSeriesDays
	}

	until := utils.StartOfDay(s.now()).AddDate(0, 0, 1)
	since := until.AddDate(0, 0, -days)

	points := make([]dto.SeriesPoint, days)
	index := make(map[string]int, days)
	for i := range days {
		key := utils.DayKey(since.AddDate(0, 0, i))
		points[i] = dto.SeriesPoint{Period: key}
		index[key] = i
	}

	if err := s.bucket(ctx, q, since, until, repository.BucketDay, index, points); err != nil {
		return nil, err
	}
	return points, nil
}

// MonthlySeries returns exactly months buckets ending with the current month, oldest first
func (s *StatsAggregatorImpl) MonthlySeries(ctx context.Context, q StatsQuery, months int) ([]dto.SeriesPoint, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	if months < 1 {
		months = utils.DefaultSeriesMonths
	}
	if months > utils.MaxSeriesMonths {
		months = utils.MaxSeriesMonths
	}

	current := utils.StartOfMonth(s.now())
	until := current.AddDate(0, 1, 0)
	since := current.AddDate(0, -(months - 1), 0)

	points := make([]dto.SeriesPoint, months)
	index := make(map[string]int, months)
	for i := range months {
		key := utils.MonthKey(since.AddDate(0, i, 0))
		points[i] = dto.SeriesPoint{Period: key}
		index[key] = i
	}

	if err := s.bucket(ctx, q, since, until, repository.BucketMonth, index, points); err != nil {
		return nil, err
	}
	return points, nil
}

// bucket fills points with per-period lead counts in [since, until); the database does the grouping
func (s *StatsAggregatorImpl) bucket(
	ctx context.Context,
	q StatsQuery,
	since, until time.Time,
	unit repository.BucketUnit,
	index map[string]int,
	points []dto.SeriesPoint,
) error {
	q.Since, q.Until = &since, &until
	groups, err := s.leadRepo.CountByBucket(ctx, q.LeadFilter(), unit)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if i, ok := index[g.Key]; ok {
			points[i].Count += g.Count
		}
	}
	return nil
}

// Funnel ignores the query's status filter since every stage is itself a status filter
func (s *StatsAggregatorImpl) Funnel(ctx context.Context, q StatsQuery) (*Funnel, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	q.Status = nil
	base := q.LeadFilter()

	count := func(statuses []models.LeadStatus) (int64, error) {
		f := base
		f.StatusIn = statuses
		return s.leadRepo.Count(ctx, f)
	}

	var out Funnel
	var err error
	if out.All, err = s.leadRepo.Count(ctx, base); err != nil {
		return nil, err
	}
	if out.Contacted, err = count(models.StatusesAtOrBeyond(models.LeadStatusContacted)); err != nil {
		return nil, err
	}
	if out.Qualified, err = count(models.StatusesAtOrBeyond(models.LeadStatusQualified)); err != nil {
		return nil, err
	}
	if out.ClosedWon, err = count([]models.LeadStatus{models.LeadStatusClosedWon}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary combines totals, growth, funnel, a daily series over the window and the top rankings
func (s *StatsAggregatorImpl) Summary(ctx context.Context, q StatsQuery, window Window, topN int) (*dto.StatsSummaryResponse, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	topN = clampTopN(topN, s.cfg.DefaultTopN)
	wq := q.InWindow(window)

	cacheKey := wq.cacheKey("summary", strconv.Itoa(topN))
	var cached dto.StatsSummaryResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	total, err := s.WindowedCount(ctx, wq)
	if err != nil {
		return nil, err
	}
	conversions, err := s.ConversionCount(ctx, wq)
	if err != nil {
		return nil, err
	}
	growth, err := s.Growth(ctx, q, window)
	if err != nil {
		return nil, err
	}
	funnel, err := s.Funnel(ctx, wq)
	if err != nil {
		return nil, err
	}
	series, err := s.windowSeries(ctx, wq, window)
	if err != nil {
		return nil, err
	}
	sources, err := s.TopNBy(ctx, wq, TopByUTMSource, topN)
	if err != nil {
		return nil, err
	}
	forms, err := s.TopNBy(ctx, wq, TopByForm, topN)
	if err != nil {
		return nil, err
	}

	resp := &dto.StatsSummaryResponse{
		Scope:          string(q.Scope.Kind),
		ScopeID:        q.Scope.ID,
		Window:         window.Name,
		From:           window.Since.Format(time.RFC3339),
		To:             window.Until.Format(time.RFC3339),
		TotalLeads:     total,
		Conversions:    conversions,
		ConversionRate: models.ConversionRate(total, conversions),
		PreviousLeads:  growth.Previous,
		GrowthRate:     growth.Rate,
		Funnel: dto.FunnelDTO{
			All:       funnel.All,
			Contacted: funnel.Contacted,
			Qualified: funnel.Qualified,
			ClosedWon: funnel.ClosedWon,
		},
		DailySeries: series,
		TopSources:  sources,
		TopForms:    forms,
	}
	if q.Scope.Kind != ScopeAffiliate {
		if resp.TopAffiliates, err = s.TopNBy(ctx, wq, TopByAffiliateCode, topN); err != nil {
			return nil, err
		}
	}

	s.cache.Set(ctx, cacheKey, resp)
	return resp, nil
}

// windowSeries is a daily series over an arbitrary window, one point per calendar day
func (s *StatsAggregatorImpl) windowSeries(ctx context.Context, q StatsQuery, window Window) ([]dto.SeriesPoint, error) {
	start := utils.StartOfDay(window.Since)
	days := min(Window{Since: start, Until: window.Until}.Days(), utils.MaxSeriesDays)

	points := make([]dto.SeriesPoint, days)
	index := make(map[string]int, days)
	for i := range days {
		key := utils.DayKey(start.AddDate(0, 0, i))
		points[i] = dto.SeriesPoint{Period: key}
		index[key] = i
	}
	if err := s.bucket(ctx, q, window.Since, window.Until, repository.BucketDay, index, points); err != nil {
		return nil, err
	}
	return points, nil
}

func clampTopN(n, fallback int) int {
	if n <= 0 {
		n = fallback
	}
	if n <= 0 {
		n = utils.DefaultTopN
	}
	if n > utils.MaxTopN {
		n = utils.MaxTopN
	}
	return n
}
