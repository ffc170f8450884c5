package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertLead stores a lead at a fixed time without touching counters
func (e *flowEnv) insertLead(t *testing.T, form *models.Form, affiliate *models.Affiliate, status models.LeadStatus, createdAt time.Time, utmSource string) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		FormID:    form.ID,
		FormData:  models.JSONMap{"email": "stats@example.com"},
		Email:     "stats@example.com",
		UTMSource: utmSource,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if affiliate != nil {
		id := affiliate.ID
		lead.AffiliateID = &id
	}
	require.NoError(t, e.db.DB.Create(lead).Error)
	return lead
}

func TestConversionRateIsZeroWithoutLeads(t *testing.T) {
	env := newFlowEnv(t)
	q := StatsQuery{Scope: GlobalScope()}

	total, err := env.stats.WindowedCount(env.ctx, q)
	require.NoError(t, err)
	conversions, err := env.stats.ConversionCount(env.ctx, q)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, conversions)
	assert.Equal(t, float64(0), models.ConversionRate(total, conversions))

	window, err := ParseWindow("days=30", fixedNow, 366)
	require.NoError(t, err)
	summary, err := env.stats.Summary(env.ctx, q, window, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(0), summary.ConversionRate)
	assert.Equal(t, float64(0), summary.GrowthRate)
	assert.Len(t, summary.DailySeries, 30)
	assert.Empty(t, summary.TopSources)
	assert.Empty(t, summary.TopForms)
}

func TestDailySeriesCoversWindowOldestFirst(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	for _, n := range []int{0, 1, 1, 3, 6, 6, 6, 7, 10} {
		env.insertLead(t, form, nil, models.LeadStatusNew, daysAgo(n, 9), "")
	}
	q := StatsQuery{Scope: GlobalScope()}

	points, err := env.stats.DailySeries(env.ctx, q, 7)
	require.NoError(t, err)
	require.Len(t, points, 7)
	assert.Equal(t, "2025-06-12", points[0].Period)
	assert.Equal(t, "2025-06-18", points[6].Period)

	var sum int64
	for i, p := range points {
		assert.GreaterOrEqual(t, p.Count, int64(0))
		if i > 0 {
			assert.Less(t, points[i-1].Period, p.Period)
		}
		sum += p.Count
	}

	window, err := ParseWindow("days=7", fixedNow, 366)
	require.NoError(t, err)
	total, err := env.stats.WindowedCount(env.ctx, q.InWindow(window))
	require.NoError(t, err)
	assert.Equal(t, total, sum)
	assert.Equal(t, int64(7), sum)

	expected := []int64{3, 0, 0, 1, 0, 2, 1}
	for i, p := range points {
		assert.Equal(t, expected[i], p.Count, p.Period)
	}
}

func TestGrowthComparesAdjacentWindows(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	// 100 leads spread over 45 days: offsets 0-9 get three leads, 10-44 get two
	for i := range 100 {
		env.insertLead(t, form, nil, models.LeadStatusNew, daysAgo(i%45, 10), "")
	}

	window, err := ParseWindow("days=30", fixedNow, 366)
	require.NoError(t, err)
	q := StatsQuery{Scope: GlobalScope()}

	growth, err := env.stats.Growth(env.ctx, q, window)
	require.NoError(t, err)
	assert.Equal(t, int64(70), growth.Recent)
	assert.Equal(t, int64(30), growth.Previous)
	assert.InDelta(t, 133.333, growth.Rate, 0.01)

	all, err := env.stats.WindowedCount(env.ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(100), all)
}

func TestGrowthIsZeroWithoutPreviousLeads(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	for i := range 12 {
		env.insertLead(t, form, nil, models.LeadStatusNew, daysAgo(i%30, 8), "")
	}

	window, err := ParseWindow("days=30", fixedNow, 366)
	require.NoError(t, err)
	growth, err := env.stats.Growth(env.ctx, StatsQuery{Scope: GlobalScope()}, window)
	require.NoError(t, err)
	assert.Equal(t, int64(12), growth.Recent)
	assert.Equal(t, int64(0), growth.Previous)
	assert.Equal(t, float64(0), growth.Rate)
}

func TestTopNByBreaksTiesByKey(t *testing.T) {
	env := newFlowEnv(t)
	formA, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	formB, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	aff1, err := env.fixtures.CreateTestAffiliate("ZED")
	require.NoError(t, err)
	aff2, err := env.fixtures.CreateTestAffiliate("ACME")
	require.NoError(t, err)

	sources := []string{"google", "google", "google", "bing", "bing", "ads", "ads", "", "", "", "", "zeta"}
	for i, src := range sources {
		form, aff := formA, aff1
		if i%4 == 0 {
			form = formB
		}
		if i%2 == 0 {
			aff = aff2
		}
		env.insertLead(t, form, aff, models.LeadStatusNew, daysAgo(i, 11), src)
	}
	q := StatsQuery{Scope: GlobalScope()}

	top, err := env.stats.TopNBy(env.ctx, q, TopByUTMSource, 3)
	require.NoError(t, err)
	assert.Equal(t, []dto.TopEntry{
		{Key: "google", Count: 3},
		{Key: "ads", Count: 2},
		{Key: "bing", Count: 2},
	}, top)

	all, err := env.stats.TopNBy(env.ctx, q, TopByUTMSource, 50)
	require.NoError(t, err)
	require.Len(t, all, 4, "empty sources are not ranked")
	assert.Equal(t, "zeta", all[3].Key)

	forms, err := env.stats.TopNBy(env.ctx, q, TopByForm, 5)
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, dto.TopEntry{Key: formA.Name, ID: formA.ID, Count: 9}, forms[0])
	assert.Equal(t, dto.TopEntry{Key: formB.Name, ID: formB.ID, Count: 3}, forms[1])

	// equal counts fall back to the code
	affiliates, err := env.stats.TopNBy(env.ctx, q, TopByAffiliateCode, 5)
	require.NoError(t, err)
	require.Len(t, affiliates, 2)
	assert.Equal(t, "ACME", affiliates[0].Key)
	assert.Equal(t, "ZED", affiliates[1].Key)
	assert.Equal(t, int64(6), affiliates[0].Count)

	_, err = env.stats.TopNBy(env.ctx, q, TopField("email"), 5)
	assert.True(t, IsValidation(err))
}

func TestFunnelStagesNeverGrow(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	for _, s := range []models.LeadStatus{
		models.LeadStatusNew,
		models.LeadStatusContacted,
		models.LeadStatusQualified,
		models.LeadStatusClosedWon,
		models.LeadStatusClosedLost,
	} {
		env.insertLead(t, form, nil, s, daysAgo(2, 9), "")
	}

	status := models.LeadStatusNew
	funnel, err := env.stats.Funnel(env.ctx, StatsQuery{Scope: GlobalScope(), Status: &status})
	require.NoError(t, err)
	assert.Equal(t, &Funnel{All: 5, Contacted: 4, Qualified: 3, ClosedWon: 1}, funnel)
	assert.GreaterOrEqual(t, funnel.All, funnel.Contacted)
	assert.GreaterOrEqual(t, funnel.Contacted, funnel.Qualified)
	assert.GreaterOrEqual(t, funnel.Qualified, funnel.ClosedWon)
}

func TestMonthlySeries(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	env.insertLead(t, form, nil, models.LeadStatusNew, time.Date(2025, time.March, 31, 23, 30, 0, 0, time.UTC), "")
	env.insertLead(t, form, nil, models.LeadStatusNew, time.Date(2025, time.April, 1, 0, 30, 0, 0, time.UTC), "")
	env.insertLead(t, form, nil, models.LeadStatusNew, time.Date(2025, time.April, 20, 10, 30, 0, 0, time.UTC), "")
	env.insertLead(t, form, nil, models.LeadStatusNew, time.Date(2025, time.June, 18, 11, 30, 0, 0, time.UTC), "")

	points, err := env.stats.MonthlySeries(env.ctx, StatsQuery{Scope: GlobalScope()}, 3)
	require.NoError(t, err)
	assert.Equal(t, []dto.SeriesPoint{
		{Period: "2025-04", Count: 2},
		{Period: "2025-05", Count: 0},
		{Period: "2025-06", Count: 1},
	}, points)
}

func TestScopedCountsAndSummary(t *testing.T) {
	env := newFlowEnv(t)
	formA, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	formB, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	aff, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)

	env.insertLead(t, formA, aff, models.LeadStatusQualified, daysAgo(1, 9), "google")
	env.insertLead(t, formA, aff, models.LeadStatusNew, daysAgo(2, 9), "google")
	env.insertLead(t, formA, nil, models.LeadStatusClosedWon, daysAgo(3, 9), "bing")
	env.insertLead(t, formB, nil, models.LeadStatusNew, daysAgo(4, 9), "")

	window, err := ParseWindow("days=30", fixedNow, 366)
	require.NoError(t, err)

	affSummary, err := env.stats.Summary(env.ctx, StatsQuery{Scope: AffiliateScope(aff.ID)}, window, 5)
	require.NoError(t, err)
	assert.Equal(t, "affiliate", affSummary.Scope)
	assert.Equal(t, int64(2), affSummary.TotalLeads)
	assert.Equal(t, int64(1), affSummary.Conversions)
	assert.Equal(t, float64(50), affSummary.ConversionRate)
	assert.Nil(t, affSummary.TopAffiliates)

	formSummary, err := env.stats.Summary(env.ctx, StatsQuery{Scope: FormScope(formA.ID)}, window, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), formSummary.TotalLeads)
	assert.Equal(t, int64(2), formSummary.Conversions)
	require.Len(t, formSummary.TopAffiliates, 1)
	assert.Equal(t, "AFF001", formSummary.TopAffiliates[0].Key)

	global, err := env.stats.Summary(env.ctx, StatsQuery{Scope: GlobalScope()}, window, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(4), global.TotalLeads)
	assert.Equal(t, float64(50), global.ConversionRate)
	assert.Equal(t, dto.FunnelDTO{All: 4, Contacted: 2, Qualified: 2, ClosedWon: 1}, global.Funnel)

	var seriesSum int64
	for _, p := range global.DailySeries {
		seriesSum += p.Count
	}
	assert.Equal(t, global.TotalLeads, seriesSum)

	_, err = env.stats.WindowedCount(env.ctx, StatsQuery{Scope: Scope{Kind: ScopeForm}})
	assert.True(t, IsValidation(err))
}

func TestParseWindow(t *testing.T) {
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }
	until := day(time.June, 19)

	tests := []struct {
		name  string
		since time.Time
	}{
		{"today", day(time.June, 18)},
		{"week", day(time.June, 16)},
		{"month", day(time.June, 1)},
		{"quarter", day(time.April, 1)},
		{"days=7", day(time.June, 12)},
		{" DAYS=1 ", day(time.June, 18)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseWindow(tt.name, fixedNow, 366)
			require.NoError(t, err)
			assert.Equal(t, tt.since, w.Since)
			assert.Equal(t, until, w.Until)
		})
	}

	for _, bad := range []string{"", "fortnight", "days=0", "days=-3", "days=abc", "days=400"} {
		_, err := ParseWindow(bad, fixedNow, 366)
		assert.True(t, IsValidation(err), bad)
	}

	w, err := ParseWindow("days=30", fixedNow, 0)
	require.NoError(t, err)
	prev := w.Previous()
	assert.Equal(t, w.Since, prev.Until)
	assert.Equal(t, w.Until.Sub(w.Since), prev.Until.Sub(prev.Since))
	assert.Equal(t, 30, w.Days())
}

func TestRangeWindow(t *testing.T) {
	w, err := RangeWindow("2025-06-01", "2025-06-10", 366)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), w.Since)
	assert.Equal(t, time.Date(2025, time.June, 11, 0, 0, 0, 0, time.UTC), w.Until)
	assert.Equal(t, 10, w.Days())

	same, err := RangeWindow("2025-06-01", "2025-06-01", 366)
	require.NoError(t, err)
	assert.Equal(t, 1, same.Days())

	_, err = RangeWindow("2025-06-10", "2025-06-01", 366)
	assert.True(t, IsValidation(err))
	_, err = RangeWindow("06/01/2025", "2025-06-10", 366)
	assert.True(t, IsValidation(err))
	_, err = RangeWindow("2024-01-01", "2025-06-10", 366)
	assert.True(t, IsValidation(err))
}

func TestStatsFlowResolvesScope(t *testing.T) {
	env := newFlowEnv(t)
	admin := env.admin(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	aff, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)
	other, err := env.fixtures.CreateTestAffiliate("AFF002")
	require.NoError(t, err)

	env.insertLead(t, form, aff, models.LeadStatusQualified, daysAgo(1, 9), "google")
	env.insertLead(t, form, other, models.LeadStatusNew, daysAgo(1, 9), "google")

	flow := NewStatsFlow(env.stats, env.formRepo, testStatsConfig).(*StatsFlowImpl)
	flow.now = func() time.Time { return fixedNow }

	mine, err := flow.Summary(env.ctx, affiliateActor(aff), &dto.StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "affiliate", mine.Scope)
	assert.Equal(t, aff.ID, mine.ScopeID)
	assert.Equal(t, int64(1), mine.TotalLeads)
	assert.Equal(t, "days=30", mine.Window)

	_, err = flow.Summary(env.ctx, affiliateActor(aff), &dto.StatsRequest{AffiliateID: other.ID})
	assert.True(t, IsPermissionDenied(err))

	_, err = flow.Summary(env.ctx, affiliateActor(aff), &dto.StatsRequest{FormUUID: form.UUID.String()})
	assert.True(t, IsValidation(err))

	_, err = flow.Summary(env.ctx, Actor{UserID: 99, Role: models.UserRole("guest")}, nil)
	assert.True(t, IsPermissionDenied(err))

	global, err := flow.Summary(env.ctx, admin, &dto.StatsRequest{Window: "week"})
	require.NoError(t, err)
	assert.Equal(t, "global", global.Scope)
	assert.Equal(t, int64(2), global.TotalLeads)

	byForm, err := flow.Summary(env.ctx, admin, &dto.StatsRequest{FormUUID: form.UUID.String()})
	require.NoError(t, err)
	assert.Equal(t, form.ID, byForm.ScopeID)

	_, err = flow.Summary(env.ctx, admin, &dto.StatsRequest{FormUUID: form.UUID.String(), AffiliateID: aff.ID})
	assert.True(t, IsValidation(err))

	_, err = flow.Summary(env.ctx, admin, &dto.StatsRequest{FormUUID: "9b2f3c1e-0000-4000-8000-000000000000"})
	assert.True(t, IsFormNotFound(err))

	_, err = flow.Summary(env.ctx, admin, &dto.StatsRequest{Status: "won"})
	assert.True(t, IsValidation(err))

	series, err := flow.Series(env.ctx, admin, &dto.SeriesRequest{Points: 7})
	require.NoError(t, err)
	assert.Equal(t, "daily", series.Granularity)
	assert.Len(t, series.Points, 7)

	_, err = flow.Series(env.ctx, admin, &dto.SeriesRequest{Granularity: "hourly"})
	assert.True(t, IsValidation(err))

	top, err := flow.Top(env.ctx, admin, &dto.TopRequest{By: "affiliate_code"})
	require.NoError(t, err)
	require.Len(t, top.Entries, 2)
	assert.Equal(t, "AFF001", top.Entries[0].Key)
}
