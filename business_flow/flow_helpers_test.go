package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/config"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	testingutil "github.com/amirphl/Kitsune/testing"
	"github.com/stretchr/testify/require"
)

var testStatsConfig = config.StatsConfig{
	DefaultTopN:    5,
	MaxWindowDays:  366,
	DefaultWindow:  "days=30",
	ExportMaxLeads: 1000,
}

// fixedNow is a Wednesday
var fixedNow = time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)

type flowEnv struct {
	ctx      context.Context
	db       *testingutil.TestDB
	fixtures *testingutil.TestFixtures

	userRepo         repository.UserRepository
	formRepo         repository.FormRepository
	affiliateRepo    repository.AffiliateRepository
	assignmentRepo   repository.AffiliateFormAssignmentRepository
	leadRepo         repository.LeadRepository
	noteRepo         repository.LeadNoteRepository
	statusChangeRepo repository.LeadStatusChangeRepository
	settingRepo      repository.SettingRepository

	counters    CounterMaintainer
	attribution AttributionFlow
	stats       *StatsAggregatorImpl
	leads       *LeadFlowImpl
	affiliates  AffiliateFlow
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	testDB, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = testDB.TeardownTestDB() })

	db := testDB.DB
	env := &flowEnv{
		ctx:              testingutil.CreateTestContext(),
		db:               testDB,
		fixtures:         testingutil.NewTestFixtures(testDB),
		userRepo:         repository.NewUserRepository(db),
		formRepo:         repository.NewFormRepository(db),
		affiliateRepo:    repository.NewAffiliateRepository(db),
		assignmentRepo:   repository.NewAffiliateFormAssignmentRepository(db),
		leadRepo:         repository.NewLeadRepository(db),
		noteRepo:         repository.NewLeadNoteRepository(db),
		statusChangeRepo: repository.NewLeadStatusChangeRepository(db),
		settingRepo:      repository.NewSettingRepository(db),
	}
	env.counters = NewCounterMaintainer(env.affiliateRepo, env.assignmentRepo, env.leadRepo, db)
	env.attribution = NewAttributionFlow(env.formRepo, env.affiliateRepo, env.leadRepo, env.counters, db)

	env.stats = NewStatsAggregator(env.leadRepo, env.formRepo, env.affiliateRepo, nil, testStatsConfig).(*StatsAggregatorImpl)
	env.stats.now = func() time.Time { return fixedNow }

	env.leads = NewLeadFlow(env.leadRepo, env.formRepo, env.noteRepo, env.statusChangeRepo, env.counters, db, testStatsConfig).(*LeadFlowImpl)
	env.leads.now = func() time.Time { return fixedNow }

	env.affiliates = NewAffiliateFlow(env.userRepo, env.affiliateRepo, env.assignmentRepo, env.formRepo, env.counters, nil, db, 4)
	return env
}

func (e *flowEnv) admin(t *testing.T) Actor {
	t.Helper()
	user, err := e.fixtures.CreateTestUser(models.UserRoleAdmin)
	require.NoError(t, err)
	return Actor{UserID: user.ID, Role: models.UserRoleAdmin}
}

func affiliateActor(a *models.Affiliate) Actor {
	id := a.ID
	return Actor{UserID: a.UserID, Role: models.UserRoleAffiliate, AffiliateID: &id}
}

func (e *flowEnv) submit(t *testing.T, form *models.Form, code string, payload map[string]any) *SubmissionResult {
	t.Helper()
	result, err := e.attribution.SubmitLead(e.ctx, &dto.SubmitLeadRequest{
		FormUUID:     form.UUID.String(),
		FormData:     payload,
		ReferralCode: code,
	}, NewClientMetadata("127.0.0.1", "go-test"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Nil(t, result.Warning)
	return result
}

func (e *flowEnv) affiliate(t *testing.T, id uint) *models.Affiliate {
	t.Helper()
	a, err := e.affiliateRepo.ByID(e.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func (e *flowEnv) assignment(t *testing.T, id uint) *models.AffiliateFormAssignment {
	t.Helper()
	a, err := e.assignmentRepo.ByID(e.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func (e *flowEnv) setStatus(t *testing.T, actor Actor, lead *models.Lead, status models.LeadStatus) *dto.UpdateLeadStatusResponse {
	t.Helper()
	resp, err := e.leads.UpdateStatus(e.ctx, actor, lead.UUID.String(), &dto.UpdateLeadStatusRequest{Status: string(status)}, nil)
	require.NoError(t, err)
	return resp
}

// daysAgo is fixedNow shifted back by n days at the given hour
func daysAgo(n, hour int) time.Time {
	d := fixedNow.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 30, 0, 0, time.UTC)
}
