package businessflow

import (
	"testing"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func validAffiliateRequest(code string) *dto.CreateAffiliateRequest {
	return &dto.CreateAffiliateRequest{
		Username:      "partner_" + code,
		Email:         code + "@Partner.example.com",
		Password:      "s3cret-pass",
		AffiliateCode: code,
		CompanyName:   "Partner " + code,
	}
}

func TestCreateAffiliate(t *testing.T) {
	env := newFlowEnv(t)

	item, err := env.affiliates.CreateAffiliate(env.ctx, validAffiliateRequest("NEWCO"))
	require.NoError(t, err)
	assert.Equal(t, "NEWCO", item.AffiliateCode)
	assert.Equal(t, "partner_NEWCO", item.Username)
	assert.True(t, item.IsActive)
	assert.Zero(t, item.TotalLeads)

	user, err := env.userRepo.ByUsername(env.ctx, "partner_NEWCO")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, models.UserRoleAffiliate, user.Role)
	assert.Equal(t, "newco@partner.example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))

	_, err = env.affiliates.CreateAffiliate(env.ctx, validAffiliateRequest("NEWCO"))
	assert.True(t, IsAffiliateCodeTaken(err))

	dupUser := validAffiliateRequest("OTHER")
	dupUser.Username = "partner_NEWCO"
	_, err = env.affiliates.CreateAffiliate(env.ctx, dupUser)
	assert.True(t, IsUsernameTaken(err))

	dupEmail := validAffiliateRequest("THIRD")
	dupEmail.Email = "NEWCO@partner.example.com"
	_, err = env.affiliates.CreateAffiliate(env.ctx, dupEmail)
	assert.True(t, IsUsernameTaken(err))

	_, err = env.affiliates.CreateAffiliate(env.ctx, &dto.CreateAffiliateRequest{AffiliateCode: "X"})
	assert.True(t, IsValidation(err))

	count, err := env.affiliateRepo.Count(env.ctx, models.AffiliateFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSetAffiliateActiveStopsAttribution(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	created, err := env.affiliates.CreateAffiliate(env.ctx, validAffiliateRequest("PAUSE"))
	require.NoError(t, err)

	item, err := env.affiliates.SetAffiliateActive(env.ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, item.IsActive)

	result := env.submit(t, form, "PAUSE", map[string]any{"email": "p@example.com"})
	assert.Nil(t, result.Lead.AffiliateID)

	active, err := env.affiliates.ListAffiliates(env.ctx, utils.ToPtr(true))
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := env.affiliates.ListAffiliates(env.ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = env.affiliates.SetAffiliateActive(env.ctx, 424242, true)
	assert.True(t, IsAffiliateNotFound(err))
}

func TestAssignFormIsIdempotent(t *testing.T) {
	env := newFlowEnv(t)
	admin := env.admin(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	affiliate, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)

	// leads attributed before the assignment existed
	env.insertLead(t, form, affiliate, models.LeadStatusQualified, daysAgo(3, 9), "")
	env.insertLead(t, form, affiliate, models.LeadStatusNew, daysAgo(2, 9), "")

	first, err := env.affiliates.AssignForm(env.ctx, admin, &dto.AssignFormRequest{AffiliateID: affiliate.ID, FormID: form.ID})
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, form.Name, first.FormName)
	assert.Equal(t, int64(2), first.LeadsGenerated)
	assert.Equal(t, int64(1), first.Conversions)
	assert.Equal(t, float64(50), first.ConversionRate)

	_, err = env.affiliates.SetAssignmentActive(env.ctx, admin, first.ID, false)
	require.NoError(t, err)

	again, err := env.affiliates.AssignForm(env.ctx, admin, &dto.AssignFormRequest{AffiliateID: affiliate.ID, FormID: form.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.IsActive)

	count, err := env.assignmentRepo.Count(env.ctx, models.AffiliateFormAssignmentFilter{AffiliateID: &affiliate.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = env.affiliates.AssignForm(env.ctx, admin, &dto.AssignFormRequest{AffiliateID: affiliate.ID, FormID: 424242})
	assert.True(t, IsFormNotFound(err))
	_, err = env.affiliates.AssignForm(env.ctx, admin, &dto.AssignFormRequest{AffiliateID: 424242, FormID: form.ID})
	assert.True(t, IsAffiliateNotFound(err))

	require.NoError(t, env.affiliateRepo.SetActive(env.ctx, affiliate.ID, false))
	formB, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	_, err = env.affiliates.AssignForm(env.ctx, admin, &dto.AssignFormRequest{AffiliateID: affiliate.ID, FormID: formB.ID})
	assert.ErrorIs(t, err, ErrAffiliateInactive)

	stats, err := env.affiliates.GetAffiliateStats(env.ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, "AFF001", stats.Affiliate.AffiliateCode)
	require.Len(t, stats.Assignments, 1)
}

func TestReassignFormsKeepsHistoricalAttribution(t *testing.T) {
	env := newFlowEnv(t)
	admin := env.admin(t)
	formA, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	formB, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	from, err := env.fixtures.CreateTestAffiliate("FROM01")
	require.NoError(t, err)
	to, err := env.fixtures.CreateTestAffiliate("TO0001")
	require.NoError(t, err)
	oldA, err := env.fixtures.CreateTestAssignment(from.ID, formA.ID)
	require.NoError(t, err)
	_, err = env.fixtures.CreateTestAssignment(from.ID, formB.ID)
	require.NoError(t, err)

	lead := env.submit(t, formA, "FROM01", map[string]any{"email": "before@example.com"}).Lead

	resp, err := env.affiliates.ReassignForms(env.ctx, admin, &dto.ReassignFormsRequest{
		FromAffiliateID: from.ID,
		ToAffiliateID:   to.ID,
		FormIDs:         []uint{formA.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Deactivated)
	require.Len(t, resp.Assignments, 1)
	assert.Equal(t, to.ID, resp.Assignments[0].AffiliateID)
	assert.Equal(t, formA.ID, resp.Assignments[0].FormID)
	assert.Zero(t, resp.Assignments[0].LeadsGenerated, "past leads stay with the original affiliate")

	assert.False(t, env.assignment(t, oldA.ID).Active())
	stored, err := env.leadRepo.ByID(env.ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, from.ID, *stored.AffiliateID)
	assert.Equal(t, int64(1), env.affiliate(t, from.ID).TotalLeads)

	_, err = env.affiliates.ReassignForms(env.ctx, admin, &dto.ReassignFormsRequest{FromAffiliateID: from.ID, ToAffiliateID: from.ID})
	assert.True(t, IsValidation(err))

	// without a form list every remaining active assignment moves
	rest, err := env.affiliates.ReassignForms(env.ctx, admin, &dto.ReassignFormsRequest{FromAffiliateID: from.ID, ToAffiliateID: to.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, rest.Deactivated)
	assert.Equal(t, formB.ID, rest.Assignments[0].FormID)
}

func TestRecomputeAllRepairsDrift(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	aff1, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)
	aff2, err := env.fixtures.CreateTestAffiliate("AFF002")
	require.NoError(t, err)
	as1, err := env.fixtures.CreateTestAssignment(aff1.ID, form.ID)
	require.NoError(t, err)

	env.submit(t, form, "AFF001", map[string]any{"email": "a@example.com"})
	env.submit(t, form, "AFF002", map[string]any{"email": "b@example.com"})

	clean, err := env.affiliates.RecomputeAll(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, clean.AffiliatesChecked)
	assert.Equal(t, 1, clean.AssignmentsChecked)
	assert.Empty(t, clean.Repaired)

	require.NoError(t, env.affiliateRepo.SetCounters(env.ctx, aff2.ID, 40, 7))
	require.NoError(t, env.assignmentRepo.SetCounters(env.ctx, as1.ID, 0, 0))

	resp, err := env.affiliates.RecomputeAll(env.ctx)
	require.NoError(t, err)
	require.Len(t, resp.Repaired, 2)
	assert.Equal(t, dto.CounterRepair{Target: "affiliate", ID: aff2.ID, LeadsBefore: 40, ConversionsBefore: 7, LeadsAfter: 1}, resp.Repaired[0])
	assert.Equal(t, dto.CounterRepair{Target: "assignment", ID: as1.ID, LeadsAfter: 1}, resp.Repaired[1])

	assert.Equal(t, int64(1), env.affiliate(t, aff2.ID).TotalLeads)
	assert.Equal(t, int64(1), env.assignment(t, as1.ID).LeadsGenerated)
}

func TestRecomputeAllRejectsConcurrentRuns(t *testing.T) {
	env := newFlowEnv(t)
	locker := NewLocker(nil, "", 0)
	flow := NewAffiliateFlow(env.userRepo, env.affiliateRepo, env.assignmentRepo, env.formRepo, env.counters, locker, env.db.DB, 4)

	unlock, ok, err := locker.TryLock(env.ctx, recomputeLockName)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = flow.RecomputeAll(env.ctx)
	assert.True(t, IsRecomputeInProgress(err))

	unlock()
	_, err = flow.RecomputeAll(env.ctx)
	assert.NoError(t, err)
}
