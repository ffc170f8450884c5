package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCounterStore = errors.New("counter store unavailable")

// failingAffiliateRepo breaks the lead counter increment only
type failingAffiliateRepo struct {
	repository.AffiliateRepository
}

func (failingAffiliateRepo) IncrementLeads(context.Context, uint) error {
	return errCounterStore
}

// failingAssignmentRepo breaks the assignment increment after the affiliate write succeeded
type failingAssignmentRepo struct {
	repository.AffiliateFormAssignmentRepository
}

func (failingAssignmentRepo) IncrementLeads(context.Context, uint) error {
	return errCounterStore
}

func TestSubmitLeadAttributesToAffiliate(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	affiliate, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)
	assignment, err := env.fixtures.CreateTestAssignment(affiliate.ID, form.ID)
	require.NoError(t, err)

	before := env.affiliate(t, affiliate.ID)
	assert.Equal(t, int64(0), before.TotalLeads)

	payload := map[string]any{"email": "jane@example.com", "name": "Jane", "company": "Acme", "size": float64(42)}
	result, err := env.attribution.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
		FormUUID:     form.UUID.String(),
		FormData:     payload,
		ReferralCode: "AFF001",
		UTMSource:    "google",
		UTMParams:    map[string]string{"utm_medium": "cpc", "utm_source": "ignored"},
	}, NewClientMetadata("10.0.0.1", "Mozilla/5.0"))
	require.NoError(t, err)
	require.Nil(t, result.Warning)

	lead := result.Lead
	require.NotNil(t, lead.AffiliateID)
	assert.Equal(t, affiliate.ID, *lead.AffiliateID)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Equal(t, "jane@example.com", lead.Email)
	assert.Equal(t, "Jane", lead.Name)
	assert.Equal(t, "", lead.Phone)
	assert.Equal(t, "google", lead.UTMSource)
	assert.Equal(t, "cpc", lead.UTMMedium)
	assert.Equal(t, "", lead.UTMCampaign)
	assert.Equal(t, "", lead.UTMTerm)
	assert.Equal(t, "", lead.UTMContent)
	assert.Equal(t, "10.0.0.1", lead.IPAddress)

	stored, err := env.leadRepo.ByUUID(env.ctx, lead.UUID.String())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.JSONMap(payload), stored.FormData, "payload is stored verbatim")

	after := env.affiliate(t, affiliate.ID)
	assert.Equal(t, int64(1), after.TotalLeads)
	assert.Equal(t, int64(0), after.TotalConversions)
	assert.Equal(t, float64(0), after.ConversionRate())

	a := env.assignment(t, assignment.ID)
	assert.Equal(t, int64(1), a.LeadsGenerated)
	assert.Equal(t, int64(0), a.Conversions)
}

func TestSubmitLeadUnknownReferralCode(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	for _, code := range []string{"NOPE", "", "   "} {
		t.Run(fmt.Sprintf("code %q", code), func(t *testing.T) {
			result := env.submit(t, form, code, map[string]any{"email": "x@example.com"})
			assert.Nil(t, result.Lead.AffiliateID)
			assert.NotZero(t, result.Lead.ID)
		})
	}

	t.Run("inactive affiliate", func(t *testing.T) {
		affiliate, err := env.fixtures.CreateTestAffiliate("SLEEPY")
		require.NoError(t, err)
		require.NoError(t, env.affiliateRepo.SetActive(env.ctx, affiliate.ID, false))

		result := env.submit(t, form, "SLEEPY", map[string]any{"email": "y@example.com"})
		assert.Nil(t, result.Lead.AffiliateID)
		assert.Equal(t, int64(0), env.affiliate(t, affiliate.ID).TotalLeads)
	})
}

func TestSubmitLeadFieldFallbacks(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	tests := []struct {
		name      string
		payload   map[string]any
		wantEmail string
		wantName  string
		wantPhone string
	}{
		{
			name:      "capitalised email only",
			payload:   map[string]any{"Email": "cap@example.com"},
			wantEmail: "cap@example.com",
		},
		{
			name:      "email_address fallback",
			payload:   map[string]any{"email_address": "addr@example.com", "full_name": "Full Name", "Phone": "+1 555"},
			wantEmail: "addr@example.com",
			wantName:  "Full Name",
			wantPhone: "+1 555",
		},
		{
			name:      "earlier key wins",
			payload:   map[string]any{"email": "first@example.com", "Email": "second@example.com", "name": "n1", "Name": "n3", "phone": "1", "Phone": "2"},
			wantEmail: "first@example.com",
			wantName:  "n1",
			wantPhone: "1",
		},
		{
			name:      "blank earlier key is skipped",
			payload:   map[string]any{"email": "  ", "Email": "blank@example.com", "name": "", "Name": "Cap"},
			wantEmail: "blank@example.com",
			wantName:  "Cap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := env.submit(t, form, "", tt.payload).Lead
			assert.Equal(t, tt.wantEmail, lead.Email)
			assert.Equal(t, tt.wantName, lead.Name)
			assert.Equal(t, tt.wantPhone, lead.Phone)
		})
	}
}

func TestSubmitLeadValidation(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload map[string]any
		message string
	}{
		{name: "no email keys", payload: map[string]any{"name": "Nobody", "mail": "n@example.com"}, message: "email required"},
		{name: "empty payload", payload: nil, message: "email required"},
		{name: "non-string email", payload: map[string]any{"email": nil}, message: "email required"},
		{name: "malformed email", payload: map[string]any{"email": "not-an-email"}, message: "email is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.attribution.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
				FormUUID: form.UUID.String(),
				FormData: tt.payload,
			}, nil)
			require.Error(t, err)
			assert.True(t, IsValidation(err))

			var be *BusinessError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, tt.message, be.Message)
		})
	}

	count, err := env.leadRepo.Count(env.ctx, models.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSubmitLeadRejectsInactiveAndUnknownForms(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(false)
	require.NoError(t, err)
	affiliate, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)
	_, err = env.fixtures.CreateTestAssignment(affiliate.ID, form.ID)
	require.NoError(t, err)

	_, err = env.attribution.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
		FormUUID:     form.UUID.String(),
		FormData:     map[string]any{"email": "late@example.com"},
		ReferralCode: "AFF001",
	}, nil)
	assert.ErrorIs(t, err, ErrFormInactive)

	count, err := env.leadRepo.Count(env.ctx, models.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(0), env.affiliate(t, affiliate.ID).TotalLeads)

	_, err = env.attribution.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
		FormUUID: "6f1c1f3e-0000-4000-8000-000000000000",
		FormData: map[string]any{"email": "a@example.com"},
	}, nil)
	assert.True(t, IsNotFound(err))

	_, err = env.attribution.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
		FormUUID: "not-a-uuid",
		FormData: map[string]any{"email": "a@example.com"},
	}, nil)
	assert.True(t, IsFormNotFound(err))
}

func TestSubmitLeadCounterFailureKeepsLead(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	affiliate, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)
	assignment, err := env.fixtures.CreateTestAssignment(affiliate.ID, form.ID)
	require.NoError(t, err)

	t.Run("affiliate counter fails", func(t *testing.T) {
		counters := NewCounterMaintainer(failingAffiliateRepo{env.affiliateRepo}, env.assignmentRepo, env.leadRepo, env.db.DB)
		flow := NewAttributionFlow(env.formRepo, env.affiliateRepo, env.leadRepo, counters, env.db.DB)

		result, err := flow.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
			FormUUID:     form.UUID.String(),
			FormData:     map[string]any{"email": "kept@example.com"},
			ReferralCode: "AFF001",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Warning)
		assert.True(t, IsConsistencyWarning(result.Warning))
		assert.ErrorIs(t, result.Warning, errCounterStore)
		assert.Equal(t, affiliate.ID, result.Warning.AffiliateID)
		assert.Equal(t, result.Lead.ID, result.Warning.LeadID)

		stored, err := env.leadRepo.ByUUID(env.ctx, result.Lead.UUID.String())
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, int64(0), env.affiliate(t, affiliate.ID).TotalLeads)
	})

	t.Run("assignment counter fails after affiliate write", func(t *testing.T) {
		counters := NewCounterMaintainer(env.affiliateRepo, failingAssignmentRepo{env.assignmentRepo}, env.leadRepo, env.db.DB)
		flow := NewAttributionFlow(env.formRepo, env.affiliateRepo, env.leadRepo, counters, env.db.DB)

		result, err := flow.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
			FormUUID:     form.UUID.String(),
			FormData:     map[string]any{"email": "kept2@example.com"},
			ReferralCode: "AFF001",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Warning)

		// the affiliate increment rolled back with the failed assignment increment
		assert.Equal(t, int64(0), env.affiliate(t, affiliate.ID).TotalLeads)
		assert.Equal(t, int64(0), env.assignment(t, assignment.ID).LeadsGenerated)
	})

	t.Run("recompute repairs the drift", func(t *testing.T) {
		result, err := env.counters.RecomputeAffiliate(env.ctx, affiliate.ID)
		require.NoError(t, err)
		assert.True(t, result.Repaired)
		assert.Equal(t, int64(2), result.After.Leads)
		assert.Equal(t, int64(2), env.affiliate(t, affiliate.ID).TotalLeads)

		aResult, err := env.counters.RecomputeAssignment(env.ctx, assignment.ID)
		require.NoError(t, err)
		assert.True(t, aResult.Repaired)
		assert.Equal(t, int64(2), env.assignment(t, assignment.ID).LeadsGenerated)
	})
}

func TestConcurrentSubmissionsKeepExactCounters(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	affiliate, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)
	assignment, err := env.fixtures.CreateTestAssignment(affiliate.ID, form.ID)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.attribution.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
				FormUUID:     form.UUID.String(),
				FormData:     map[string]any{"email": fmt.Sprintf("c%d@example.com", i)},
				ReferralCode: "AFF001",
			}, nil)
			if err != nil {
				errs <- err
				return
			}
			if result.Warning != nil {
				errs <- result.Warning
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("submission failed: %v", err)
	}

	assert.Equal(t, int64(n), env.affiliate(t, affiliate.ID).TotalLeads)
	assert.Equal(t, int64(n), env.assignment(t, assignment.ID).LeadsGenerated)
}
