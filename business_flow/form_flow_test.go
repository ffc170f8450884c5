package businessflow

import (
	"testing"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndToggleForm(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewFormFlow(env.formRepo, env.leadRepo)
	admin := env.admin(t)

	item, err := flow.CreateForm(env.ctx, admin, &dto.CreateFormRequest{
		Name: " Demo request ",
		Fields: []dto.FormFieldDTO{
			{Name: "email", Type: "email", Label: "Email", Required: true},
			{Name: "size", Type: "select", Label: "Company size", Options: []string{"1-10", "11-50"}, Order: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Demo request", item.Name)
	assert.Equal(t, "lead_capture", item.FormType)
	assert.True(t, item.IsActive)
	assert.Contains(t, item.EmbedCode, item.UUID)
	require.Len(t, item.Fields, 2)

	form, err := env.formRepo.ByUUID(env.ctx, item.UUID)
	require.NoError(t, err)
	env.submit(t, form, "", map[string]any{"email": "f@example.com"})

	got, err := flow.GetForm(env.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalLeads)

	off, err := flow.SetFormActive(env.ctx, item.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	_, err = env.attribution.SubmitLead(env.ctx, &dto.SubmitLeadRequest{
		FormUUID: item.UUID,
		FormData: map[string]any{"email": "late@example.com"},
	}, nil)
	assert.True(t, IsFormInactive(err))

	active, err := flow.ListForms(env.ctx, &dto.ListFormsRequest{Active: utils.ToPtr(true)})
	require.NoError(t, err)
	assert.Zero(t, active.Total)

	all, err := flow.ListForms(env.ctx, &dto.ListFormsRequest{Search: "demo"})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	assert.Equal(t, int64(1), all.Items[0].TotalLeads)

	_, err = flow.GetForm(env.ctx, 424242)
	assert.True(t, IsFormNotFound(err))
}

func TestCreateFormValidation(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewFormFlow(env.formRepo, env.leadRepo)
	admin := env.admin(t)
	email := dto.FormFieldDTO{Name: "email", Type: "email", Label: "Email"}

	tests := []struct {
		name string
		req  *dto.CreateFormRequest
	}{
		{"no fields", &dto.CreateFormRequest{Name: "x"}},
		{"blank name", &dto.CreateFormRequest{Name: " ", Fields: []dto.FormFieldDTO{email}}},
		{"duplicate field", &dto.CreateFormRequest{Name: "x", Fields: []dto.FormFieldDTO{email, email}}},
		{"unknown type", &dto.CreateFormRequest{Name: "x", Fields: []dto.FormFieldDTO{{Name: "a", Type: "date", Label: "A"}}}},
		{"choice without options", &dto.CreateFormRequest{Name: "x", Fields: []dto.FormFieldDTO{{Name: "a", Type: "radio", Label: "A"}}}},
		{"unknown form type", &dto.CreateFormRequest{Name: "x", FormType: "survey", Fields: []dto.FormFieldDTO{email}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.CreateForm(env.ctx, admin, tt.req)
			assert.True(t, IsValidation(err))
		})
	}

	ops, err := env.fixtures.CreateTestUser(models.UserRoleOperations)
	require.NoError(t, err)
	_, err = flow.CreateForm(env.ctx, Actor{UserID: ops.ID, Role: ops.Role}, &dto.CreateFormRequest{Name: "x", Fields: []dto.FormFieldDTO{email}})
	assert.True(t, IsPermissionDenied(err))
}
