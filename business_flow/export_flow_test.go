package businessflow

import (
	"bytes"
	"testing"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportLeadsWorkbook(t *testing.T) {
	env := newFlowEnv(t)
	admin := env.admin(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	affiliate, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)

	env.insertLead(t, form, affiliate, models.LeadStatusClosedWon, daysAgo(1, 9), "google")
	env.insertLead(t, form, nil, models.LeadStatusNew, daysAgo(2, 9), "")
	env.insertLead(t, form, nil, models.LeadStatusNew, daysAgo(3, 9), "")

	cfg := testStatsConfig
	cfg.ExportMaxLeads = 2
	flow := NewExportFlow(env.leadRepo, env.formRepo, cfg).(*ExportFlowImpl)
	flow.now = func() time.Time { return fixedNow }

	filename, data, err := flow.ExportLeads(env.ctx, admin, nil)
	require.NoError(t, err)
	assert.Equal(t, "leads_export_20250618.xlsx", filename)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows(leadsSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus the capped rows")
	assert.Equal(t, leadExportHeader, rows[0])
	assert.Equal(t, form.Name, rows[1][3])
	assert.Equal(t, "closed_won", rows[1][4])
	assert.Equal(t, "AFF001", rows[1][5])
	assert.Equal(t, "google", rows[1][6])
	assert.Equal(t, "Yes", rows[1][8])
	assert.Equal(t, "No", rows[2][8])

	total, err := xl.GetCellValue(summarySheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
	exported, err := xl.GetCellValue(summarySheetName, "B4")
	require.NoError(t, err)
	assert.Equal(t, "2", exported)
}

func TestExportLeadsRespectsScope(t *testing.T) {
	env := newFlowEnv(t)
	form, err := env.fixtures.CreateTestForm(true)
	require.NoError(t, err)
	mine, err := env.fixtures.CreateTestAffiliate("AFF001")
	require.NoError(t, err)
	theirs, err := env.fixtures.CreateTestAffiliate("AFF002")
	require.NoError(t, err)

	env.insertLead(t, form, mine, models.LeadStatusNew, daysAgo(1, 9), "")
	env.insertLead(t, form, theirs, models.LeadStatusNew, daysAgo(1, 10), "")

	flow := NewExportFlow(env.leadRepo, env.formRepo, testStatsConfig)
	_, data, err := flow.ExportLeads(env.ctx, affiliateActor(mine), &dto.ListLeadsRequest{})
	require.NoError(t, err)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()
	rows, err := xl.GetRows(leadsSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AFF001", rows[1][5])

	_, _, err = flow.ExportLeads(env.ctx, Actor{UserID: 1, Role: models.UserRole("guest")}, nil)
	assert.True(t, IsPermissionDenied(err))
}
