package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/config"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	"github.com/xuri/excelize/v2"
)

const (
	leadsSheetName   = "Leads"
	summarySheetName = "Summary"
)

var leadExportHeader = []string{"Email", "Name", "Phone", "Form", "Status", "Affiliate", "UTM Source", "Created", "Converted"}

// ExportFlow renders lead listings as spreadsheets
type ExportFlow interface {
	ExportLeads(ctx context.Context, actor Actor, req *dto.ListLeadsRequest) (string, []byte, error)
}

// ExportFlowImpl implements ExportFlow
type ExportFlowImpl struct {
	leadRepo repository.LeadRepository
	formRepo repository.FormRepository
	cfg      config.StatsConfig
	now      func() time.Time
}

// NewExportFlow creates a new export flow
func NewExportFlow(leadRepo repository.LeadRepository, formRepo repository.FormRepository, cfg config.StatsConfig) ExportFlow {
	return &ExportFlowImpl{
		leadRepo: leadRepo,
		formRepo: formRepo,
		cfg:      cfg,
		now:      utils.UTCNow,
	}
}

// ExportLeads writes the leads visible to the actor into an xlsx workbook.
// The summary sheet counts every matching lead even when the listing is capped.
func (f *ExportFlowImpl) ExportLeads(ctx context.Context, actor Actor, req *dto.ListLeadsRequest) (string, []byte, error) {
	if req == nil {
		req = &dto.ListLeadsRequest{}
	}
	now := f.now()
	filter, err := leadListFilter(ctx, f.formRepo, actor, req, now, f.cfg.MaxWindowDays)
	if err != nil {
		return "", nil, err
	}

	total, err := f.leadRepo.Count(ctx, filter)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_LEADS_FAILED", "Failed to count leads", err)
	}
	conversions, err := f.leadRepo.CountConversions(ctx, filter)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_LEADS_FAILED", "Failed to count conversions", err)
	}
	leads, err := f.leadRepo.ListWithRelations(ctx, filter, "", f.cfg.ExportMaxLeads, 0)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_LEADS_FAILED", "Failed to fetch leads", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), leadsSheetName); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare workbook", err)
	}
	header := leadExportHeader
	_ = xl.SetSheetRow(leadsSheetName, "A1", &header)

	for i, l := range leads {
		record := leadExportRecord(l)
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(leadsSheetName, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write lead row", err)
		}
	}

	if _, err := xl.NewSheet(summarySheetName); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare workbook", err)
	}
	summary := [][]any{
		{"Total Leads", total},
		{"Conversions", conversions},
		{"Conversion Rate (%)", models.ConversionRate(total, conversions)},
		{"Exported Rows", len(leads)},
		{"Generated At", now.Format(time.RFC3339)},
	}
	for i, row := range summary {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := xl.SetSheetRow(summarySheetName, cellRef, &row); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write summary", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("leads_export_%s.xlsx", now.Format("20060102"))
	return filename, buf.Bytes(), nil
}

func leadExportRecord(l *models.Lead) []string {
	formName, affiliateCode := "", ""
	if l.Form != nil {
		formName = l.Form.Name
	}
	if l.Affiliate != nil {
		affiliateCode = l.Affiliate.AffiliateCode
	}
	converted := "No"
	if l.IsConverted() {
		converted = "Yes"
	}
	return []string{
		l.Email,
		l.Name,
		l.Phone,
		formName,
		string(l.Status),
		affiliateCode,
		l.UTMSource,
		l.CreatedAt.UTC().Format(time.RFC3339),
		converted,
	}
}
