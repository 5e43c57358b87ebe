package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/storage"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var exportFormats = []string{FormatCSV, FormatXLSX, FormatPDF}

var contentTypes = map[string]string{
	FormatCSV:  "text/csv",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
}

// ExportTable is one titled grid of a rendered report
type ExportTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// ExportFile is a rendered document ready to be served
type ExportFile struct {
	Data        []byte
	Filename    string
	ContentType string
}

// LegalReviewDocument is the stored legal-review PDF of a contract
type LegalReviewDocument struct {
	ContractID  string    `json:"contractId"`
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	Size        int       `json:"size"`
	Content     string    `json:"content"` // base64
	GeneratedAt time.Time `json:"generatedAt"`
}

type ExportService struct {
	repos    *repository.Repositories
	storage  *storage.LocalStorage
	auditSvc *AuditService
}

func NewExportService(repos *repository.Repositories, storage *storage.LocalStorage, auditSvc *AuditService) *ExportService {
	return &ExportService{repos: repos, storage: storage, auditSvc: auditSvc}
}

// ExportReport renders one of the report types in the requested format
func (s *ExportService) ExportReport(kind, format string, report any) (*ExportFile, error) {
	if !isExportFormat(format) {
		return nil, apperr.New(apperr.KindInvalidInput, "format must be one of: %s", strings.Join(exportFormats, ", "))
	}

	var title string
	var tables []ExportTable
	switch r := report.(type) {
	case *PerformanceReport:
		title, tables = "Contract Performance Report", performanceTables(r)
	case *FinancialReport:
		title, tables = "Contract Financial Report", financialTables(r)
	case *ClientAnalysisReport:
		title, tables = "Client Analysis Report", clientTables(r)
	default:
		return nil, fmt.Errorf("unsupported report type %T", report)
	}

	var data []byte
	var err error
	switch format {
	case FormatCSV:
		data, err = renderCSV(title, tables)
	case FormatXLSX:
		data, err = renderXLSX(title, tables)
	case FormatPDF:
		data, err = renderPDF(title, tables)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s report: %w", format, err)
	}

	return &ExportFile{
		Data:        data,
		Filename:    fmt.Sprintf("%s_report_%s.%s", strings.ReplaceAll(kind, "-", "_"), time.Now().Format(dateLayout), format),
		ContentType: contentTypes[format],
	}, nil
}

func isExportFormat(format string) bool {
	for _, f := range exportFormats {
		if f == format {
			return true
		}
	}
	return false
}

func renderCSV(title string, tables []ExportTable) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{title, time.Now().Format("2006-01-02 15:04")})
	for _, table := range tables {
		_ = writer.Write([]string{""})
		_ = writer.Write([]string{table.Title})
		_ = writer.Write(table.Headers)
		for _, row := range table.Rows {
			_ = writer.Write(row)
		}
	}

	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func renderXLSX(title string, tables []ExportTable) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, table := range tables {
		sheet := sheetName(table.Title, i)
		if i == 0 {
			_ = f.SetSheetName("Sheet1", sheet)
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}

		_ = f.SetCellValue(sheet, "A1", title)
		_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)
		_ = f.SetCellValue(sheet, "A2", table.Title)

		for col, header := range table.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 4)
			_ = f.SetCellValue(sheet, cell, header)
			_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
		}
		for r, row := range table.Rows {
			for col, value := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+5)
				if n, err := strconv.ParseFloat(value, 64); err == nil {
					_ = f.SetCellValue(sheet, cell, n)
				} else {
					_ = f.SetCellValue(sheet, cell, value)
				}
			}
		}
		if len(table.Headers) > 0 {
			last, _ := excelize.ColumnNumberToName(len(table.Headers))
			_ = f.SetColWidth(sheet, "A", last, 20)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sheetName derives a unique sheet name within Excel's 31 character limit
func sheetName(title string, index int) string {
	name := strings.NewReplacer("/", " ", "\\", " ", "?", "", "*", "", "[", "(", "]", ")", ":", "").Replace(title)
	suffix := fmt.Sprintf(" %d", index+1)
	if len(name)+len(suffix) > 31 {
		name = name[:31-len(suffix)]
	}
	return name + suffix
}

func renderPDF(title string, tables []ExportTable) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, tr(title))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(40, 8, "Generated "+time.Now().Format("2006-01-02 15:04"))
	pdf.Ln(12)

	const pageWidth = 277.0
	for _, table := range tables {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(40, 10, tr(table.Title))
		pdf.Ln(10)
		if len(table.Headers) == 0 {
			continue
		}

		width := pageWidth / float64(len(table.Headers))
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(224, 224, 224)
		for _, header := range table.Headers {
			pdf.CellFormat(width, 7, tr(header), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range table.Rows {
			for _, value := range row {
				pdf.CellFormat(width, 6, tr(truncate(value, int(width/1.6))), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func performanceTables(r *PerformanceReport) []ExportTable {
	summary := ExportTable{
		Title:   "Summary",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total contracts", strconv.Itoa(r.TotalContracts)},
			{"Active contracts", strconv.Itoa(r.ActiveContracts)},
			{"Milestones", strconv.Itoa(r.TotalMilestones)},
			{"Completed milestones", strconv.Itoa(r.CompletedMilestones)},
			{"Completion rate %", money(r.CompletionRate)},
			{"On-time delivery %", money(r.OnTimeDelivery)},
			{"Client satisfaction (0-5)", money(r.ClientSatisfaction)},
		},
	}

	profit := ExportTable{
		Title:   "Profitability by contract type",
		Headers: []string{"Contract type", "Contracts", "Total value", "Amendment impact", "Recognized revenue", "Collected", "Revenue share %"},
	}
	for _, row := range r.Profitability {
		profit.Rows = append(profit.Rows, []string{
			row.ContractType, strconv.Itoa(row.Contracts), money(row.TotalValue), money(row.AmendmentImpact),
			money(row.RecognizedRevenue), money(row.Collected), money(row.RevenueShare),
		})
	}

	risk := ExportTable{
		Title:   "Risk assessment",
		Headers: []string{"Indicator", "Value"},
	}
	for _, level := range []string{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical} {
		risk.Rows = append(risk.Rows, []string{level + " risk contracts", strconv.Itoa(r.RiskAssessment.ByLevel[level])})
	}
	risk.Rows = append(risk.Rows,
		[]string{"Delayed milestones", strconv.Itoa(r.RiskAssessment.DelayedMilestones)},
		[]string{"Overdue billings", strconv.Itoa(r.RiskAssessment.OverdueBillings)},
		[]string{"Expiring in 30 days", strconv.Itoa(r.RiskAssessment.ExpiringIn30Days)},
		[]string{"Pending amendments", strconv.Itoa(r.RiskAssessment.PendingAmendments)},
		[]string{"Average budget utilization %", money(r.RiskAssessment.AverageUtilization)},
	)
	return []ExportTable{summary, profit, risk}
}

func financialTables(r *FinancialReport) []ExportTable {
	summary := ExportTable{
		Title:   "Summary",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total contract value", money(r.TotalContractValue)},
			{"Original contract value", money(r.OriginalContractValue)},
			{"Amendment impact", money(r.AmendmentImpact)},
			{"Recognized revenue", money(r.RecognizedRevenue)},
			{"Deferred revenue", money(r.DeferredRevenue)},
			{"Unbilled revenue", money(r.UnbilledRevenue)},
			{"Scheduled billing", money(r.Billing.Scheduled)},
			{"Billed", money(r.Billing.Billed)},
			{"Paid", money(r.Billing.Paid)},
			{"Outstanding", money(r.Billing.Outstanding)},
			{"Overdue", money(r.Billing.Overdue)},
			{"Invoices", strconv.Itoa(r.Billing.InvoiceCount)},
			{"Overdue invoices", strconv.Itoa(r.Billing.OverdueCount)},
			{"Collection rate %", money(r.Billing.CollectionRate)},
		},
	}

	contracts := ExportTable{
		Title:   "Revenue by contract",
		Headers: []string{"Contract", "Number", "Client", "Total value", "Recognized", "Deferred", "Billed", "Paid"},
	}
	for _, c := range r.Contracts {
		contracts.Rows = append(contracts.Rows, []string{
			c.ContractID, c.ContractNumber, c.ClientName, money(c.TotalValue),
			money(c.RecognizedRevenue), money(c.DeferredRevenue), money(c.Billed), money(c.Paid),
		})
	}
	return []ExportTable{summary, contracts}
}

func clientTables(r *ClientAnalysisReport) []ExportTable {
	table := ExportTable{
		Title:   "Clients",
		Headers: []string{"Client", "Company", "Contracts", "Active", "Total value", "Paid", "Outstanding", "Overdue", "On-time ratio", "Risk score", "Rating"},
	}
	for _, c := range r.Clients {
		table.Rows = append(table.Rows, []string{
			c.ClientID, c.CompanyName, strconv.Itoa(c.ContractCount), strconv.Itoa(c.ActiveContracts),
			money(c.TotalValue), money(c.Paid), money(c.Outstanding), money(c.Overdue),
			money(c.OnTimePaymentRatio), strconv.Itoa(c.RiskScore), c.CreditRating,
		})
	}
	return []ExportTable{table}
}

// LegalReview renders the contract with its amendments, milestones and
// billing into a PDF, stores it and returns it base64 encoded.
func (s *ExportService) LegalReview(ctx context.Context, contractID string, actor Actor) (*LegalReviewDocument, error) {
	contract, err := s.repos.Contract.FindByContractID(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	amendments, err := s.repos.Amendment.FindByContract(ctx, contractID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load amendments: %w", err)
	}
	milestones, err := s.repos.Milestone.FindByContract(ctx, contractID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load milestones: %w", err)
	}
	schedules, err := s.repos.BillingSchedule.FindByContract(ctx, &repository.BillingQuery{ContractID: contractID})
	if err != nil {
		return nil, fmt.Errorf("failed to load billing schedules: %w", err)
	}

	data, err := renderLegalReview(contract, amendments, milestones, schedules)
	if err != nil {
		return nil, fmt.Errorf("failed to render legal review: %w", err)
	}

	filename := fmt.Sprintf("legal-review-%s.pdf", contract.ContractID)
	path, err := s.storage.Save(data, filename, "legal-review")
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actor, AuditExport, "Contract", contractID, "Legal review stored at "+path)
	return &LegalReviewDocument{
		ContractID:  contractID,
		Path:        path,
		Filename:    filename,
		Size:        len(data),
		Content:     base64.StdEncoding.EncodeToString(data),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func renderLegalReview(c *models.Contract, amendments []models.ContractAmendment, milestones []models.Milestone, schedules []models.BillingSchedule) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Legal review "+c.ContractNumber), true)
	pdf.AddPage()

	heading := func(text string) {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, tr(text))
		pdf.Ln(9)
		pdf.SetFont("Arial", "", 10)
	}
	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(50, 6, tr(label))
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, tr(value), "", "L", false)
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr("Contract Legal Review"))
	pdf.Ln(12)

	field("Contract", fmt.Sprintf("%s (%s)", c.ContractNumber, c.ContractID))
	field("Title", c.Title)
	field("Client", fmt.Sprintf("%s (%s)", c.ClientName, c.ClientID))
	field("Type", c.ContractType)
	field("Status", c.Status)
	field("Period", fmt.Sprintf("%s to %s (%d days)", c.StartDate.Format(dateLayout), c.EndDate.Format(dateLayout), c.DurationDays()))
	field("Total value", fmt.Sprintf("%s %s (original %s)", money(c.TotalValue), c.Currency, money(c.OriginalValue)))
	field("Risk level", c.RiskLevel)
	field("Auto renew", strconv.FormatBool(c.AutoRenew))

	heading("Terms")
	field("Scope", c.Terms.Scope)
	field("Deliverables", c.Terms.Deliverables)
	field("Acceptance criteria", c.Terms.AcceptanceCriteria)
	field("Warranty", c.Terms.Warranty)
	field("Payment terms", c.Terms.PaymentTerms)

	heading(fmt.Sprintf("Amendments (%d)", len(amendments)))
	for _, a := range amendments {
		field(a.AmendmentNumber, fmt.Sprintf("%s, %s on %s. Value %+.2f (%s to %s), timeline %+d days. %s",
			a.Type, a.Status, a.AmendmentDate.Format(dateLayout), a.ImpactAnalysis.ValueChange,
			money(a.OriginalValue), money(a.NewValue), a.ImpactAnalysis.TimelineChange, a.Description))
	}

	heading(fmt.Sprintf("Milestones (%d)", len(milestones)))
	for _, m := range milestones {
		field(m.MilestoneID, fmt.Sprintf("%s: %s, due %s, %.2f%% (%s)",
			m.Title, m.Status, m.TargetDate.Format(dateLayout), m.Percentage, money(m.Value)))
	}

	heading(fmt.Sprintf("Billing schedules (%d)", len(schedules)))
	for _, b := range schedules {
		field(b.ScheduleID, fmt.Sprintf("%s %s on %s, total %s %s",
			b.BillingType, b.Status, b.BillingDate.Format(dateLayout), money(b.TotalAmount), b.Currency))
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
