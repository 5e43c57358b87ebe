package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
	exportService *services.ExportService
}

func NewReportHandler(reportService *services.ReportService, exportService *services.ExportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		exportService: exportService,
	}
}

// @Summary Performance Report
// @Description Completion, on-time delivery, satisfaction, profitability by type and risk counts
// @Tags Reports
// @Produce json
// @Produce application/octet-stream
// @Param startDate query string false "Period start (YYYY-MM-DD)"
// @Param endDate query string false "Period end (YYYY-MM-DD)"
// @Param clientId query string false "Client"
// @Param contractType query string false "Contract type"
// @Param status query string false "Contract status"
// @Param refresh query bool false "Bypass the report cache"
// @Param format query string false "Download as csv, xlsx or pdf"
// @Success 200 {object} Response{data=services.PerformanceReport}
// @Failure 400 {object} Response
// @Security BearerAuth
// @Router /contracts/reports/performance [get]
func (h *ReportHandler) Performance(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	report, err := h.reportService.Performance(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	h.render(c, services.ReportPerformance, report)
}

// @Summary Financial Report
// @Description Contract value, recognized and deferred revenue, billing metrics and collection rate
// @Tags Reports
// @Produce json
// @Produce application/octet-stream
// @Param startDate query string false "Period start (YYYY-MM-DD)"
// @Param endDate query string false "Period end (YYYY-MM-DD)"
// @Param clientId query string false "Client"
// @Param contractType query string false "Contract type"
// @Param status query string false "Contract status"
// @Param refresh query bool false "Bypass the report cache"
// @Param format query string false "Download as csv, xlsx or pdf"
// @Success 200 {object} Response{data=services.FinancialReport}
// @Failure 400 {object} Response
// @Security BearerAuth
// @Router /contracts/reports/financial [get]
func (h *ReportHandler) Financial(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	report, err := h.reportService.Financial(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	h.render(c, services.ReportFinancial, report)
}

// @Summary Client Analysis Report
// @Description Per-client value, payments, on-time ratio and risk rating
// @Tags Reports
// @Produce json
// @Produce application/octet-stream
// @Param startDate query string false "Period start (YYYY-MM-DD)"
// @Param endDate query string false "Period end (YYYY-MM-DD)"
// @Param clientId query string false "Client"
// @Param contractType query string false "Contract type"
// @Param status query string false "Contract status"
// @Param refresh query bool false "Bypass the report cache"
// @Param format query string false "Download as csv, xlsx or pdf"
// @Success 200 {object} Response{data=services.ClientAnalysisReport}
// @Failure 400 {object} Response
// @Security BearerAuth
// @Router /contracts/reports/client-analysis [get]
func (h *ReportHandler) ClientAnalysis(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	report, err := h.reportService.ClientAnalysis(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	h.render(c, services.ReportClientAnalysis, report)
}

// render writes the report as JSON, or as a download when format is set
func (h *ReportHandler) render(c *gin.Context, kind string, report any) {
	format := c.Query("format")
	if format == "" || format == "json" {
		respond(c, http.StatusOK, report, "")
		return
	}

	file, err := h.exportService.ExportReport(kind, format, report)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *ReportHandler) parseFilter(c *gin.Context) (services.ReportFilter, bool) {
	var d dates
	filter := services.ReportFilter{
		StartDate:    d.query(c, "startDate"),
		EndDate:      d.query(c, "endDate"),
		ClientID:     c.Query("clientId"),
		ContractType: c.Query("contractType"),
		Status:       c.Query("status"),
		Refresh:      queryBool(c, "refresh"),
	}
	if d.err != nil {
		respondError(c, d.err)
		return filter, false
	}
	return filter, true
}
