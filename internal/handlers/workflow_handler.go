package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/services"
)

// defaultExpirationWindow is the lookahead of expiration alerts when none is given
const defaultExpirationWindow = 30

type WorkflowHandler struct {
	workflowService *services.WorkflowService
	alertService    *services.AlertService
}

func NewWorkflowHandler(workflowService *services.WorkflowService, alertService *services.AlertService) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		alertService:    alertService,
	}
}

type ActivateRequest struct {
	ContractID              string `json:"contractId" binding:"required"`
	CreateDefaultMilestones bool   `json:"createDefaultMilestones"`
	CreateBilling           bool   `json:"createBilling"`
}

type RenewRequest struct {
	ContractID        string  `json:"contractId" binding:"required"`
	TermMonths        int     `json:"termMonths" binding:"gte=0"`
	ValueAdjustment   float64 `json:"valueAdjustment"`
	NewContractNumber string  `json:"newContractNumber"`
}

type EscalateRequest struct {
	ContractID    string `json:"contractId" binding:"required"`
	MilestoneID   string `json:"milestoneId" binding:"required"`
	ThresholdDays int    `json:"thresholdDays" binding:"gte=0"`
}

type TriggerBillingRequest struct {
	ContractID  string `json:"contractId" binding:"required"`
	MilestoneID string `json:"milestoneId" binding:"required"`
}

type RecurringBillingRequest struct {
	AsOf string `json:"asOf"`
}

type GenerateAlertsRequest struct {
	Days int `json:"days" binding:"gte=0"`
}

type UpdateAlertRequest struct {
	Status string `json:"status" binding:"required"`
}

// @Summary Activate Contract
// @Description Moves a Draft or Pending contract to Active, optionally with default milestones and billing
// @Tags Workflow
// @Accept json
// @Produce json
// @Param request body ActivateRequest true "Activation"
// @Success 200 {object} Response{data=services.ActivationResult}
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/workflow/activate [post]
func (h *WorkflowHandler) Activate(c *gin.Context) {
	var req ActivateRequest
	if !bindJSON(c, "workflow", &req) {
		return
	}
	result, err := h.workflowService.Activate(c.Request.Context(), req.ContractID, services.ActivateOptions{
		CreateDefaultMilestones: req.CreateDefaultMilestones,
		CreateBilling:           req.CreateBilling,
	}, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Contract activated")
}

// @Summary Renew Contract
// @Description Creates the successor contract and marks the current one Renewed
// @Tags Workflow
// @Accept json
// @Produce json
// @Param request body RenewRequest true "Renewal"
// @Success 201 {object} Response{data=services.RenewalResult}
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/workflow/renew [post]
func (h *WorkflowHandler) Renew(c *gin.Context) {
	var req RenewRequest
	if !bindJSON(c, "workflow", &req) {
		return
	}
	result, err := h.workflowService.Renew(c.Request.Context(), req.ContractID, services.RenewOptions{
		TermMonths:        req.TermMonths,
		ValueAdjustment:   req.ValueAdjustment,
		NewContractNumber: req.NewContractNumber,
	}, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result, "Contract renewed")
}

// @Summary Escalate Milestone
// @Description Raises an escalation alert when the milestone delay exceeds the threshold
// @Tags Workflow
// @Accept json
// @Produce json
// @Param request body EscalateRequest true "Escalation"
// @Success 200 {object} Response{data=services.EscalationResult}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /contracts/workflow/escalate [post]
func (h *WorkflowHandler) Escalate(c *gin.Context) {
	var req EscalateRequest
	if !bindJSON(c, "workflow", &req) {
		return
	}
	result, err := h.workflowService.Escalate(c.Request.Context(), req.ContractID, req.MilestoneID, req.ThresholdDays, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, result.Message)
}

// @Summary Trigger Milestone Billing
// @Description Creates the billing schedule of a completed billable milestone
// @Tags Workflow
// @Accept json
// @Produce json
// @Param request body TriggerBillingRequest true "Milestone"
// @Success 201 {object} Response{data=MilestoneResponse}
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/workflow/trigger-billing [post]
func (h *WorkflowHandler) TriggerBilling(c *gin.Context) {
	var req TriggerBillingRequest
	if !bindJSON(c, "workflow", &req) {
		return
	}
	result, err := h.workflowService.TriggerBilling(c.Request.Context(), req.ContractID, req.MilestoneID, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, milestoneResponse(result), "Billing triggered")
}

// @Summary Run Recurring Billing
// @Description Materializes recurring occurrences due on or before asOf; safe to repeat
// @Tags Workflow
// @Accept json
// @Produce json
// @Param request body RecurringBillingRequest false "Cut-off date, defaults to today"
// @Success 200 {object} Response{data=services.RecurringBillingResult}
// @Security BearerAuth
// @Router /contracts/workflow/recurring-billing [post]
func (h *WorkflowHandler) RecurringBilling(c *gin.Context) {
	var req RecurringBillingRequest
	if !bindJSON(c, "workflow", &req) {
		return
	}
	var d dates
	asOf := d.parse("asOf", req.AsOf)
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	result, err := h.workflowService.RunRecurringBilling(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "")
}

// @Summary Generate Expiration Alerts
// @Description Raises alerts for active contracts ending within the window
// @Tags Alerts
// @Accept json
// @Produce json
// @Param request body GenerateAlertsRequest false "Window in days, defaults to 30"
// @Success 201 {object} Response{data=[]models.Alert}
// @Security BearerAuth
// @Router /contracts/alerts/generate [post]
func (h *WorkflowHandler) GenerateAlerts(c *gin.Context) {
	var req GenerateAlertsRequest
	if !bindJSON(c, "alerts", &req) {
		return
	}
	if req.Days == 0 {
		req.Days = defaultExpirationWindow
	}

	alerts, err := h.alertService.GenerateExpirationAlerts(c.Request.Context(), req.Days)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, alerts, strconv.Itoa(len(alerts))+" alerts created")
}

// @Summary Generate Milestone Risk Alerts
// @Tags Alerts
// @Produce json
// @Success 201 {object} Response{data=[]models.Alert}
// @Security BearerAuth
// @Router /contracts/alerts/milestone-risks [post]
func (h *WorkflowHandler) GenerateMilestoneRisks(c *gin.Context) {
	alerts, err := h.alertService.GenerateMilestoneRiskAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, alerts, strconv.Itoa(len(alerts))+" alerts created")
}

// @Summary List Alerts
// @Tags Alerts
// @Produce json
// @Param status query string false "open, acknowledged or resolved"
// @Param type query string false "Alert type"
// @Param contractId query string false "Contract"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} Response{data=[]models.Alert,summary=Pagination}
// @Security BearerAuth
// @Router /contracts/alerts [get]
func (h *WorkflowHandler) ListAlerts(c *gin.Context) {
	q := listQuery(c)
	alerts, total, err := h.alertService.List(c.Request.Context(), &repository.AlertQuery{
		ListQuery:  q,
		Type:       c.Query("type"),
		Status:     c.Query("status"),
		ContractID: c.Query("contractId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, alerts, total, q)
}

// @Summary Update Alert
// @Description Acknowledges or resolves an alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param alertId path int true "Alert ID"
// @Param request body UpdateAlertRequest true "Status"
// @Success 200 {object} Response{data=models.Alert}
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/alerts/{alertId} [put]
func (h *WorkflowHandler) UpdateAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("alertId"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindInvalidInput, "invalid alert id"))
		return
	}
	var req UpdateAlertRequest
	if !bindJSON(c, "alert", &req) {
		return
	}

	alert, err := h.alertService.Update(c.Request.Context(), uint(id), &services.AlertUpdate{Status: req.Status}, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, alert, "Alert updated")
}
