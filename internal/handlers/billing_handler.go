package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/services"
)

type BillingHandler struct {
	billingService *services.BillingService
}

func NewBillingHandler(billingService *services.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

type CreateBillingRequest struct {
	ScheduleID       string  `json:"scheduleId" binding:"max=64"`
	MilestoneID      *string `json:"milestoneId"`
	BillingType      string  `json:"billingType"`
	BillingDate      string  `json:"billingDate"`
	Frequency        string  `json:"frequency"`
	RecurringStart   *string `json:"recurringStart"`
	RecurringEnd     *string `json:"recurringEnd"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency" binding:"omitempty,len=3"`
	TaxApplicable    bool    `json:"taxApplicable"`
	TaxRate          float64 `json:"taxRate"`
	Description      string  `json:"description"`
	Status           string  `json:"status"`
	ParentScheduleID *string `json:"parentScheduleId"`
}

type UpdateBillingRequest struct {
	Status           string   `json:"status"`
	InvoiceNumber    string   `json:"invoiceNumber"`
	InvoiceDate      *string  `json:"invoiceDate"`
	DueDate          *string  `json:"dueDate"`
	PaymentDate      *string  `json:"paymentDate"`
	PaymentAmount    *float64 `json:"paymentAmount"`
	PaymentMethod    string   `json:"paymentMethod"`
	PaymentReference string   `json:"paymentReference"`
	Description      *string  `json:"description"`
}

// @Summary Create Billing Schedule
// @Description One-time, milestone or recurring billing; tax and totals are computed server side
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param request body CreateBillingRequest true "Billing schedule"
// @Success 201 {object} Response{data=models.BillingSchedule}
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/billing-schedules [post]
func (h *BillingHandler) Create(c *gin.Context) {
	var req CreateBillingRequest
	if !bindJSON(c, "billingSchedule", &req) {
		return
	}

	var d dates
	input := &services.BillingInput{
		ScheduleID:       req.ScheduleID,
		MilestoneID:      req.MilestoneID,
		BillingType:      req.BillingType,
		BillingDate:      d.parse("billingDate", req.BillingDate),
		Frequency:        req.Frequency,
		RecurringStart:   d.optional("recurringStart", req.RecurringStart),
		RecurringEnd:     d.optional("recurringEnd", req.RecurringEnd),
		Amount:           req.Amount,
		Currency:         req.Currency,
		TaxApplicable:    req.TaxApplicable,
		TaxRate:          req.TaxRate,
		Description:      req.Description,
		Status:           req.Status,
		ParentScheduleID: req.ParentScheduleID,
	}
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	schedule, err := h.billingService.Create(c.Request.Context(), c.Param("id"), input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, schedule, "Billing schedule created")
}

// @Summary List Billing Schedules
// @Tags Billing
// @Produce json
// @Param id path string true "Contract ID"
// @Param status query string false "Billing status"
// @Param upcoming query bool false "Only schedules billing within the horizon"
// @Param days query int false "Upcoming horizon in days" default(30)
// @Param includePaymentTracking query bool false "Attach payment tracking"
// @Success 200 {object} Response{data=[]models.BillingSchedule}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/billing-schedules [get]
func (h *BillingHandler) Index(c *gin.Context) {
	schedules, err := h.billingService.List(c.Request.Context(), c.Param("id"), services.BillingFilter{
		Status:                 c.Query("status"),
		Upcoming:               queryBool(c, "upcoming"),
		Days:                   queryInt(c, "days", 0),
		IncludePaymentTracking: queryBool(c, "includePaymentTracking"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, schedules, "")
}

// @Summary Update Billing Schedule
// @Description Invoices, records payment or cancels a schedule; paid schedules are immutable
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param scheduleId path string true "Schedule ID"
// @Param request body UpdateBillingRequest true "Status change"
// @Success 200 {object} Response{data=models.BillingSchedule}
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/billing-schedules/{scheduleId} [put]
func (h *BillingHandler) Update(c *gin.Context) {
	var req UpdateBillingRequest
	if !bindJSON(c, "billingSchedule", &req) {
		return
	}

	var d dates
	update := &services.BillingUpdate{
		Status:           req.Status,
		InvoiceNumber:    req.InvoiceNumber,
		InvoiceDate:      d.optional("invoiceDate", req.InvoiceDate),
		DueDate:          d.optional("dueDate", req.DueDate),
		PaymentDate:      d.optional("paymentDate", req.PaymentDate),
		PaymentAmount:    req.PaymentAmount,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Description:      req.Description,
	}
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	schedule, err := h.billingService.Update(c.Request.Context(), c.Param("id"), c.Param("scheduleId"), update, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, schedule, "Billing schedule updated")
}
