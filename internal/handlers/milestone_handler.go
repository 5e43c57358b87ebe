package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/services"
)

const maxBulkMilestones = 100

type MilestoneHandler struct {
	milestoneService *services.MilestoneService
}

func NewMilestoneHandler(milestoneService *services.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestoneService: milestoneService}
}

type CreateMilestoneRequest struct {
	MilestoneID        string   `json:"milestoneId" binding:"max=64"`
	Title              string   `json:"title" binding:"required"`
	Description        string   `json:"description"`
	TargetDate         string   `json:"targetDate"`
	Value              float64  `json:"value"`
	Percentage         float64  `json:"percentage"`
	Status             string   `json:"status"`
	Deliverables       []string `json:"deliverables"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Dependencies       []string `json:"dependencies"`
	IsBillable         bool     `json:"isBillable"`
	AssignedTo         string   `json:"assignedTo"`
	CreateBilling      bool     `json:"createBilling"`
}

type UpdateMilestoneRequest struct {
	Title              *string  `json:"title"`
	Description        *string  `json:"description"`
	TargetDate         *string  `json:"targetDate"`
	Value              *float64 `json:"value"`
	Percentage         *float64 `json:"percentage"`
	Status             string   `json:"status"`
	Deliverables       []string `json:"deliverables"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Dependencies       []string `json:"dependencies"`
	IsBillable         *bool    `json:"isBillable"`
	AssignedTo         *string  `json:"assignedTo"`
	CompletionDate     *string  `json:"completionDate"`
	ActualValue        *float64 `json:"actualValue"`
	CompletionNotes    *string  `json:"completionNotes"`
	TriggerBilling     bool     `json:"triggerBilling"`
}

type BulkMilestoneRequest struct {
	Updates []BulkMilestoneUpdate `json:"updates" binding:"required,min=1,dive"`
}

type BulkMilestoneUpdate struct {
	ContractID  string `json:"contractId" binding:"required"`
	MilestoneID string `json:"milestoneId" binding:"required"`
	UpdateMilestoneRequest
}

// MilestoneResponse is a written milestone plus the billing it produced
type MilestoneResponse struct {
	Milestone              *models.Milestone       `json:"milestone"`
	BillingScheduleCreated *models.BillingSchedule `json:"billingScheduleCreated,omitempty"`
	BillingTriggered       bool                    `json:"billingTriggered"`
	BillingScheduleID      string                  `json:"billingScheduleId,omitempty"`
}

func milestoneResponse(r *services.MilestoneResult) MilestoneResponse {
	return MilestoneResponse{
		Milestone:              r.Milestone,
		BillingScheduleCreated: r.BillingScheduleCreated,
		BillingTriggered:       r.BillingTriggered,
		BillingScheduleID:      r.BillingScheduleID,
	}
}

func (r *UpdateMilestoneRequest) toUpdate(d *dates) *services.MilestoneUpdate {
	return &services.MilestoneUpdate{
		Title:              r.Title,
		Description:        r.Description,
		TargetDate:         d.optional("targetDate", r.TargetDate),
		Value:              r.Value,
		Percentage:         r.Percentage,
		Status:             r.Status,
		Deliverables:       r.Deliverables,
		AcceptanceCriteria: r.AcceptanceCriteria,
		Dependencies:       r.Dependencies,
		IsBillable:         r.IsBillable,
		AssignedTo:         r.AssignedTo,
		CompletionDate:     d.optional("completionDate", r.CompletionDate),
		ActualValue:        r.ActualValue,
		CompletionNotes:    r.CompletionNotes,
		TriggerBilling:     r.TriggerBilling,
	}
}

// @Summary Create Milestone
// @Description Adds a milestone; percentages across the contract cannot exceed 100
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param request body CreateMilestoneRequest true "Milestone"
// @Success 201 {object} Response{data=MilestoneResponse}
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/milestones [post]
func (h *MilestoneHandler) Create(c *gin.Context) {
	var req CreateMilestoneRequest
	if !bindJSON(c, "milestone", &req) {
		return
	}

	var d dates
	input := &services.MilestoneInput{
		MilestoneID:        req.MilestoneID,
		Title:              req.Title,
		Description:        req.Description,
		TargetDate:         d.parse("targetDate", req.TargetDate),
		Value:              req.Value,
		Percentage:         req.Percentage,
		Status:             req.Status,
		Deliverables:       req.Deliverables,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Dependencies:       req.Dependencies,
		IsBillable:         req.IsBillable,
		AssignedTo:         req.AssignedTo,
		CreateBilling:      req.CreateBilling,
	}
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	result, err := h.milestoneService.Create(c.Request.Context(), c.Param("id"), input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, milestoneResponse(result), "Milestone created")
}

// @Summary List Milestones
// @Tags Milestones
// @Produce json
// @Param id path string true "Contract ID"
// @Param status query string false "Milestone status"
// @Param includeProgress query bool false "Attach progress"
// @Param includeRisk query bool false "Attach risk assessment"
// @Success 200 {object} Response{data=[]models.Milestone}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/milestones [get]
func (h *MilestoneHandler) Index(c *gin.Context) {
	milestones, err := h.milestoneService.List(c.Request.Context(), c.Param("id"), services.MilestoneFilter{
		Status:          c.Query("status"),
		IncludeProgress: queryBool(c, "includeProgress"),
		IncludeRisk:     queryBool(c, "includeRisk"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, milestones, "")
}

// @Summary Update Milestone
// @Description Partial update; completing a billable milestone can trigger billing
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param milestoneId path string true "Milestone ID"
// @Param request body UpdateMilestoneRequest true "Fields to change"
// @Success 200 {object} Response{data=MilestoneResponse}
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/milestones/{milestoneId} [put]
func (h *MilestoneHandler) Update(c *gin.Context) {
	var req UpdateMilestoneRequest
	if !bindJSON(c, "milestone", &req) {
		return
	}

	var d dates
	update := req.toUpdate(&d)
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	result, err := h.milestoneService.Update(c.Request.Context(), c.Param("id"), c.Param("milestoneId"), update, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, milestoneResponse(result), "Milestone updated")
}

// @Summary Bulk Update Milestones
// @Description Applies each update independently and reports per-item outcomes
// @Tags Milestones
// @Accept json
// @Produce json
// @Param request body BulkMilestoneRequest true "Updates"
// @Success 200 {object} Response{data=[]services.BulkMilestoneResult}
// @Failure 400 {object} Response
// @Security BearerAuth
// @Router /contracts/milestones/bulk-update [put]
func (h *MilestoneHandler) BulkUpdate(c *gin.Context) {
	var req BulkMilestoneRequest
	if !bindJSON(c, "milestones", &req) {
		return
	}
	if len(req.Updates) > maxBulkMilestones {
		respondError(c, apperr.New(apperr.KindInvalidInput, "at most %d updates per request", maxBulkMilestones))
		return
	}

	items := make([]services.BulkMilestoneItem, 0, len(req.Updates))
	for i := range req.Updates {
		var d dates
		u := req.Updates[i]
		update := u.toUpdate(&d)
		if d.err != nil {
			respondError(c, d.err)
			return
		}
		items = append(items, services.BulkMilestoneItem{
			ContractID:  u.ContractID,
			MilestoneID: u.MilestoneID,
			Update:      *update,
		})
	}

	results := h.milestoneService.BulkUpdate(c.Request.Context(), items, actorFrom(c))
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    results,
		Summary: gin.H{"total": len(results), "succeeded": succeeded, "failed": len(results) - succeeded},
	})
}
