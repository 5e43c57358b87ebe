package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/services"
)

type AmendmentHandler struct {
	amendmentService *services.AmendmentService
}

func NewAmendmentHandler(amendmentService *services.AmendmentService) *AmendmentHandler {
	return &AmendmentHandler{amendmentService: amendmentService}
}

type CreateAmendmentRequest struct {
	AmendmentNumber string  `json:"amendmentNumber" binding:"max=64"`
	AmendmentDate   string  `json:"amendmentDate"`
	Type            string  `json:"type" binding:"required"`
	Description     string  `json:"description"`
	Reason          string  `json:"reason"`
	ValueChange     float64 `json:"valueChange"`
	TimelineChange  int     `json:"timelineChange"`
	ResourceChange  string  `json:"resourceChange"`
}

type UpdateAmendmentRequest struct {
	Status          string  `json:"status"`
	RejectionReason string  `json:"rejectionReason"`
	Description     *string `json:"description"`
	Reason          *string `json:"reason"`
}

// @Summary Create Amendment
// @Description Records an amendment in Pending Approval; the contract is unchanged until implementation
// @Tags Amendments
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param request body CreateAmendmentRequest true "Amendment"
// @Success 201 {object} Response{data=models.ContractAmendment}
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/amendments [post]
func (h *AmendmentHandler) Create(c *gin.Context) {
	var req CreateAmendmentRequest
	if !bindJSON(c, "amendment", &req) {
		return
	}

	var d dates
	input := &services.AmendmentInput{
		AmendmentNumber: req.AmendmentNumber,
		AmendmentDate:   d.parse("amendmentDate", req.AmendmentDate),
		Type:            req.Type,
		Description:     req.Description,
		Reason:          req.Reason,
		ValueChange:     req.ValueChange,
		TimelineChange:  req.TimelineChange,
		ResourceChange:  req.ResourceChange,
	}
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	amendment, err := h.amendmentService.Create(c.Request.Context(), c.Param("id"), input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, amendment, "Amendment created")
}

// @Summary List Amendments
// @Tags Amendments
// @Produce json
// @Param id path string true "Contract ID"
// @Param status query string false "Amendment status; Pending is accepted for Pending Approval"
// @Param includeTimeline query bool false "Attach approval timeline"
// @Success 200 {object} Response{data=[]models.ContractAmendment}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/amendments [get]
func (h *AmendmentHandler) Index(c *gin.Context) {
	amendments, err := h.amendmentService.List(c.Request.Context(), c.Param("id"), services.AmendmentFilter{
		Status:          c.Query("status"),
		IncludeTimeline: queryBool(c, "includeTimeline"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, amendments, "")
}

// @Summary Update Amendment
// @Description Approves, rejects or implements an amendment; implemented amendments are immutable
// @Tags Amendments
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param amendmentId path string true "Amendment number"
// @Param request body UpdateAmendmentRequest true "Status change"
// @Success 200 {object} Response{data=models.ContractAmendment}
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/{id}/amendments/{amendmentId} [put]
func (h *AmendmentHandler) Update(c *gin.Context) {
	var req UpdateAmendmentRequest
	if !bindJSON(c, "amendment", &req) {
		return
	}

	amendment, err := h.amendmentService.SetStatus(c.Request.Context(), c.Param("id"), c.Param("amendmentId"), &services.AmendmentUpdate{
		Status:          req.Status,
		RejectionReason: req.RejectionReason,
		Description:     req.Description,
		Reason:          req.Reason,
	}, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, amendment, "Amendment updated")
}
