package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/services"
)

type IntegrationHandler struct {
	integrationService *services.IntegrationService
	exportService      *services.ExportService
}

func NewIntegrationHandler(integrationService *services.IntegrationService, exportService *services.ExportService) *IntegrationHandler {
	return &IntegrationHandler{
		integrationService: integrationService,
		exportService:      exportService,
	}
}

type ContractTargetRequest struct {
	ContractID string `json:"contractId" binding:"required"`
}

type RevenueRecognitionRequest struct {
	ContractID string `json:"contractId"`
}

// @Summary Sync CRM
// @Description Pushes clients and contract summaries to the CRM and refreshes client totals
// @Tags Integrations
// @Produce json
// @Success 200 {object} Response{data=services.CRMSyncResult}
// @Failure 502 {object} Response
// @Security BearerAuth
// @Router /contracts/sync/crm [post]
func (h *IntegrationHandler) SyncCRM(c *gin.Context) {
	result, err := h.integrationService.SyncCRM(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "CRM sync "+result.Sync.Status)
}

// @Summary Push Milestones to Project Management
// @Tags Integrations
// @Accept json
// @Produce json
// @Param request body ContractTargetRequest true "Contract"
// @Success 200 {object} Response{data=services.ProjectSyncResult}
// @Failure 404 {object} Response
// @Failure 502 {object} Response
// @Security BearerAuth
// @Router /contracts/integrations/project-management [post]
func (h *IntegrationHandler) ProjectManagement(c *gin.Context) {
	var req ContractTargetRequest
	if !bindJSON(c, "integration", &req) {
		return
	}
	result, err := h.integrationService.PushProjectManagement(c.Request.Context(), req.ContractID, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Project management sync "+result.Sync.Status)
}

// @Summary Recognize Revenue
// @Description Posts recognized revenue of completed milestones to the accounting system
// @Tags Integrations
// @Accept json
// @Produce json
// @Param request body RevenueRecognitionRequest false "Contract, all contracts when empty"
// @Success 200 {object} Response{data=services.RevenueRecognitionResult}
// @Failure 502 {object} Response
// @Security BearerAuth
// @Router /contracts/integrations/revenue-recognition [post]
func (h *IntegrationHandler) RevenueRecognition(c *gin.Context) {
	var req RevenueRecognitionRequest
	if !bindJSON(c, "integration", &req) {
		return
	}
	result, err := h.integrationService.RecognizeRevenue(c.Request.Context(), req.ContractID, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "")
}

// @Summary Integration History
// @Tags Integrations
// @Produce json
// @Param target query string false "crm, project_management or accounting"
// @Param limit query int false "Max records" default(50)
// @Success 200 {object} Response{data=[]models.IntegrationSync}
// @Security BearerAuth
// @Router /contracts/integrations/history [get]
func (h *IntegrationHandler) History(c *gin.Context) {
	syncs, err := h.integrationService.History(c.Request.Context(), c.Query("target"), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, syncs, "")
}

// @Summary Export Legal Review
// @Description Renders the contract with its amendments and milestones into a stored PDF
// @Tags Integrations
// @Accept json
// @Produce json
// @Param request body ContractTargetRequest true "Contract"
// @Success 201 {object} Response{data=services.LegalReviewDocument}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /contracts/export/legal-review [post]
func (h *IntegrationHandler) LegalReview(c *gin.Context) {
	var req ContractTargetRequest
	if !bindJSON(c, "integration", &req) {
		return
	}
	doc, err := h.exportService.LegalReview(c.Request.Context(), req.ContractID, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, doc, "Legal review document generated")
}
