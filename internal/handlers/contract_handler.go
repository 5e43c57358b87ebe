package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/services"
)

type ContractHandler struct {
	contractService *services.ContractService
}

func NewContractHandler(contractService *services.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// Pagination describes the page returned by a list endpoint
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// ContractListResponse is the payload of GET /contracts
type ContractListResponse struct {
	Contracts  []models.Contract `json:"contracts"`
	Pagination Pagination        `json:"pagination"`
}

type CreateContractRequest struct {
	ContractID        string               `json:"contractId" binding:"required,max=64"`
	ContractNumber    string               `json:"contractNumber" binding:"required,max=64"`
	Title             string               `json:"title" binding:"required"`
	ClientID          string               `json:"clientId" binding:"max=64"`
	ClientName        string               `json:"clientName"`
	ContractType      string               `json:"contractType"`
	Status            string               `json:"status"`
	StartDate         string               `json:"startDate"`
	EndDate           string               `json:"endDate"`
	TotalValue        float64              `json:"totalValue"`
	Currency          string               `json:"currency" binding:"omitempty,len=3"`
	Terms             models.ContractTerms `json:"terms"`
	RiskLevel         string               `json:"riskLevel"`
	Priority          string               `json:"priority"`
	AssignedTo        string               `json:"assignedTo"`
	Department        string               `json:"department"`
	AutoRenew         bool                 `json:"autoRenew"`
	RenewalNoticeDays *int                 `json:"renewalNoticeDays" binding:"omitempty,gte=0"`
	ParentContractID  *string              `json:"parentContractId"`
}

type TermsPatchRequest struct {
	Scope              *string `json:"scope"`
	Deliverables       *string `json:"deliverables"`
	AcceptanceCriteria *string `json:"acceptanceCriteria"`
	Warranty           *string `json:"warranty"`
	PaymentTerms       *string `json:"paymentTerms"`
}

type UpdateContractRequest struct {
	ContractID        *string            `json:"contractId"`
	ContractNumber    *string            `json:"contractNumber"`
	Title             *string            `json:"title"`
	ClientID          *string            `json:"clientId"`
	ClientName        *string            `json:"clientName"`
	ContractType      *string            `json:"contractType"`
	Status            *string            `json:"status"`
	StartDate         *string            `json:"startDate"`
	EndDate           *string            `json:"endDate"`
	TotalValue        *float64           `json:"totalValue"`
	Currency          *string            `json:"currency"`
	Terms             *TermsPatchRequest `json:"terms"`
	RiskLevel         *string            `json:"riskLevel"`
	Priority          *string            `json:"priority"`
	AssignedTo        *string            `json:"assignedTo"`
	Department        *string            `json:"department"`
	AutoRenew         *bool              `json:"autoRenew"`
	RenewalNoticeDays *int               `json:"renewalNoticeDays"`
	Version           *int               `json:"version"`
}

// @Summary Create Contract
// @Description Creates a contract in Draft unless another initial status is given
// @Tags Contracts
// @Accept json
// @Produce json
// @Param request body CreateContractRequest true "Contract"
// @Success 201 {object} Response{data=models.Contract}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Security BearerAuth
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	var req CreateContractRequest
	if !bindJSON(c, "contract", &req) {
		return
	}

	var d dates
	input := &services.ContractInput{
		ContractID:        req.ContractID,
		ContractNumber:    req.ContractNumber,
		Title:             req.Title,
		ClientID:          req.ClientID,
		ClientName:        req.ClientName,
		ContractType:      req.ContractType,
		Status:            req.Status,
		StartDate:         d.parse("startDate", req.StartDate),
		EndDate:           d.parse("endDate", req.EndDate),
		TotalValue:        req.TotalValue,
		Currency:          req.Currency,
		Terms:             req.Terms,
		RiskLevel:         req.RiskLevel,
		Priority:          req.Priority,
		AssignedTo:        req.AssignedTo,
		Department:        req.Department,
		AutoRenew:         req.AutoRenew,
		RenewalNoticeDays: req.RenewalNoticeDays,
		ParentContractID:  req.ParentContractID,
	}
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	contract, err := h.contractService.Create(c.Request.Context(), input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, contract, "Contract created")
}

// @Summary List Contracts
// @Description Filtered, paginated contracts with optional portfolio summary and per-contract metrics
// @Tags Contracts
// @Produce json
// @Param status query string false "Contract status"
// @Param clientId query string false "Client"
// @Param contractType query string false "Contract type"
// @Param startDate query string false "Contracts active on or after (YYYY-MM-DD)"
// @Param endDate query string false "Contracts active on or before (YYYY-MM-DD)"
// @Param search query string false "Search in number, title and client"
// @Param includeSummary query bool false "Attach portfolio summary"
// @Param includeMetrics query bool false "Attach performance metrics"
// @Param includeInactive query bool false "Include soft-deleted contracts"
// @Param sortBy query string false "Sort column"
// @Param sortOrder query string false "asc or desc"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} Response{data=ContractListResponse,summary=repository.ContractSummary}
// @Security BearerAuth
// @Router /contracts [get]
func (h *ContractHandler) Index(c *gin.Context) {
	var d dates
	filter := services.ContractFilter{
		Status:          c.Query("status"),
		ClientID:        c.Query("clientId"),
		ContractType:    c.Query("contractType"),
		StartDate:       d.query(c, "startDate"),
		EndDate:         d.query(c, "endDate"),
		Search:          c.Query("search"),
		IncludeSummary:  queryBool(c, "includeSummary"),
		IncludeMetrics:  queryBool(c, "includeMetrics"),
		IncludeInactive: queryBool(c, "includeInactive"),
		Page:            queryInt(c, "page", 1),
		Limit:           queryInt(c, "limit", 20),
		SortBy:          c.Query("sortBy"),
		SortDir:         c.Query("sortOrder"),
	}
	if d.err != nil {
		respondError(c, d.err)
		return
	}

	list, err := h.contractService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := Response{
		Success: true,
		Data: ContractListResponse{
			Contracts: list.Contracts,
			Pagination: newPagination(list.Page, list.Limit, list.Total),
		},
	}
	if list.Summary != nil {
		resp.Summary = list.Summary
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Get Contract
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Param includeMetrics query bool false "Attach performance metrics"
// @Success 200 {object} Response{data=models.Contract}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /contracts/{id} [get]
func (h *ContractHandler) Show(c *gin.Context) {
	contract, err := h.contractService.Get(c.Request.Context(), c.Param("id"), queryBool(c, "includeMetrics"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, contract, "")
}

// @Summary Update Contract
// @Description Partial update; status changes follow the contract lifecycle
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param request body UpdateContractRequest true "Fields to change"
// @Success 200 {object} Response{data=models.Contract}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /contracts/{id} [put]
func (h *ContractHandler) Update(c *gin.Context) {
	var req UpdateContractRequest
	if !bindJSON(c, "contract", &req) {
		return
	}

	var d dates
	patch := &services.ContractPatch{
		ContractID:        req.ContractID,
		ContractNumber:    req.ContractNumber,
		Title:             req.Title,
		ClientID:          req.ClientID,
		ClientName:        req.ClientName,
		ContractType:      req.ContractType,
		Status:            req.Status,
		StartDate:         d.optional("startDate", req.StartDate),
		EndDate:           d.optional("endDate", req.EndDate),
		TotalValue:        req.TotalValue,
		Currency:          req.Currency,
		RiskLevel:         req.RiskLevel,
		Priority:          req.Priority,
		AssignedTo:        req.AssignedTo,
		Department:        req.Department,
		AutoRenew:         req.AutoRenew,
		RenewalNoticeDays: req.RenewalNoticeDays,
		Version:           req.Version,
	}
	if d.err != nil {
		respondError(c, d.err)
		return
	}
	if req.Terms != nil {
		patch.Terms = &services.TermsPatch{
			Scope:              req.Terms.Scope,
			Deliverables:       req.Terms.Deliverables,
			AcceptanceCriteria: req.Terms.AcceptanceCriteria,
			Warranty:           req.Terms.Warranty,
			PaymentTerms:       req.Terms.PaymentTerms,
		}
	}

	contract, err := h.contractService.Update(c.Request.Context(), c.Param("id"), patch, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, contract, "Contract updated")
}

// @Summary Delete Contract
// @Description Soft delete by default; hardDelete=true removes the record (admin only)
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Param hardDelete query bool false "Remove permanently"
// @Success 200 {object} Response
// @Failure 403 {object} Response
// @Failure 409 {object} Response
// @Security BearerAuth
// @Router /contracts/{id} [delete]
func (h *ContractHandler) Delete(c *gin.Context) {
	hard := queryBool(c, "hardDelete")
	if raw := c.Query("hardDelete"); raw != "" && raw != "true" && raw != "false" {
		respondError(c, apperr.New(apperr.KindInvalidInput, "hardDelete must be true or false"))
		return
	}

	if err := h.contractService.Delete(c.Request.Context(), c.Param("id"), hard, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}

	message := "Contract deactivated"
	if hard {
		message = "Contract deleted"
	}
	respond(c, http.StatusOK, gin.H{"contractId": c.Param("id"), "hardDeleted": hard}, message)
}
