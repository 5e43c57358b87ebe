package handlers

import (
	"github.com/sjperalta/fintera-contracts/internal/services"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Handlers holds all handler instances
type Handlers struct {
	Health      *HealthHandler
	Auth        *AuthHandler
	User        *UserHandler
	Contract    *ContractHandler
	Amendment   *AmendmentHandler
	Milestone   *MilestoneHandler
	Billing     *BillingHandler
	Report      *ReportHandler
	Workflow    *WorkflowHandler
	Integration *IntegrationHandler
	Audit       *AuditHandler
	Job         *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(Version),
		Auth:        NewAuthHandler(svcs.Auth),
		User:        NewUserHandler(svcs.User),
		Contract:    NewContractHandler(svcs.Contract),
		Amendment:   NewAmendmentHandler(svcs.Amendment),
		Milestone:   NewMilestoneHandler(svcs.Milestone),
		Billing:     NewBillingHandler(svcs.Billing),
		Report:      NewReportHandler(svcs.Report, svcs.Export),
		Workflow:    NewWorkflowHandler(svcs.Workflow, svcs.Alert),
		Integration: NewIntegrationHandler(svcs.Integration, svcs.Export),
		Audit:       NewAuditHandler(svcs.Audit),
		Job:         NewJobHandler(svcs.Job),
	}
}
