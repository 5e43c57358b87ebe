package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/integrations"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// CRMSyncResult reports a CRM push and the client totals refresh that follows
type CRMSyncResult struct {
	Sync             *models.IntegrationSync `json:"sync"`
	ClientsSynced    int                     `json:"clientsSynced"`
	ContractsSynced  int                     `json:"contractsSynced"`
	ClientsRefreshed int64                   `json:"clientsRefreshed"`
}

// ProjectSyncResult reports a milestone push to the project-management tool
type ProjectSyncResult struct {
	Sync             *models.IntegrationSync `json:"sync"`
	ContractID       string                  `json:"contractId"`
	MilestonesSynced int                     `json:"milestonesSynced"`
}

// RevenueRecognitionResult lists the ledger entries posted by one run
type RevenueRecognitionResult struct {
	Sync            *models.IntegrationSync `json:"sync"`
	Entries         []models.RevenueEntry   `json:"entries"`
	TotalRecognized float64                 `json:"totalRecognized"`
}

type crmContract struct {
	ContractID     string  `json:"contractId"`
	ContractNumber string  `json:"contractNumber"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	TotalValue     float64 `json:"totalValue"`
	Currency       string  `json:"currency"`
	StartDate      string  `json:"startDate"`
	EndDate        string  `json:"endDate"`
}

type crmClient struct {
	ClientID     string        `json:"clientId"`
	CompanyName  string        `json:"companyName"`
	ContactName  string        `json:"contactName"`
	Email        string        `json:"email"`
	Industry     string        `json:"industry"`
	RiskScore    int           `json:"riskScore"`
	CreditRating string        `json:"creditRating"`
	Contracts    []crmContract `json:"contracts"`
}

type pmMilestone struct {
	MilestoneID  string   `json:"milestoneId"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	TargetDate   string   `json:"targetDate"`
	Percentage   float64  `json:"percentage"`
	Dependencies []string `json:"dependencies"`
	Deliverables []string `json:"deliverables"`
	AssignedTo   string   `json:"assignedTo"`
}

// IntegrationService pushes contract data to external systems and records
// every call as an IntegrationSync.
type IntegrationService struct {
	repos    *repository.Repositories
	clients  *integrations.Clients
	auditSvc *AuditService

	revenueMu sync.Mutex
}

func NewIntegrationService(repos *repository.Repositories, clients *integrations.Clients, auditSvc *AuditService) *IntegrationService {
	return &IntegrationService{repos: repos, clients: clients, auditSvc: auditSvc}
}

// SyncCRM pushes clients with their contract summaries to the CRM, then
// recomputes the denormalized client totals.
func (s *IntegrationService) SyncCRM(ctx context.Context, actor Actor) (*CRMSyncResult, error) {
	clients, err := s.repos.Client.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	contracts, err := s.repos.Contract.FindAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}

	byClient := make(map[string][]crmContract)
	for _, c := range contracts {
		byClient[c.ClientID] = append(byClient[c.ClientID], crmContract{
			ContractID:     c.ContractID,
			ContractNumber: c.ContractNumber,
			Title:          c.Title,
			Status:         c.Status,
			TotalValue:     c.TotalValue,
			Currency:       c.Currency,
			StartDate:      c.StartDate.Format(dateLayout),
			EndDate:        c.EndDate.Format(dateLayout),
		})
	}

	payload := make([]crmClient, 0, len(clients))
	synced := 0
	for _, cl := range clients {
		items := byClient[cl.ClientID]
		if items == nil {
			items = []crmContract{}
		}
		synced += len(items)
		payload = append(payload, crmClient{
			ClientID:     cl.ClientID,
			CompanyName:  cl.CompanyName,
			ContactName:  cl.ContactName,
			Email:        cl.Email,
			Industry:     cl.Industry,
			RiskScore:    cl.RiskScore,
			CreditRating: cl.CreditRating,
			Contracts:    items,
		})
	}

	rec, err := s.call(ctx, s.clients.CRM, "sync_clients", "clients/sync", nil,
		map[string]any{"clients": payload, "syncedAt": time.Now().UTC()}, actor)
	if err != nil {
		return &CRMSyncResult{Sync: rec}, err
	}

	refreshed, err := s.repos.Client.RefreshTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh client totals: %w", err)
	}
	return &CRMSyncResult{
		Sync:             rec,
		ClientsSynced:    len(payload),
		ContractsSynced:  synced,
		ClientsRefreshed: refreshed,
	}, nil
}

// PushProjectManagement sends the milestones of a contract to the
// project-management tool.
func (s *IntegrationService) PushProjectManagement(ctx context.Context, contractID string, actor Actor) (*ProjectSyncResult, error) {
	contract, err := s.repos.Contract.FindByContractID(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	milestones, err := s.repos.Milestone.FindByContract(ctx, contractID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load milestones: %w", err)
	}

	items := make([]pmMilestone, 0, len(milestones))
	for _, m := range milestones {
		items = append(items, pmMilestone{
			MilestoneID:  m.MilestoneID,
			Title:        m.Title,
			Status:       m.Status,
			TargetDate:   m.TargetDate.Format(dateLayout),
			Percentage:   m.Percentage,
			Dependencies: nonNil(m.Dependencies),
			Deliverables: nonNil(m.Deliverables),
			AssignedTo:   m.AssignedTo,
		})
	}

	payload := map[string]any{
		"project": map[string]any{
			"externalId": contract.ContractID,
			"name":       fmt.Sprintf("%s %s", contract.ContractNumber, contract.Title),
			"client":     contract.ClientName,
			"startDate":  contract.StartDate.Format(dateLayout),
			"endDate":    contract.EndDate.Format(dateLayout),
			"owner":      contract.AssignedTo,
		},
		"milestones": items,
	}

	id := contractID
	rec, err := s.call(ctx, s.clients.PM, "push_milestones", "projects/milestones", &id, payload, actor)
	result := &ProjectSyncResult{Sync: rec, ContractID: contractID}
	if err != nil {
		return result, err
	}
	result.MilestonesSynced = len(items)
	return result, nil
}

// RecognizeRevenue posts a recognized entry for every completed milestone
// not yet posted, using the milestone's share of the contract value. Entries
// are stored only after the accounting system accepted them or is not
// configured. An empty contractID covers all contracts.
func (s *IntegrationService) RecognizeRevenue(ctx context.Context, contractID string, actor Actor) (*RevenueRecognitionResult, error) {
	s.revenueMu.Lock()
	defer s.revenueMu.Unlock()

	contracts := map[string]*models.Contract{}
	if contractID != "" {
		c, err := s.repos.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return nil, notFound(err, "contract", contractID)
		}
		contracts[c.ContractID] = c
	} else {
		all, err := s.repos.Contract.FindAll(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load contracts: %w", err)
		}
		for i := range all {
			contracts[all[i].ContractID] = &all[i]
		}
	}

	posted, err := s.repos.Revenue.PostedMilestoneIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load posted revenue: %w", err)
	}
	completed, err := s.repos.Milestone.FindCompleted(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed milestones: %w", err)
	}

	now := time.Now().UTC()
	entries := []models.RevenueEntry{}
	var total float64
	for _, m := range completed {
		contract, ok := contracts[m.ContractID]
		if !ok || posted[m.MilestoneID] {
			continue
		}
		amount := round2(contract.TotalValue * m.Percentage / 100)
		if amount == 0 {
			continue
		}
		recognizedOn := now
		if m.CompletionDate != nil {
			recognizedOn = *m.CompletionDate
		}
		entries = append(entries, models.RevenueEntry{
			ContractID:  m.ContractID,
			MilestoneID: m.MilestoneID,
			Amount:      amount,
			EntryType:   models.RevenueEntryRecognized,
			Period:      models.RevenuePeriod(recognizedOn),
			Description: fmt.Sprintf("%s: %s (%.2f%% of %s)", contract.ContractNumber, m.Title, m.Percentage, money(contract.TotalValue)),
			PostedAt:    now,
		})
		total += amount
	}

	result := &RevenueRecognitionResult{Entries: entries, TotalRecognized: round2(total)}
	if len(entries) == 0 {
		return result, nil
	}

	var scope *string
	if contractID != "" {
		scope = &contractID
	}
	rec, err := s.call(ctx, s.clients.Accounting, "post_revenue", "revenue/entries", scope,
		map[string]any{"entries": entries, "total": result.TotalRecognized}, actor)
	result.Sync = rec
	if err != nil {
		return result, err
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		for i := range result.Entries {
			if err := tx.Revenue.Create(ctx, &result.Entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store revenue entries: %w", err)
	}
	return result, nil
}

// History returns the latest sync records, optionally for one target
func (s *IntegrationService) History(ctx context.Context, target string, limit int) ([]models.IntegrationSync, error) {
	return s.repos.IntegrationSync.List(ctx, target, limit)
}

// call sends payload through client and records the outcome. An unconfigured
// client is recorded as skipped and is not an error.
func (s *IntegrationService) call(ctx context.Context, client *integrations.Client, operation, path string, contractID *string, payload any, actor Actor) (*models.IntegrationSync, error) {
	rec := &models.IntegrationSync{
		Target:     client.Target(),
		Operation:  operation,
		Direction:  models.SyncDirectionOutbound,
		ContractID: contractID,
		CreatedBy:  actor.Ref(),
	}
	if raw, err := json.Marshal(payload); err == nil {
		rec.Request = datatypes.JSON(raw)
	}

	if !client.Configured() {
		rec.Status = models.SyncStatusSkipped
		rec.Error = "integration not configured"
	} else {
		start := time.Now()
		resp, err := client.Post(ctx, path, payload)
		rec.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			rec.Status = models.SyncStatusFailed
			rec.Error = err.Error()
			var statusErr *integrations.StatusError
			if errors.As(err, &statusErr) {
				rec.StatusCode = statusErr.StatusCode
				rec.Response = jsonPayload(statusErr.Body)
			}
		} else {
			rec.Status = models.SyncStatusSuccess
			rec.StatusCode = resp.StatusCode
			rec.Response = jsonPayload(resp.Body)
		}
	}

	if err := s.repos.IntegrationSync.Create(ctx, rec); err != nil {
		logger.Error("failed to record integration sync", "target", rec.Target, "operation", operation, "error", err)
	}
	s.auditSvc.Log(ctx, actor, AuditSync, "IntegrationSync", rec.Target, fmt.Sprintf("%s: %s", operation, rec.Status))

	if rec.Status == models.SyncStatusFailed {
		logger.Warn("integration call failed", "target", rec.Target, "operation", operation, "error", rec.Error)
		return rec, apperr.New(apperr.KindUpstreamFailure, "%s sync failed: %s", rec.Target, rec.Error)
	}
	return rec, nil
}

// jsonPayload keeps valid JSON as is and quotes anything else
func jsonPayload(body []byte) datatypes.JSON {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	quoted, _ := json.Marshal(string(body))
	return datatypes.JSON(quoted)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
