package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// Client risk score bounds; higher is riskier
const (
	baseRiskScore = 20
	minRiskScore  = 0
	maxRiskScore  = 100
)

// ClientRisk is the outcome of scoring one client
type ClientRisk struct {
	ClientID       string  `json:"clientId"`
	RiskScore      int     `json:"riskScore"`
	CreditRating   string  `json:"creditRating"`
	PaymentHistory string  `json:"paymentHistory"`
	OnTimeRatio    float64 `json:"onTimeRatio"`
}

// ClientRiskService scores clients from their payment behaviour
type ClientRiskService struct {
	repos *repository.Repositories
}

func NewClientRiskService(repos *repository.Repositories) *ClientRiskService {
	return &ClientRiskService{repos: repos}
}

// UpdateScore recomputes and stores the risk of a single client
func (s *ClientRiskService) UpdateScore(ctx context.Context, clientID string) (*ClientRisk, error) {
	if _, err := s.repos.Client.FindByClientID(ctx, clientID); err != nil {
		return nil, notFound(err, "client", clientID)
	}

	risk, err := s.calculate(ctx, clientID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Client.UpdateRisk(ctx, clientID, risk.RiskScore, risk.CreditRating, risk.PaymentHistory); err != nil {
		return nil, fmt.Errorf("failed to update client risk: %w", err)
	}

	logger.Debug(fmt.Sprintf("[ClientRiskService] client %s scored %d (%s)", clientID, risk.RiskScore, risk.CreditRating))
	return risk, nil
}

// UpdateAllScores refreshes denormalized totals and rescores every client
func (s *ClientRiskService) UpdateAllScores(ctx context.Context) (int, error) {
	logger.Info("[ClientRiskService] Updating all client risk scores...")

	if _, err := s.repos.Client.RefreshTotals(ctx); err != nil {
		return 0, fmt.Errorf("failed to refresh client totals: %w", err)
	}

	page := 1
	pageSize := repository.MaxPerPage
	processed := 0
	for {
		query := repository.NewListQuery()
		query.Page = page
		query.PerPage = pageSize

		clients, total, err := s.repos.Client.List(ctx, query)
		if err != nil {
			return processed, fmt.Errorf("failed to fetch clients page %d: %w", page, err)
		}
		if len(clients) == 0 {
			break
		}

		for _, client := range clients {
			if _, err := s.UpdateScore(ctx, client.ClientID); err != nil {
				logger.Error(fmt.Sprintf("[ClientRiskService] Error scoring client %s: %v", client.ClientID, err))
				continue
			}
			processed++
		}

		if int64(page*pageSize) >= total || len(clients) < pageSize {
			break
		}
		page++
	}

	logger.Info(fmt.Sprintf("[ClientRiskService] Updated risk scores for %d clients", processed))
	return processed, nil
}

func (s *ClientRiskService) calculate(ctx context.Context, clientID string, now time.Time) (*ClientRisk, error) {
	contracts, err := s.repos.Contract.FindAll(ctx, &repository.ContractQuery{ClientID: clientID})
	if err != nil {
		return nil, fmt.Errorf("failed to load client contracts: %w", err)
	}
	ids := make([]string, len(contracts))
	for i := range contracts {
		ids[i] = contracts[i].ContractID
	}
	schedules, err := s.repos.BillingSchedule.FindByContracts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load client billing: %w", err)
	}

	score := baseRiskScore
	for i := range schedules {
		b := &schedules[i]
		switch {
		case b.IsPaid() && b.PaymentDate != nil && b.DueDate != nil:
			daysLate := models.InclusiveDays(*b.DueDate, *b.PaymentDate) - 1
			switch {
			case daysLate <= 0:
				score -= 2
			case daysLate <= 7:
				score += 2
			case daysLate <= 30:
				score += 5
			default:
				score += 10
			}
		case b.Status == models.BillingStatusOverdue || b.Track(now).IsOverdue:
			score += 10
		}
	}

	for _, c := range contracts {
		switch c.Status {
		case models.ContractStatusTerminated:
			score += 15
		case models.ContractStatusCompleted, models.ContractStatusRenewed:
			score -= 5
		}
	}

	payments := collectPayments(schedules, now)
	if payments.Billed > 0 && payments.Outstanding/payments.Billed > 0.5 {
		score += 10
	}

	if score < minRiskScore {
		score = minRiskScore
	}
	if score > maxRiskScore {
		score = maxRiskScore
	}

	ratio := payments.onTimeRatio()
	return &ClientRisk{
		ClientID:       clientID,
		RiskScore:      score,
		CreditRating:   creditRating(score),
		PaymentHistory: paymentHistoryFor(ratio),
		OnTimeRatio:    round2(ratio),
	}, nil
}

func creditRating(score int) string {
	switch {
	case score <= 10:
		return "AAA"
	case score <= 20:
		return "AA"
	case score <= 30:
		return "A"
	case score <= 45:
		return "BBB"
	case score <= 60:
		return "BB"
	case score <= 75:
		return "B"
	}
	return "C"
}

func paymentHistoryFor(onTimeRatio float64) string {
	switch {
	case onTimeRatio >= 0.95:
		return models.PaymentHistoryExcellent
	case onTimeRatio >= 0.8:
		return models.PaymentHistoryGood
	case onTimeRatio >= 0.6:
		return models.PaymentHistoryFair
	}
	return models.PaymentHistoryPoor
}
