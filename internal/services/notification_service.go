package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// Notifier delivers workflow notifications to the people running contracts
type Notifier interface {
	ContractActivated(ctx context.Context, contract *models.Contract, milestones, billing int, actor Actor) error
	ContractRenewed(ctx context.Context, previous, successor *models.Contract) error
	AlertsRaised(ctx context.Context, title string, alerts []models.Alert) error
}

// NotificationService notifies configured addresses plus admins and contract managers by email
type NotificationService struct {
	email      *EmailService
	userRepo   repository.UserRepository
	recipients []string
}

func NewNotificationService(email *EmailService, userRepo repository.UserRepository, recipients []string) *NotificationService {
	return &NotificationService{email: email, userRepo: userRepo, recipients: recipients}
}

func (s *NotificationService) ContractActivated(ctx context.Context, contract *models.Contract, milestones, billing int, actor Actor) error {
	data := struct {
		ContractNumber    string
		Title             string
		ClientName        string
		StartDate         string
		EndDate           string
		Currency          string
		TotalValue        float64
		MilestonesCreated int
		BillingCreated    int
		ActivatedBy       string
	}{
		ContractNumber:    contract.ContractNumber,
		Title:             contract.Title,
		ClientName:        contract.ClientName,
		StartDate:         contract.StartDate.Format(dateLayout),
		EndDate:           contract.EndDate.Format(dateLayout),
		Currency:          contract.Currency,
		TotalValue:        contract.TotalValue,
		MilestonesCreated: milestones,
		BillingCreated:    billing,
		ActivatedBy:       actor.Ref(),
	}
	subject := fmt.Sprintf("Contract %s activated", contract.ContractNumber)
	return s.send(ctx, subject, "contract_activated.html", data)
}

func (s *NotificationService) ContractRenewed(ctx context.Context, previous, successor *models.Contract) error {
	data := struct {
		PreviousID string
		ContractID string
		StartDate  string
		EndDate    string
		Currency   string
		TotalValue float64
	}{
		PreviousID: previous.ContractID,
		ContractID: successor.ContractID,
		StartDate:  successor.StartDate.Format(dateLayout),
		EndDate:    successor.EndDate.Format(dateLayout),
		Currency:   successor.Currency,
		TotalValue: successor.TotalValue,
	}
	subject := fmt.Sprintf("Contract %s renewed as %s", previous.ContractID, successor.ContractID)
	return s.send(ctx, subject, "contract_renewed.html", data)
}

func (s *NotificationService) AlertsRaised(ctx context.Context, title string, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	data := struct {
		Title  string
		Alerts []models.Alert
	}{Title: title, Alerts: alerts}
	return s.send(ctx, fmt.Sprintf("%s (%d)", title, len(alerts)), "alert.html", data)
}

func (s *NotificationService) send(ctx context.Context, subject, template string, data any) error {
	to, err := s.resolveRecipients(ctx)
	if err != nil {
		return err
	}
	return s.email.Send(ctx, to, subject, template, data)
}

// resolveRecipients merges configured addresses with active admins and contract managers
func (s *NotificationService) resolveRecipients(ctx context.Context) ([]string, error) {
	to := slices.Clone(s.recipients)
	for _, role := range []string{models.RoleAdmin, models.RoleContractManager} {
		users, err := s.userRepo.FindByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s recipients: %w", role, err)
		}
		for _, u := range users {
			if u.IsActive() && u.Email != "" {
				to = append(to, strings.ToLower(u.Email))
			}
		}
	}
	slices.Sort(to)
	to = slices.Compact(to)
	logger.Debug("notification recipients resolved", slog.Int("count", len(to)))
	return to, nil
}
