package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// DefaultReportCacheTTL is how long a computed report is served from cache
const DefaultReportCacheTTL = 15 * time.Minute

// Report kinds, also used as cache key prefixes and export file names
const (
	ReportPerformance    = "performance"
	ReportFinancial      = "financial"
	ReportClientAnalysis = "client-analysis"
)

// Payment history score used for client satisfaction
var paymentHistoryScore = map[string]float64{
	models.PaymentHistoryExcellent: 1,
	models.PaymentHistoryGood:      0.8,
	models.PaymentHistoryFair:      0.5,
	models.PaymentHistoryPoor:      0.2,
}

// ReportFilter narrows the contracts a report aggregates over
type ReportFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	ClientID     string
	ContractType string
	Status       string
	Refresh      bool // bypass the cache
}

func (f ReportFilter) cacheKey(kind string) string {
	format := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(dateLayout)
	}
	return fmt.Sprintf("report:%s:%s:%s:%s:%s:%s", kind, format(f.StartDate), format(f.EndDate), f.ClientID, f.ContractType, f.Status)
}

// ReportPeriod echoes the window a report was computed for
type ReportPeriod struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// ProfitabilityRow groups contract value and revenue by contract type
type ProfitabilityRow struct {
	ContractType      string  `json:"contractType"`
	Contracts         int     `json:"contracts"`
	TotalValue        float64 `json:"totalValue"`
	AmendmentImpact   float64 `json:"amendmentImpact"`
	RecognizedRevenue float64 `json:"recognizedRevenue"`
	Collected         float64 `json:"collected"`
	RevenueShare      float64 `json:"revenueShare"`
}

// RiskAssessment counts contracts per risk level and flags the hot spots
type RiskAssessment struct {
	ByLevel            map[string]int `json:"byLevel"`
	HighRiskContracts  []string       `json:"highRiskContracts"`
	DelayedMilestones  int            `json:"delayedMilestones"`
	OverdueBillings    int            `json:"overdueBillings"`
	ExpiringIn30Days   int            `json:"expiringIn30Days"`
	PendingAmendments  int            `json:"pendingAmendments"`
	AverageUtilization float64        `json:"averageBudgetUtilization"`
}

type PerformanceReport struct {
	Period              ReportPeriod       `json:"period"`
	TotalContracts      int                `json:"totalContracts"`
	ActiveContracts     int                `json:"activeContracts"`
	TotalMilestones     int                `json:"totalMilestones"`
	CompletedMilestones int                `json:"completedMilestones"`
	CompletionRate      float64            `json:"completionRate"`
	OnTimeDelivery      float64            `json:"onTimeDelivery"`
	ClientSatisfaction  float64            `json:"clientSatisfaction"`
	Profitability       []ProfitabilityRow `json:"profitability"`
	RiskAssessment      RiskAssessment     `json:"riskAssessment"`
	GeneratedAt         time.Time          `json:"generatedAt"`
}

// BillingMetrics summarizes invoicing and collection
type BillingMetrics struct {
	Scheduled      float64 `json:"scheduled"`
	Billed         float64 `json:"billed"`
	Paid           float64 `json:"paid"`
	Outstanding    float64 `json:"outstanding"`
	Overdue        float64 `json:"overdue"`
	InvoiceCount   int     `json:"invoiceCount"`
	OverdueCount   int     `json:"overdueCount"`
	CollectionRate float64 `json:"collectionRate"`
}

// ContractRevenue is the per-contract line of the financial report
type ContractRevenue struct {
	ContractID        string  `json:"contractId"`
	ContractNumber    string  `json:"contractNumber"`
	ClientName        string  `json:"clientName"`
	TotalValue        float64 `json:"totalValue"`
	RecognizedRevenue float64 `json:"recognizedRevenue"`
	DeferredRevenue   float64 `json:"deferredRevenue"`
	Billed            float64 `json:"billed"`
	Paid              float64 `json:"paid"`
}

type FinancialReport struct {
	Period                ReportPeriod      `json:"period"`
	Currency              string            `json:"currency"`
	TotalContractValue    float64           `json:"totalContractValue"`
	OriginalContractValue float64           `json:"originalContractValue"`
	AmendmentImpact       float64           `json:"amendmentImpact"`
	RecognizedRevenue     float64           `json:"recognizedRevenue"`
	DeferredRevenue       float64           `json:"deferredRevenue"`
	UnbilledRevenue       float64           `json:"unbilledRevenue"`
	Billing               BillingMetrics    `json:"billing"`
	Contracts             []ContractRevenue `json:"contracts"`
	GeneratedAt           time.Time         `json:"generatedAt"`
}

// ClientMetrics is one client line of the client analysis report
type ClientMetrics struct {
	ClientID           string  `json:"clientId"`
	CompanyName        string  `json:"companyName"`
	ContractCount      int     `json:"contractCount"`
	ActiveContracts    int     `json:"activeContracts"`
	TotalValue         float64 `json:"totalValue"`
	Paid               float64 `json:"paid"`
	Outstanding        float64 `json:"outstanding"`
	Overdue            float64 `json:"overdue"`
	OnTimePaymentRatio float64 `json:"onTimePaymentRatio"`
	RiskScore          int     `json:"riskScore"`
	CreditRating       string  `json:"creditRating"`
	PaymentHistory     string  `json:"paymentHistory"`
}

type ClientAnalysisReport struct {
	Period       ReportPeriod    `json:"period"`
	TotalClients int             `json:"totalClients"`
	TotalValue   float64         `json:"totalValue"`
	Clients      []ClientMetrics `json:"clients"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

// reportData is the contract set a report aggregates over, with children
type reportData struct {
	contracts  []models.Contract
	milestones map[string][]models.Milestone
	billing    map[string][]models.BillingSchedule
	amendments map[string][]models.ContractAmendment
}

type ReportService struct {
	repos *repository.Repositories
	ttl   time.Duration
}

func NewReportService(repos *repository.Repositories, ttl time.Duration) *ReportService {
	if ttl <= 0 {
		ttl = DefaultReportCacheTTL
	}
	return &ReportService{repos: repos, ttl: ttl}
}

// Performance returns completion, delivery and risk figures across contracts
func (s *ReportService) Performance(ctx context.Context, filter ReportFilter) (*PerformanceReport, error) {
	return cachedReport(ctx, s, filter, ReportPerformance, s.computePerformance)
}

// Financial returns contract value, revenue recognition and collection figures
func (s *ReportService) Financial(ctx context.Context, filter ReportFilter) (*FinancialReport, error) {
	return cachedReport(ctx, s, filter, ReportFinancial, s.computeFinancial)
}

// ClientAnalysis returns per-client value, payment behaviour and risk
func (s *ReportService) ClientAnalysis(ctx context.Context, filter ReportFilter) (*ClientAnalysisReport, error) {
	return cachedReport(ctx, s, filter, ReportClientAnalysis, s.computeClientAnalysis)
}

// RefreshCache drops expired entries and warms the unfiltered reports
func (s *ReportService) RefreshCache(ctx context.Context) error {
	removed, err := s.repos.ReportCache.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge report cache: %w", err)
	}

	filter := ReportFilter{Refresh: true}
	if _, err := s.Performance(ctx, filter); err != nil {
		return err
	}
	if _, err := s.Financial(ctx, filter); err != nil {
		return err
	}
	if _, err := s.ClientAnalysis(ctx, filter); err != nil {
		return err
	}
	logger.Info("[ReportService] report cache refreshed", "expired_removed", removed)
	return nil
}

func cachedReport[T any](ctx context.Context, s *ReportService, filter ReportFilter, kind string, compute func(context.Context, ReportFilter) (*T, error)) (*T, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, apperr.New(apperr.KindInvalidDateRange, "endDate must not be before startDate")
	}
	key := filter.cacheKey(kind)

	if !filter.Refresh {
		entry, err := s.repos.ReportCache.Get(ctx, key)
		if err != nil {
			logger.Warn("report cache read failed", "key", key, "error", err)
		}
		if entry != nil {
			var report T
			if err := json.Unmarshal(entry.Data, &report); err == nil {
				return &report, nil
			}
		}
	}

	report, err := compute(ctx, filter)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(report); err == nil {
		if err := s.repos.ReportCache.Set(ctx, key, raw, s.ttl); err != nil {
			logger.Warn("report cache write failed", "key", key, "error", err)
		}
	}
	return report, nil
}

func (s *ReportService) load(ctx context.Context, filter ReportFilter) (*reportData, error) {
	contracts, err := s.repos.Contract.FindAll(ctx, &repository.ContractQuery{
		Status:       filter.Status,
		ClientID:     filter.ClientID,
		ContractType: filter.ContractType,
		StartDate:    filter.StartDate,
		EndDate:      filter.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}

	ids := make([]string, len(contracts))
	for i := range contracts {
		ids[i] = contracts[i].ContractID
	}

	data := &reportData{
		contracts:  contracts,
		milestones: make(map[string][]models.Milestone),
		billing:    make(map[string][]models.BillingSchedule),
		amendments: make(map[string][]models.ContractAmendment),
	}

	milestones, err := s.repos.Milestone.FindByContracts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load milestones: %w", err)
	}
	for _, m := range milestones {
		data.milestones[m.ContractID] = append(data.milestones[m.ContractID], m)
	}

	schedules, err := s.repos.BillingSchedule.FindByContracts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing schedules: %w", err)
	}
	for _, b := range schedules {
		data.billing[b.ContractID] = append(data.billing[b.ContractID], b)
	}

	amendments, err := s.repos.Amendment.FindByContracts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load amendments: %w", err)
	}
	for _, a := range amendments {
		data.amendments[a.ContractID] = append(data.amendments[a.ContractID], a)
	}
	return data, nil
}

func (s *ReportService) computePerformance(ctx context.Context, filter ReportFilter) (*PerformanceReport, error) {
	data, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	clients, err := s.clientIndex(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &PerformanceReport{
		Period:         ReportPeriod{StartDate: filter.StartDate, EndDate: filter.EndDate},
		TotalContracts: len(data.contracts),
		RiskAssessment: RiskAssessment{
			ByLevel:           map[string]int{models.RiskLow: 0, models.RiskMedium: 0, models.RiskHigh: 0, models.RiskCritical: 0},
			HighRiskContracts: []string{},
		},
		GeneratedAt: now,
	}

	byType := map[string]*ProfitabilityRow{}
	var onTime int
	var paymentScore, utilization, revenueTotal float64
	for i := range data.contracts {
		c := &data.contracts[i]
		milestones := data.milestones[c.ContractID]
		if c.Status == models.ContractStatusActive {
			report.ActiveContracts++
			if days := daysUntil(c.EndDate, now); days >= 0 && days <= 30 {
				report.RiskAssessment.ExpiringIn30Days++
			}
		}

		for j := range milestones {
			m := &milestones[j]
			if !m.CountsTowardsBudget() {
				continue
			}
			report.TotalMilestones++
			if m.Status == models.MilestoneStatusDelayed {
				report.RiskAssessment.DelayedMilestones++
			}
			if m.IsCompleted() {
				report.CompletedMilestones++
				if m.CompletionDate != nil && !models.DateOnly(*m.CompletionDate).After(models.DateOnly(m.TargetDate)) {
					onTime++
				}
			}
		}
		for _, a := range data.amendments[c.ContractID] {
			if a.Status == models.AmendmentStatusPendingApproval {
				report.RiskAssessment.PendingAmendments++
			}
		}

		payments := collectPayments(data.billing[c.ContractID], now)
		report.RiskAssessment.OverdueBillings += payments.OverdueCount

		level := c.RiskLevel
		if level == "" {
			level = models.RiskLow
		}
		report.RiskAssessment.ByLevel[level]++
		if level == models.RiskHigh || level == models.RiskCritical {
			report.RiskAssessment.HighRiskContracts = append(report.RiskAssessment.HighRiskContracts, c.ContractID)
		}
		utilization += performanceMetrics(c, milestones).BudgetUtilization

		score, ok := paymentHistoryScore[clients[c.ClientID].PaymentHistory]
		if !ok {
			score = paymentHistoryScore[models.PaymentHistoryGood]
		}
		paymentScore += score

		row, ok := byType[c.ContractType]
		if !ok {
			row = &ProfitabilityRow{ContractType: c.ContractType}
			byType[c.ContractType] = row
		}
		revenue := recognizedRevenue(c, milestones)
		row.Contracts++
		row.TotalValue += c.TotalValue
		row.AmendmentImpact += c.TotalValue - c.OriginalValue
		row.RecognizedRevenue += revenue
		row.Collected += payments.Paid
		revenueTotal += revenue
	}

	report.CompletionRate = percentOf(float64(report.CompletedMilestones), float64(report.TotalMilestones))
	onTimeRatio := 1.0
	if report.CompletedMilestones > 0 {
		onTimeRatio = float64(onTime) / float64(report.CompletedMilestones)
		report.OnTimeDelivery = percentOf(float64(onTime), float64(report.CompletedMilestones))
	}
	if n := len(data.contracts); n > 0 {
		// 0..5 scale weighted 60/40 between delivery and payment behaviour
		report.ClientSatisfaction = round2((0.6*onTimeRatio + 0.4*paymentScore/float64(n)) * 5)
		report.RiskAssessment.AverageUtilization = round2(utilization / float64(n))
	}

	report.Profitability = make([]ProfitabilityRow, 0, len(byType))
	for _, row := range byType {
		row.TotalValue = round2(row.TotalValue)
		row.AmendmentImpact = round2(row.AmendmentImpact)
		row.RecognizedRevenue = round2(row.RecognizedRevenue)
		row.Collected = round2(row.Collected)
		row.RevenueShare = percentOf(row.RecognizedRevenue, revenueTotal)
		report.Profitability = append(report.Profitability, *row)
	}
	sort.Slice(report.Profitability, func(i, j int) bool {
		return report.Profitability[i].TotalValue > report.Profitability[j].TotalValue
	})
	return report, nil
}

func (s *ReportService) computeFinancial(ctx context.Context, filter ReportFilter) (*FinancialReport, error) {
	data, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &FinancialReport{
		Period:      ReportPeriod{StartDate: filter.StartDate, EndDate: filter.EndDate},
		Currency:    models.DefaultCurrency,
		Contracts:   make([]ContractRevenue, 0, len(data.contracts)),
		GeneratedAt: now,
	}

	var all []models.BillingSchedule
	for i := range data.contracts {
		c := &data.contracts[i]
		schedules := data.billing[c.ContractID]
		all = append(all, schedules...)

		payments := collectPayments(schedules, now)
		billedNet := billedNetAmount(schedules)
		recognized := recognizedRevenue(c, data.milestones[c.ContractID])
		deferred := 0.0
		if billedNet > recognized {
			deferred = round2(billedNet - recognized)
		}

		report.TotalContractValue += c.TotalValue
		report.OriginalContractValue += c.OriginalValue
		report.RecognizedRevenue += recognized
		report.DeferredRevenue += deferred
		if recognized > billedNet {
			report.UnbilledRevenue += recognized - billedNet
		}
		report.Contracts = append(report.Contracts, ContractRevenue{
			ContractID:        c.ContractID,
			ContractNumber:    c.ContractNumber,
			ClientName:        c.ClientName,
			TotalValue:        c.TotalValue,
			RecognizedRevenue: recognized,
			DeferredRevenue:   deferred,
			Billed:            payments.Billed,
			Paid:              payments.Paid,
		})
	}

	report.TotalContractValue = round2(report.TotalContractValue)
	report.OriginalContractValue = round2(report.OriginalContractValue)
	report.AmendmentImpact = round2(report.TotalContractValue - report.OriginalContractValue)
	report.RecognizedRevenue = round2(report.RecognizedRevenue)
	report.DeferredRevenue = round2(report.DeferredRevenue)
	report.UnbilledRevenue = round2(report.UnbilledRevenue)

	payments := collectPayments(all, now)
	report.Billing = BillingMetrics{
		Scheduled:      payments.Scheduled,
		Billed:         payments.Billed,
		Paid:           payments.Paid,
		Outstanding:    payments.Outstanding,
		Overdue:        payments.Overdue,
		InvoiceCount:   payments.Invoices,
		OverdueCount:   payments.OverdueCount,
		CollectionRate: payments.collectionRate(),
	}
	return report, nil
}

// billedNetAmount sums pre-tax amounts already invoiced
func billedNetAmount(schedules []models.BillingSchedule) float64 {
	var total float64
	for i := range schedules {
		b := &schedules[i]
		if b.IsRecurring() {
			continue
		}
		switch b.Status {
		case models.BillingStatusInvoiced, models.BillingStatusOverdue, models.BillingStatusPaid:
			total += b.Amount
		}
	}
	return round2(total)
}

func (s *ReportService) computeClientAnalysis(ctx context.Context, filter ReportFilter) (*ClientAnalysisReport, error) {
	data, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	clients, err := s.clientIndex(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	byClient := map[string]*ClientMetrics{}
	schedulesByClient := map[string][]models.BillingSchedule{}
	for i := range data.contracts {
		c := &data.contracts[i]
		if c.ClientID == "" {
			continue
		}
		row, ok := byClient[c.ClientID]
		if !ok {
			client := clients[c.ClientID]
			row = &ClientMetrics{
				ClientID:       c.ClientID,
				CompanyName:    c.ClientName,
				RiskScore:      client.RiskScore,
				CreditRating:   client.CreditRating,
				PaymentHistory: client.PaymentHistory,
			}
			if client.CompanyName != "" {
				row.CompanyName = client.CompanyName
			}
			byClient[c.ClientID] = row
		}
		row.ContractCount++
		if c.Status == models.ContractStatusActive {
			row.ActiveContracts++
		}
		row.TotalValue += c.TotalValue
		schedulesByClient[c.ClientID] = append(schedulesByClient[c.ClientID], data.billing[c.ContractID]...)
	}

	report := &ClientAnalysisReport{
		Period:      ReportPeriod{StartDate: filter.StartDate, EndDate: filter.EndDate},
		Clients:     make([]ClientMetrics, 0, len(byClient)),
		GeneratedAt: now,
	}
	for id, row := range byClient {
		payments := collectPayments(schedulesByClient[id], now)
		row.TotalValue = round2(row.TotalValue)
		row.Paid = payments.Paid
		row.Outstanding = payments.Outstanding
		row.Overdue = payments.Overdue
		row.OnTimePaymentRatio = round2(payments.onTimeRatio())
		report.TotalValue += row.TotalValue
		report.Clients = append(report.Clients, *row)
	}
	sort.Slice(report.Clients, func(i, j int) bool {
		if report.Clients[i].TotalValue != report.Clients[j].TotalValue {
			return report.Clients[i].TotalValue > report.Clients[j].TotalValue
		}
		return report.Clients[i].ClientID < report.Clients[j].ClientID
	})
	report.TotalClients = len(report.Clients)
	report.TotalValue = round2(report.TotalValue)
	return report, nil
}

func (s *ReportService) clientIndex(ctx context.Context) (map[string]models.Client, error) {
	clients, err := s.repos.Client.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	index := make(map[string]models.Client, len(clients))
	for _, c := range clients {
		index[c.ClientID] = c
	}
	return index, nil
}
