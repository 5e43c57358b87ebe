package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-contracts/internal/models"
)

const dateLayout = "2006-01-02"

// round2 rounds a monetary value to cents
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// percentOf returns part/whole as a percentage rounded to two decimals
func percentOf(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromFloat(part).
		Div(decimal.NewFromFloat(whole)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// taxFor returns the tax and total of an amount at rate percent
func taxFor(amount, rate float64, applicable bool) (tax, total float64) {
	if !applicable {
		return 0, round2(amount)
	}
	a := decimal.NewFromFloat(amount)
	t := a.Mul(decimal.NewFromFloat(rate)).Div(decimal.NewFromInt(100)).Round(2)
	return t.InexactFloat64(), a.Add(t).Round(2).InexactFloat64()
}

// performanceMetrics derives contract progress from its milestones
func performanceMetrics(contract *models.Contract, milestones []models.Milestone) *models.PerformanceMetrics {
	var total, completed int
	var completedPct, spent float64
	for i := range milestones {
		m := &milestones[i]
		if !m.CountsTowardsBudget() {
			continue
		}
		total++
		if m.IsCompleted() {
			completed++
			completedPct += m.Percentage
			spent += m.EffectiveValue()
		}
	}
	if completedPct > 100 {
		completedPct = 100
	}
	return &models.PerformanceMetrics{
		CompletionPercentage: round2(completedPct),
		MilestoneProgress:    progressLabel(completed, total),
		BudgetUtilization:    percentOf(spent, contract.TotalValue),
	}
}

func progressLabel(completed, total int) string {
	return fmt.Sprintf("%d/%d", completed, total)
}

// paymentStats aggregates the money flow of a set of billing schedules.
// Recurring parents are skipped since their occurrences carry the amounts.
type paymentStats struct {
	Scheduled    float64
	Billed       float64
	Paid         float64
	Outstanding  float64
	Overdue      float64
	Invoices     int
	PaidCount    int
	OnTimeCount  int
	OverdueCount int
}

func collectPayments(schedules []models.BillingSchedule, now time.Time) paymentStats {
	var st paymentStats
	for i := range schedules {
		b := &schedules[i]
		if b.IsRecurring() || b.Status == models.BillingStatusCancelled {
			continue
		}
		switch b.Status {
		case models.BillingStatusPending, models.BillingStatusScheduled:
			st.Scheduled += b.TotalAmount
			continue
		}

		st.Invoices++
		st.Billed += b.TotalAmount
		if b.IsPaid() {
			st.PaidCount++
			if b.PaymentAmount != nil {
				st.Paid += *b.PaymentAmount
			} else {
				st.Paid += b.TotalAmount
			}
			if b.DueDate == nil || b.PaymentDate == nil || !models.DateOnly(*b.PaymentDate).After(models.DateOnly(*b.DueDate)) {
				st.OnTimeCount++
			}
			continue
		}
		st.Outstanding += b.TotalAmount
		if b.Status == models.BillingStatusOverdue || b.Track(now).IsOverdue {
			st.Overdue += b.TotalAmount
			st.OverdueCount++
		}
	}
	st.Scheduled = round2(st.Scheduled)
	st.Billed = round2(st.Billed)
	st.Paid = round2(st.Paid)
	st.Outstanding = round2(st.Outstanding)
	st.Overdue = round2(st.Overdue)
	return st
}

// onTimeRatio counts unpaid overdue invoices as late; no history is neutral
func (st paymentStats) onTimeRatio() float64 {
	settled := st.PaidCount + st.OverdueCount
	if settled == 0 {
		return 1
	}
	return float64(st.OnTimeCount) / float64(settled)
}

func (st paymentStats) collectionRate() float64 {
	return percentOf(st.Paid, st.Billed)
}

// recognizedRevenue applies percentage of completion to the contract value
func recognizedRevenue(contract *models.Contract, milestones []models.Milestone) float64 {
	var pct float64
	for i := range milestones {
		if milestones[i].IsCompleted() {
			pct += milestones[i].Percentage
		}
	}
	if pct > 100 {
		pct = 100
	}
	return decimal.NewFromFloat(contract.TotalValue).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}
