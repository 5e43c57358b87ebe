package services

import (
	"fmt"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// maxOccurrences bounds the generated schedule of one recurring entry
const maxOccurrences = 520

var frequencies = []string{
	models.FrequencyWeekly,
	models.FrequencyMonthly,
	models.FrequencyQuarterly,
	models.FrequencySemiAnnually,
	models.FrequencyAnnually,
}

// BillingScheduleGenerator expands recurring billing windows into occurrences
type BillingScheduleGenerator struct{}

// NewBillingScheduleGenerator creates a new generator
func NewBillingScheduleGenerator() *BillingScheduleGenerator {
	return &BillingScheduleGenerator{}
}

// Generate returns every occurrence of frequency between start and end, both
// included. Month based steps are computed from start so that a schedule
// starting on the 31st bills on the last day of shorter months.
func (g *BillingScheduleGenerator) Generate(frequency string, start, end time.Time, amount float64) ([]models.BillingOccurrence, error) {
	start, end = models.DateOnly(start), models.DateOnly(end)
	if end.Before(start) {
		return nil, apperr.New(apperr.KindInvalidDateRange, "recurring end date must not precede its start date")
	}

	var occurrences []models.BillingOccurrence
	for i := 0; ; i++ {
		date, err := occurrenceDate(frequency, start, i)
		if err != nil {
			return nil, err
		}
		if date.After(end) {
			break
		}
		if i >= maxOccurrences {
			return nil, apperr.New(apperr.KindInvalidValue,
				"recurring window produces more than %d occurrences", maxOccurrences)
		}
		occurrences = append(occurrences, models.BillingOccurrence{
			Sequence:    i + 1,
			BillingDate: date,
			Amount:      round2(amount),
		})
	}
	return occurrences, nil
}

// Due returns the occurrences billed on or before asOf
func (g *BillingScheduleGenerator) Due(occurrences []models.BillingOccurrence, asOf time.Time) []models.BillingOccurrence {
	cutoff := models.DateOnly(asOf)
	var due []models.BillingOccurrence
	for _, o := range occurrences {
		if !models.DateOnly(o.BillingDate).After(cutoff) {
			due = append(due, o)
		}
	}
	return due
}

// OccurrenceScheduleID is the deterministic id of a materialized occurrence
func OccurrenceScheduleID(parentID string, sequence int) string {
	return fmt.Sprintf("%s-%d", parentID, sequence)
}

func occurrenceDate(frequency string, start time.Time, n int) (time.Time, error) {
	switch frequency {
	case models.FrequencyWeekly:
		return start.AddDate(0, 0, 7*n), nil
	case models.FrequencyMonthly:
		return addMonthsClamped(start, n), nil
	case models.FrequencyQuarterly:
		return addMonthsClamped(start, 3*n), nil
	case models.FrequencySemiAnnually:
		return addMonthsClamped(start, 6*n), nil
	case models.FrequencyAnnually:
		return addMonthsClamped(start, 12*n), nil
	}
	return time.Time{}, apperr.New(apperr.KindInvalidInput, "unknown billing frequency %q", frequency)
}

// addMonthsClamped adds months keeping the day of month when it exists
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
