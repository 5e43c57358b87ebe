package validation

import (
	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// AmendmentConsistency checks a new amendment against the contract's value
// trajectory: originalValue plus every approved or implemented change plus
// the candidate change.
func AmendmentConsistency(contract *models.Contract, amendments []models.ContractAmendment, candidate *models.ContractAmendment) error {
	committed := contract.OriginalValue
	var implemented float64
	for i := range amendments {
		a := &amendments[i]
		if a.AmendmentNumber == candidate.AmendmentNumber {
			continue
		}
		if a.CountsTowardsValue() {
			committed += a.ImpactAnalysis.ValueChange
		}
		if a.IsImplemented() {
			implemented += a.ImpactAnalysis.ValueChange
		}
		if a.IsPending() && a.Type == candidate.Type &&
			models.DateOnly(a.AmendmentDate).Equal(models.DateOnly(candidate.AmendmentDate)) {
			return apperr.New(apperr.KindConflictingAmendment,
				"amendment %s of type %s is already pending for %s",
				a.AmendmentNumber, a.Type, a.AmendmentDate.Format("2006-01-02"))
		}
	}

	change := candidate.ImpactAnalysis.ValueChange
	projected := committed + change
	if projected <= 0 {
		return apperr.New(apperr.KindConflictingAmendment,
			"value change %.2f would bring the contract value to %.2f", change, projected)
	}
	if change < 0 && implemented > 0 && -change > implemented && projected < contract.OriginalValue {
		return apperr.New(apperr.KindConflictingAmendment,
			"value change %.2f reverses more than the %.2f added by implemented amendments", change, implemented)
	}
	return nil
}
