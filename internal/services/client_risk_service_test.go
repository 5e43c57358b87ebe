package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

func TestClientRiskService_UpdateScore(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	seedPortfolio(t, env)

	good, err := env.svc.ClientRisk.UpdateScore(ctx, "CL-1")
	require.NoError(t, err)
	assert.Equal(t, 18, good.RiskScore)
	assert.Equal(t, "AA", good.CreditRating)
	assert.Equal(t, models.PaymentHistoryExcellent, good.PaymentHistory)

	// overdue invoice plus more than half of the billed amount outstanding
	bad, err := env.svc.ClientRisk.UpdateScore(ctx, "CL-2")
	require.NoError(t, err)
	assert.Equal(t, 40, bad.RiskScore)
	assert.Equal(t, "BBB", bad.CreditRating)
	assert.Equal(t, models.PaymentHistoryPoor, bad.PaymentHistory)

	stored, err := env.repos.Client.FindByClientID(ctx, "CL-2")
	require.NoError(t, err)
	assert.Equal(t, 40, stored.RiskScore)

	_, err = env.svc.ClientRisk.UpdateScore(ctx, "CL-404")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestClientRiskService_UpdateAllScores(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	seedPortfolio(t, env)

	processed, err := env.svc.ClientRisk.UpdateAllScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	client, err := env.repos.Client.FindByClientID(ctx, "CL-1")
	require.NoError(t, err)
	assert.Equal(t, 1, client.ContractCount)
	assert.Equal(t, 100000.0, client.TotalContractValue)
	assert.Equal(t, "AA", client.CreditRating)
}

func TestCreditRatingBands(t *testing.T) {
	cases := map[int]string{0: "AAA", 10: "AAA", 20: "AA", 25: "A", 45: "BBB", 60: "BB", 75: "B", 76: "C", 100: "C"}
	for score, want := range cases {
		assert.Equal(t, want, creditRating(score), "score %d", score)
	}
	assert.Equal(t, models.PaymentHistoryGood, paymentHistoryFor(0.8))
	assert.Equal(t, models.PaymentHistoryFair, paymentHistoryFor(0.6))
}
