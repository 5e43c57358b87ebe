package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

func TestIntegrationService_SyncAndRevenue(t *testing.T) {
	var accountingDown atomic.Bool
	accountingDown.Store(true)
	var crmPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/crm/clients/sync":
			_ = json.NewDecoder(r.Body).Decode(&crmPayload)
			_, _ = w.Write([]byte(`{"accepted":true}`))
		case "/ledger/revenue/entries":
			if accountingDown.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"maintenance"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"posted":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.CRMBaseURL = srv.URL + "/crm"
	cfg.AccountingBaseURL = srv.URL + "/ledger"
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	seedPortfolio(t, env)

	t.Run("crm sync refreshes client totals", func(t *testing.T) {
		res, err := env.svc.Integration.SyncCRM(ctx, manager)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusSuccess, res.Sync.Status)
		assert.Equal(t, http.StatusOK, res.Sync.StatusCode)
		assert.Equal(t, 2, res.ClientsSynced)
		assert.Equal(t, 2, res.ContractsSynced)
		assert.Equal(t, int64(2), res.ClientsRefreshed)
		assert.Len(t, crmPayload["clients"], 2)
	})

	t.Run("unconfigured target is skipped", func(t *testing.T) {
		res, err := env.svc.Integration.PushProjectManagement(ctx, "CTR-A", manager)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusSkipped, res.Sync.Status)

		_, err = env.svc.Integration.PushProjectManagement(ctx, "CTR-404", manager)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("revenue is stored only once accepted", func(t *testing.T) {
		res, err := env.svc.Integration.RecognizeRevenue(ctx, "", manager)
		assert.Equal(t, apperr.KindUpstreamFailure, apperr.KindOf(err))
		require.NotNil(t, res.Sync)
		assert.Equal(t, models.SyncStatusFailed, res.Sync.Status)
		assert.Equal(t, http.StatusServiceUnavailable, res.Sync.StatusCode)

		entries, err := env.repos.Revenue.FindByContract(ctx, "CTR-A")
		require.NoError(t, err)
		assert.Empty(t, entries)

		accountingDown.Store(false)
		res, err = env.svc.Integration.RecognizeRevenue(ctx, "", manager)
		require.NoError(t, err)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, "MS-1", res.Entries[0].MilestoneID)
		assert.Equal(t, 40000.0, res.TotalRecognized)
		assert.Equal(t, "2025-05", res.Entries[0].Period)

		entries, err = env.repos.Revenue.FindByContract(ctx, "CTR-A")
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		// posted milestones are not recognized twice
		res, err = env.svc.Integration.RecognizeRevenue(ctx, "", manager)
		require.NoError(t, err)
		assert.Empty(t, res.Entries)
		assert.Nil(t, res.Sync)
	})

	history, err := env.svc.Integration.History(ctx, models.IntegrationTargetAccounting, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
