package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/testutil"
)

func TestContractUpdateVersionGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	testutil.SeedContract(t, db, "CTR-1", 1000, "2025-01-01", "2025-12-31")

	first, err := repos.Contract.FindByContractID(ctx, "CTR-1")
	require.NoError(t, err)
	stale, err := repos.Contract.FindByContractID(ctx, "CTR-1")
	require.NoError(t, err)

	first.Title = "Renamed"
	require.NoError(t, repos.Contract.Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	stale.Title = "Lost update"
	err = repos.Contract.Update(ctx, stale)
	assert.True(t, errors.Is(err, apperr.ErrConcurrentModification))
	assert.Equal(t, 1, stale.Version)

	stored, err := repos.Contract.FindByContractID(ctx, "CTR-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, 2, stored.Version)
}

func TestContractListFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	a := testutil.SeedContract(t, db, "CTR-A", 1000, "2025-01-01", "2025-06-30")
	a.ClientName = "Acme Corp"
	a.ClientID = "CL-1"
	require.NoError(t, db.Save(a).Error)

	b := testutil.SeedContract(t, db, "CTR-B", 2000, "2025-02-01", "2025-12-31")
	b.Title = "Cloud Migration"
	b.Status = models.ContractStatusDraft
	require.NoError(t, db.Save(b).Error)

	c := testutil.SeedContract(t, db, "CTR-C", 3000, "2025-01-01", "2025-03-31")
	c.IsActive = false
	require.NoError(t, db.Save(c).Error)

	q := &ContractQuery{ListQuery: NewListQuery()}
	list, total, err := repos.Contract.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	q = &ContractQuery{ListQuery: NewListQuery()}
	q.Search = "ACME"
	list, _, err = repos.Contract.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CTR-A", list[0].ContractID)

	q = &ContractQuery{ListQuery: NewListQuery(), Status: models.ContractStatusDraft}
	list, _, err = repos.Contract.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CTR-B", list[0].ContractID)

	from := testutil.Date(t, "2025-01-01")
	to := testutil.Date(t, "2025-07-01")
	q = &ContractQuery{ListQuery: NewListQuery(), StartDate: &from, EndDate: &to, IncludeInactive: true}
	list, _, err = repos.Contract.List(ctx, q)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	q = &ContractQuery{ListQuery: NewListQuery()}
	q.PerPage = 500
	_, _, err = repos.Contract.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, q.PerPage)
}

func TestContractSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := NewRepositories(db)

	today := time.Now().UTC()
	soon := testutil.SeedContract(t, db, "CTR-SOON", 1000,
		today.AddDate(0, -6, 0).Format("2006-01-02"), today.AddDate(0, 0, 30).Format("2006-01-02"))
	require.Equal(t, models.ContractStatusActive, soon.Status)

	draft := testutil.SeedContract(t, db, "CTR-DRAFT", 2000,
		today.Format("2006-01-02"), today.AddDate(1, 0, 0).Format("2006-01-02"))
	draft.Status = models.ContractStatusDraft
	require.NoError(t, db.Save(draft).Error)

	summary, err := repos.Contract.Summary(context.Background(), &ContractQuery{}, 90*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.TotalContracts)
	assert.Equal(t, 3000.0, summary.TotalValue)
	assert.Equal(t, int64(1), summary.ActiveContracts)
	assert.Equal(t, int64(1), summary.StatusBreakdown[models.ContractStatusDraft])
	assert.Equal(t, int64(2), summary.TypeBreakdown[models.ContractTypeFixedPrice])
	assert.Equal(t, int64(1), summary.UpcomingRenewals)
}

func TestTransactionRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		c := &models.Contract{
			ContractID: "CTR-TX", ContractNumber: "CN-TX", Title: "tx", Status: models.ContractStatusDraft,
			StartDate: time.Now(), EndDate: time.Now().Add(24 * time.Hour), TotalValue: 1, OriginalValue: 1,
			Currency: "USD", IsActive: true,
		}
		require.NoError(t, tx.Contract.Create(ctx, c))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Contract.FindByContractID(ctx, "CTR-TX")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestReportCacheSetAndExpire(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	require.NoError(t, repos.ReportCache.Set(ctx, "performance", []byte(`{"a":1}`), time.Minute))
	require.NoError(t, repos.ReportCache.Set(ctx, "performance", []byte(`{"a":2}`), time.Minute))

	entry, err := repos.ReportCache.Get(ctx, "performance")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.JSONEq(t, `{"a":2}`, string(entry.Data))

	require.NoError(t, repos.ReportCache.Set(ctx, "stale", []byte(`{}`), -time.Minute))
	entry, err = repos.ReportCache.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, entry)

	removed, err := repos.ReportCache.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestAlertFindOpenDeduplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	ms := "MS-1"
	require.NoError(t, repos.Alert.Create(ctx, &models.Alert{
		Type: models.AlertTypeMilestoneRisk, Severity: models.RiskHigh, ContractID: "CTR-1",
		MilestoneID: &ms, Message: "late", Status: models.AlertStatusOpen,
	}))

	found, err := repos.Alert.FindOpen(ctx, models.AlertTypeMilestoneRisk, "CTR-1", &ms)
	require.NoError(t, err)
	assert.Equal(t, "late", found.Message)

	_, err = repos.Alert.FindOpen(ctx, models.AlertTypeMilestoneRisk, "CTR-1", nil)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
