package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/internal/jobs"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/storage"
	"github.com/sjperalta/fintera-contracts/internal/testutil"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

var manager = Actor{UserID: 2, Email: "pm@example.com", Role: models.RoleContractManager}

var admin = Actor{UserID: 1, Email: "admin@example.com", Role: models.RoleAdmin}

type testEnv struct {
	db     *gorm.DB
	repos  *repository.Repositories
	svc    *Services
	worker *jobs.Worker
	cfg    *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:             "test",
		JWTSecret:               "test-secret",
		JWTExpirationHours:      24,
		EscalationThresholdDays: 7,
		AlertExpirationDays:     30,
		ReportCacheTTL:          time.Minute,
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger.Setup("test", "error")
	if cfg == nil {
		cfg = testConfig()
	}

	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	worker := jobs.NewWorker(1)
	t.Cleanup(worker.Shutdown)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return &testEnv{
		db:     db,
		repos:  repos,
		svc:    NewServices(repos, worker, jobs.NewScheduler(context.Background()), store, cfg),
		worker: worker,
		cfg:    cfg,
	}
}

func (e *testEnv) createContract(t *testing.T, id string, value float64, start, end string) *models.Contract {
	t.Helper()
	c, err := e.svc.Contract.Create(context.Background(), &ContractInput{
		ContractID:     id,
		ContractNumber: "CN-" + id,
		Title:          "Contract " + id,
		ClientName:     "Acme Corp",
		StartDate:      testutil.Date(t, start),
		EndDate:        testutil.Date(t, end),
		TotalValue:     value,
	}, manager)
	require.NoError(t, err)
	return c
}

func (e *testEnv) createMilestone(t *testing.T, contractID, id string, pct float64, target string, deps ...string) *models.Milestone {
	t.Helper()
	res, err := e.svc.Milestone.Create(context.Background(), contractID, &MilestoneInput{
		MilestoneID:  id,
		Title:        "Milestone " + id,
		TargetDate:   testutil.Date(t, target),
		Percentage:   pct,
		IsBillable:   true,
		Dependencies: deps,
	}, manager)
	require.NoError(t, err)
	return res.Milestone
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// recordingNotifier captures workflow notifications
type recordingNotifier struct {
	mu        sync.Mutex
	activated []string
	renewed   []string
	alerts    int
}

func (n *recordingNotifier) ContractActivated(ctx context.Context, contract *models.Contract, milestones, billing int, actor Actor) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activated = append(n.activated, contract.ContractID)
	return nil
}

func (n *recordingNotifier) ContractRenewed(ctx context.Context, previous, successor *models.Contract) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.renewed = append(n.renewed, successor.ContractID)
	return nil
}

func (n *recordingNotifier) AlertsRaised(ctx context.Context, title string, alerts []models.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts += len(alerts)
	return nil
}
