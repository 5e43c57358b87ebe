package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/internal/jobs"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/services"
	"github.com/sjperalta/fintera-contracts/internal/storage"
	"github.com/sjperalta/fintera-contracts/internal/testutil"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

const testPassword = "s3cret-pass"

type apiEnv struct {
	router *gin.Engine
	svcs   *services.Services
	tokens map[string]string
}

// newAPIEnv boots the full router on an in-memory database and logs in
// one user per role
func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Setup("test", "error")

	cfg := &config.Config{
		Environment:             "test",
		JWTSecret:               "handler-secret",
		JWTExpirationHours:      1,
		AllowedOrigins:          []string{"*"},
		EscalationThresholdDays: 7,
		AlertExpirationDays:     30,
		ReportCacheTTL:          time.Minute,
	}

	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	worker := jobs.NewWorker(1)
	t.Cleanup(worker.Shutdown)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svcs := services.NewServices(repos, worker, jobs.NewScheduler(context.Background()), store, cfg)
	env := &apiEnv{
		router: NewRouter(NewHandlers(svcs), cfg),
		svcs:   svcs,
		tokens: map[string]string{},
	}

	for _, role := range models.Roles {
		_, err := svcs.User.Create(context.Background(), &services.UserInput{
			Email:    role + "@example.com",
			Password: testPassword,
			FullName: role,
			Role:     role,
		}, services.Actor{Email: "setup"})
		require.NoError(t, err)

		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": role + "@example.com", "password": testPassword})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var login struct {
			Data services.LoginResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
		env.tokens[role] = login.Data.Token
	}
	return env
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) as(t *testing.T, role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, e.tokens[role], body)
}

// envelope decodes a response, leaving data raw for the caller
type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Summary json.RawMessage   `json:"summary"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func contractBody(id string, value float64) gin.H {
	return gin.H{
		"contractId":     id,
		"contractNumber": "CN-" + id,
		"title":          "Contract " + id,
		"clientName":     "Acme Corp",
		"startDate":      "2025-01-01",
		"endDate":        "2025-12-31",
		"totalValue":     value,
	}
}
