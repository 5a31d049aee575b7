package internal_test

import (
	"bank_ledger/internal/api"
	"bank_ledger/internal/domain"
	"bank_ledger/internal/idgen"
	"bank_ledger/internal/ledger"
	"bank_ledger/internal/repository/jsonfile"
	"bank_ledger/internal/repository/memory"
	"bank_ledger/internal/service"
	"bank_ledger/pkg/metrics"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

type testEnv struct {
	store   *memory.Store
	engine  *ledger.Engine
	audit   *service.AuditService
	sink    *service.MockSink
	metrics *metrics.MetricsCollector
	router  *gin.Engine
}

func setup(t *testing.T, path string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	persister, err := jsonfile.New(path)
	require.NoError(t, err)

	store := memory.NewStore(persister, log)
	require.NoError(t, store.Open(context.Background()))

	collector := metrics.NewMetricsCollector(log)
	sink := &service.MockSink{}
	audit := service.NewAuditService(2, 100, log, sink)

	engine := ledger.NewEngine(store, idgen.NewSequence(),
		ledger.WithLogger(log),
		ledger.WithRecorder(collector),
		ledger.WithPublisher(audit))
	require.NoError(t, engine.Open(context.Background()))

	router := api.NewRouter(api.NewAPIHandler(engine, log), log, api.RouterConfig{})

	return &testEnv{
		store:   store,
		engine:  engine,
		audit:   audit,
		sink:    sink,
		metrics: collector,
		router:  router,
	}
}

func (e *testEnv) close(t *testing.T) {
	t.Helper()
	require.NoError(t, e.audit.Shutdown(context.Background()))
	require.NoError(t, e.store.Close())
}

func (e *testEnv) call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *api.ErrorBody  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	if errOut, ok := out.(*api.ErrorBody); ok && env.Error != nil {
		*errOut = *env.Error
	}
	return w.Code
}

func TestLedgerEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	env := setup(t, path)

	var customer domain.Customer
	require.Equal(t, http.StatusCreated, env.call(t, http.MethodPost, "/api/v1/customers",
		api.CreateCustomerRequest{Name: "Jane Roe", Email: "jane@example.com", Phone: "555-0101"}, &customer))

	var savings, checking domain.Account
	require.Equal(t, http.StatusCreated, env.call(t, http.MethodPost, "/api/v1/accounts",
		api.CreateAccountRequest{CustomerID: customer.ID, AccountType: "SAVINGS"}, &savings))
	require.Equal(t, http.StatusCreated, env.call(t, http.MethodPost, "/api/v1/accounts",
		api.CreateAccountRequest{CustomerID: customer.ID, AccountType: "CHECKING"}, &checking))

	require.Equal(t, http.StatusCreated, env.call(t, http.MethodPost,
		"/api/v1/accounts/"+savings.AccountNumber+"/deposits", map[string]string{"amount": "1000"}, nil))

	var legs []domain.Transaction
	require.Equal(t, http.StatusCreated, env.call(t, http.MethodPost, "/api/v1/transfers",
		map[string]string{
			"fromAccountNumber": savings.AccountNumber,
			"toAccountNumber":   checking.AccountNumber,
			"amount":            "300.25",
		}, &legs))
	require.Len(t, legs, 2)
	assert.Equal(t, domain.TransferOutDescription(checking.AccountNumber), legs[0].Description)
	assert.Equal(t, domain.TransferInDescription(savings.AccountNumber), legs[1].Description)

	var failure api.ErrorBody
	assert.Equal(t, http.StatusConflict, env.call(t, http.MethodPost,
		"/api/v1/accounts/"+checking.AccountNumber+"/withdrawals", map[string]string{"amount": "5000"}, &failure))
	assert.Equal(t, string(domain.KindInsufficientFunds), failure.Code)

	var summary ledger.Summary
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/v1/summary", nil, &summary))
	assert.Equal(t, 1, summary.CustomerCount)
	assert.Equal(t, 2, summary.AccountCount)
	assert.True(t, summary.TotalBalance.Equal(decimal.NewFromInt(1000)), summary.TotalBalance.String())
	require.Len(t, summary.RecentTransactions, 3)

	env.close(t)

	// customer, two accounts, deposit, transfer
	assert.Equal(t, 5, env.sink.Count())

	reopened := setup(t, path)
	defer reopened.close(t)

	var balance api.BalanceResponse
	require.Equal(t, http.StatusOK, reopened.call(t, http.MethodGet,
		"/api/v1/accounts/"+savings.AccountNumber+"/balance", nil, &balance))
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("699.75")), balance.Balance.String())

	var rec ledger.Reconciliation
	require.Equal(t, http.StatusOK, reopened.call(t, http.MethodGet,
		"/api/v1/accounts/"+checking.AccountNumber+"/reconciliation", nil, &rec))
	assert.True(t, rec.Consistent)
	assert.True(t, rec.Balance.Equal(decimal.RequireFromString("300.25")))

	// the shared sequence resumes after TX-000006
	var third domain.Account
	require.Equal(t, http.StatusCreated, reopened.call(t, http.MethodPost, "/api/v1/accounts",
		api.CreateAccountRequest{CustomerID: customer.ID, AccountType: "SAVINGS"}, &third))
	assert.Equal(t, "ACC-000007", third.AccountNumber)
}

func TestConcurrentTransfersConserveMoney(t *testing.T) {
	env := setup(t, filepath.Join(t.TempDir(), "ledger.json"))
	defer env.close(t)
	ctx := context.Background()

	customer, err := env.engine.CreateCustomer(ctx, ledger.CreateCustomerCommand{
		Name: "Load Test", Email: "load@example.com", Phone: "555-0199",
	})
	require.NoError(t, err)

	accounts := make([]*domain.Account, 4)
	for i := range accounts {
		accounts[i], err = env.engine.CreateAccount(ctx, ledger.CreateAccountCommand{
			CustomerID: customer.ID, AccountType: domain.AccountChecking,
		})
		require.NoError(t, err)
		_, err = env.engine.Deposit(ctx, accounts[i].AccountNumber, decimal.NewFromInt(100))
		require.NoError(t, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 40; i++ {
		from := accounts[i%len(accounts)].AccountNumber
		to := accounts[(i+1)%len(accounts)].AccountNumber
		g.Go(func() error {
			_, err := env.engine.Transfer(gctx, ledger.TransferCommand{
				FromAccountNumber: from,
				ToAccountNumber:   to,
				Amount:            decimal.NewFromInt(7),
			})
			if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) {
				return fmt.Errorf("transfer %s -> %s: %w", from, to, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	deadline, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	summary, err := env.engine.Summary(deadline, 0)
	require.NoError(t, err)
	assert.True(t, summary.TotalBalance.Equal(decimal.NewFromInt(400)), summary.TotalBalance.String())

	for _, a := range accounts {
		rec, err := env.engine.Reconcile(ctx, a.AccountNumber)
		require.NoError(t, err)
		assert.True(t, rec.Consistent, a.AccountNumber)
	}
}
