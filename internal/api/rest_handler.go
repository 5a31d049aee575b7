package api

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/ledger"
	"bank_ledger/internal/logger"
	"bank_ledger/pkg/validator"
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the set of engine operations the HTTP layer exposes.
type Ledger interface {
	CreateCustomer(ctx context.Context, cmd ledger.CreateCustomerCommand) (*domain.Customer, error)
	CreateAccount(ctx context.Context, cmd ledger.CreateAccountCommand) (*domain.Account, error)
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Transaction, error)
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Transaction, error)
	Transfer(ctx context.Context, cmd ledger.TransferCommand) ([]*domain.Transaction, error)
	GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error)
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]*domain.Account, error)
	GetTransactionsFor(ctx context.Context, accountNumber string) ([]*domain.Transaction, error)
	GetAllTransactionsOrdered(ctx context.Context) ([]*domain.Transaction, error)
	Summary(ctx context.Context, recent int) (*ledger.Summary, error)
	AuditReport(ctx context.Context) ([]ledger.CustomerAccounts, error)
	Reconcile(ctx context.Context, accountNumber string) (*ledger.Reconciliation, error)
}

type APIHandler struct {
	ledger Ledger
	logger *zap.Logger
}

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateAccountRequest struct {
	CustomerID  string `json:"customerId"`
	AccountType string `json:"accountType"`
}

// AmountRequest is left unvalidated at binding time: an unknown account must
// win over a bad amount, and only the engine knows both.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	FromAccountNumber string          `json:"fromAccountNumber" binding:"required"`
	ToAccountNumber   string          `json:"toAccountNumber" binding:"required,nefield=FromAccountNumber"`
	Amount            decimal.Decimal `json:"amount" binding:"positive_decimal"`
}

type BalanceResponse struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var bindingOnce sync.Once

func NewAPIHandler(l Ledger, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
			v.RegisterTagNameFunc(validator.JSONFieldName)
			if err := validator.RegisterDecimal(v); err != nil {
				logger.Error("Failed to register decimal validation", zap.Error(err))
			}
		}
	})
	return &APIHandler{ledger: l, logger: logger}
}

func (h *APIHandler) CreateCustomerHandler(c *gin.Context) {
	var req CreateCustomerRequest
	if !h.bind(c, &req) {
		return
	}

	customer, err := h.ledger.CreateCustomer(c.Request.Context(), ledger.CreateCustomerCommand(req))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusCreated, customer)
}

func (h *APIHandler) ListCustomersHandler(c *gin.Context) {
	customers, err := h.ledger.ListCustomers(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, customers)
}

func (h *APIHandler) GetCustomerHandler(c *gin.Context) {
	customer, err := h.ledger.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, customer)
}

func (h *APIHandler) ListCustomerAccountsHandler(c *gin.Context) {
	accounts, err := h.ledger.ListAccountsByCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, accounts)
}

func (h *APIHandler) CreateAccountHandler(c *gin.Context) {
	var req CreateAccountRequest
	if !h.bind(c, &req) {
		return
	}

	account, err := h.ledger.CreateAccount(c.Request.Context(), ledger.CreateAccountCommand{
		CustomerID:  req.CustomerID,
		AccountType: domain.AccountType(req.AccountType),
	})
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusCreated, account)
}

func (h *APIHandler) GetAccountHandler(c *gin.Context) {
	account, err := h.ledger.GetAccount(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, account)
}

func (h *APIHandler) GetBalanceHandler(c *gin.Context) {
	number := c.Param("number")
	balance, err := h.ledger.GetBalance(c.Request.Context(), number)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, BalanceResponse{AccountNumber: number, Balance: balance})
}

func (h *APIHandler) GetAccountTransactionsHandler(c *gin.Context) {
	txs, err := h.ledger.GetTransactionsFor(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, txs)
}

func (h *APIHandler) ReconcileHandler(c *gin.Context) {
	report, err := h.ledger.Reconcile(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, report)
}

func (h *APIHandler) DepositHandler(c *gin.Context) {
	var req AmountRequest
	if !h.bind(c, &req) {
		return
	}

	tx, err := h.ledger.Deposit(c.Request.Context(), c.Param("number"), req.Amount)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusCreated, tx)
}

func (h *APIHandler) WithdrawHandler(c *gin.Context) {
	var req AmountRequest
	if !h.bind(c, &req) {
		return
	}

	tx, err := h.ledger.Withdraw(c.Request.Context(), c.Param("number"), req.Amount)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusCreated, tx)
}

func (h *APIHandler) TransferHandler(c *gin.Context) {
	var req TransferRequest
	if !h.bind(c, &req) {
		return
	}

	legs, err := h.ledger.Transfer(c.Request.Context(), ledger.TransferCommand(req))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusCreated, legs)
}

func (h *APIHandler) ListTransactionsHandler(c *gin.Context) {
	txs, err := h.ledger.GetAllTransactionsOrdered(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, txs)
}

func (h *APIHandler) SummaryHandler(c *gin.Context) {
	recent := ledger.DefaultRecent
	if raw := c.Query("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.sendError(c, domain.NewValidationError("recent must be an integer"))
			return
		}
		recent = n
	}

	summary, err := h.ledger.Summary(c.Request.Context(), recent)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, summary)
}

func (h *APIHandler) AuditHandler(c *gin.Context) {
	report, err := h.ledger.AuditReport(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendJSON(c, http.StatusOK, report)
}

func (h *APIHandler) HealthCheckHandler(c *gin.Context) {
	h.sendJSON(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// bind decodes the JSON body and writes a 400 on failure.
func (h *APIHandler) bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) {
		h.sendError(c, validator.Translate(err))
	} else {
		h.sendError(c, domain.NewValidationError("invalid request body: %v", err))
	}
	return false
}

func (h *APIHandler) sendJSON(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

func (h *APIHandler) sendError(c *gin.Context, err error) {
	statusCode, body := errorResponse(err)
	c.JSON(statusCode, Response{Success: false, Error: body})
	_ = c.Error(err)

	logger.FromContext(c.Request.Context()).Warn("API error response",
		zap.String("code", body.Code),
		zap.String("message", body.Message),
		zap.Int("status", statusCode))
}

func errorResponse(err error) (int, *ErrorBody) {
	kind := domain.KindOf(err)
	message := err.Error()

	var derr *domain.Error
	if errors.As(err, &derr) {
		message = derr.Message
	}

	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest, &ErrorBody{Code: string(kind), Message: message}
	case domain.KindNotFound:
		return http.StatusNotFound, &ErrorBody{Code: string(kind), Message: message}
	case domain.KindInsufficientFunds:
		return http.StatusConflict, &ErrorBody{Code: string(kind), Message: message}
	case domain.KindPersistence:
		return http.StatusInternalServerError, &ErrorBody{Code: string(kind), Message: message}
	default:
		return http.StatusInternalServerError, &ErrorBody{Code: string(domain.KindInternal), Message: "internal server error"}
	}
}

func (h *APIHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/health", h.HealthCheckHandler)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/customers", h.CreateCustomerHandler)
		v1.GET("/customers", h.ListCustomersHandler)
		v1.GET("/customers/:id", h.GetCustomerHandler)
		v1.GET("/customers/:id/accounts", h.ListCustomerAccountsHandler)

		v1.POST("/accounts", h.CreateAccountHandler)
		v1.GET("/accounts/:number", h.GetAccountHandler)
		v1.GET("/accounts/:number/balance", h.GetBalanceHandler)
		v1.GET("/accounts/:number/transactions", h.GetAccountTransactionsHandler)
		v1.GET("/accounts/:number/reconciliation", h.ReconcileHandler)
		v1.POST("/accounts/:number/deposits", h.DepositHandler)
		v1.POST("/accounts/:number/withdrawals", h.WithdrawHandler)

		v1.POST("/transfers", h.TransferHandler)
		v1.GET("/transactions", h.ListTransactionsHandler)
		v1.GET("/summary", h.SummaryHandler)
		v1.GET("/audit", h.AuditHandler)
	}
}
