package ledger

import (
	"bank_ledger/internal/domain"
	"context"

	"github.com/shopspring/decimal"
)

const DefaultRecent = 10

type Summary struct {
	CustomerCount      int                   `json:"customerCount"`
	AccountCount       int                   `json:"accountCount"`
	TotalBalance       decimal.Decimal       `json:"totalBalance"`
	RecentTransactions []*domain.Transaction `json:"recentTransactions"`
}

type CustomerAccounts struct {
	Customer *domain.Customer  `json:"customer"`
	Accounts []*domain.Account `json:"accounts"`
}

type Reconciliation struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Computed      decimal.Decimal `json:"computed"`
	Consistent    bool            `json:"consistent"`
}

// Summary reports system-wide totals and the most recent transactions.
func (e *Engine) Summary(ctx context.Context, recent int) (*Summary, error) {
	if recent < 0 {
		return nil, domain.NewValidationError("recent must not be negative")
	}

	customers, err := e.store.ListCustomers(ctx)
	if err != nil {
		return nil, e.storeError(err)
	}
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, e.storeError(err)
	}
	txs, err := e.GetAllTransactionsOrdered(ctx)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	if len(txs) > recent {
		txs = txs[:recent]
	}

	return &Summary{
		CustomerCount:      len(customers),
		AccountCount:       len(accounts),
		TotalBalance:       total,
		RecentTransactions: txs,
	}, nil
}

func (e *Engine) AuditReport(ctx context.Context) ([]CustomerAccounts, error) {
	customers, err := e.store.ListCustomers(ctx)
	if err != nil {
		return nil, e.storeError(err)
	}

	report := make([]CustomerAccounts, 0, len(customers))
	for _, c := range customers {
		accounts, err := e.store.ListAccountsByCustomer(ctx, c.ID)
		if err != nil {
			return nil, e.storeError(err)
		}
		report = append(report, CustomerAccounts{Customer: c, Accounts: accounts})
	}
	return report, nil
}

// Reconcile replays the account's history and compares the result with the
// stored balance. The account lock keeps both reads on the same state.
func (e *Engine) Reconcile(ctx context.Context, accountNumber string) (*Reconciliation, error) {
	release := e.locks.acquire(accountNumber)
	defer release()

	account, err := e.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	txs, err := e.store.ListTransactionsByAccount(ctx, accountNumber)
	if err != nil {
		return nil, e.storeError(err)
	}

	computed := decimal.Zero
	for _, tx := range txs {
		computed = computed.Add(tx.Effect())
	}

	return &Reconciliation{
		AccountNumber: accountNumber,
		Balance:       account.Balance,
		Computed:      computed,
		Consistent:    computed.Equal(account.Balance),
	}, nil
}
