package repository

import (
	"bank_ledger/internal/domain"
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Store is the entity store the ledger engine works against. Reads return
// copies; all writes go through Update so they commit or roll back as one unit.
type Store interface {
	FindCustomer(ctx context.Context, id string) (*domain.Customer, error)
	FindAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]*domain.Account, error)
	ListTransactionsByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]*domain.Transaction, error)
	Update(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type UnitOfWork interface {
	FindCustomer(id string) (*domain.Customer, error)
	FindAccount(accountNumber string) (*domain.Account, error)
	InsertCustomer(customer *domain.Customer) error
	InsertAccount(account *domain.Account) error
	SetBalance(accountNumber string, balance decimal.Decimal) error
	AppendTransaction(tx *domain.Transaction) error
}

// Persister writes the full collections after every mutation. Load returns
// nil when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Snapshot holds every collection; slices are in insertion order.
type Snapshot struct {
	Customers    []*domain.Customer    `json:"customers"`
	Accounts     []*domain.Account     `json:"accounts"`
	Transactions []*domain.Transaction `json:"transactions"`
}

func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Customers:    []*domain.Customer{},
		Accounts:     []*domain.Account{},
		Transactions: []*domain.Transaction{},
	}
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
