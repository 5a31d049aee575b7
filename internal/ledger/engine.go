package ledger

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/idgen"
	"bank_ledger/internal/repository"
	"bank_ledger/pkg/validator"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Recorder interface {
	ObserveOperation(operation string, duration time.Duration, err error)
	SetBalance(accountNumber string, accountType domain.AccountType, balance decimal.Decimal)
}

// Publisher receives an event after every committed operation. Publish must
// not block.
type Publisher interface {
	Publish(event domain.LedgerEvent)
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns every balance change. Mutations lock the accounts they touch,
// in sorted order, for the whole check-and-commit.
type Engine struct {
	store     repository.Store
	ids       idgen.Generator
	validator *validator.CommandValidator
	locks     *accountLocks
	recorder  Recorder
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewEngine(store repository.Store, ids idgen.Generator, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		ids:       ids,
		validator: validator.NewCommandValidator(),
		locks:     newAccountLocks(),
		recorder:  nopRecorder{},
		publisher: nopPublisher{},
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open primes the id generator with identifiers already in the store and
// publishes the current balances to the recorder.
func (e *Engine) Open(ctx context.Context) error {
	customers, err := e.store.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	transactions, err := e.store.ListAllTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	if obs, ok := e.ids.(interface{ Observe(id string) }); ok {
		for _, c := range customers {
			obs.Observe(c.ID)
		}
		for _, a := range accounts {
			obs.Observe(a.AccountNumber)
		}
		for _, tx := range transactions {
			obs.Observe(tx.ID)
		}
	}

	for _, a := range accounts {
		e.recorder.SetBalance(a.AccountNumber, a.AccountType, a.Balance)
	}

	e.logger.Info("Ledger engine ready",
		zap.Int("customers", len(customers)),
		zap.Int("accounts", len(accounts)),
		zap.Int("transactions", len(transactions)))
	return nil
}

func (e *Engine) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (customer *domain.Customer, err error) {
	defer e.observe("create_customer", time.Now(), &err)

	if err := e.validator.Struct(cmd); err != nil {
		return nil, err
	}

	customer = &domain.Customer{
		ID:    e.ids.Next(idgen.KindCustomer),
		Name:  cmd.Name,
		Email: cmd.Email,
		Phone: cmd.Phone,
	}

	err = e.store.Update(ctx, func(uow repository.UnitOfWork) error {
		return uow.InsertCustomer(customer)
	})
	if err != nil {
		return nil, e.storeError(err)
	}

	e.logger.Info("Customer created", zap.String("customer_id", customer.ID))
	e.publisher.Publish(domain.LedgerEvent{
		Type:       domain.EventCustomerCreated,
		CustomerID: customer.ID,
		OccurredAt: e.now(),
	})
	return customer, nil
}

func (e *Engine) CreateAccount(ctx context.Context, cmd CreateAccountCommand) (account *domain.Account, err error) {
	defer e.observe("create_account", time.Now(), &err)

	err = e.store.Update(ctx, func(uow repository.UnitOfWork) error {
		if _, err := uow.FindCustomer(cmd.CustomerID); err != nil {
			return domain.NewNotFoundError("customer %s not found", cmd.CustomerID)
		}
		if err := e.validator.Struct(cmd); err != nil {
			return err
		}
		account = domain.NewAccount(e.ids.Next(idgen.KindAccount), cmd.AccountType, cmd.CustomerID)
		return uow.InsertAccount(account)
	})
	if err != nil {
		return nil, e.storeError(err)
	}

	e.recorder.SetBalance(account.AccountNumber, account.AccountType, account.Balance)
	e.logger.Info("Account created",
		zap.String("account_number", account.AccountNumber),
		zap.String("account_type", string(account.AccountType)),
		zap.String("customer_id", account.CustomerID))
	e.publisher.Publish(domain.LedgerEvent{
		Type:       domain.EventAccountCreated,
		CustomerID: account.CustomerID,
		Accounts:   []string{account.AccountNumber},
		OccurredAt: e.now(),
	})
	return account, nil
}

func (e *Engine) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (tx *domain.Transaction, err error) {
	defer e.observe("deposit", time.Now(), &err)

	release := e.locks.acquire(accountNumber)
	defer release()

	var update domain.BalanceUpdate
	var account *domain.Account
	err = e.store.Update(ctx, func(uow repository.UnitOfWork) error {
		var err error
		account, err = e.findAccount(uow, accountNumber)
		if err != nil {
			return err
		}
		if err := e.validator.Struct(MoneyCommand{AccountNumber: accountNumber, Amount: amount}); err != nil {
			return err
		}

		update = domain.BalanceUpdate{
			AccountNumber: accountNumber,
			Previous:      account.Balance,
			Current:       account.Balance.Add(amount),
		}
		if err := uow.SetBalance(accountNumber, update.Current); err != nil {
			return err
		}

		tx = domain.NewTransaction(e.ids.Next(idgen.KindTransaction), domain.TypeDeposit, accountNumber, amount, e.now()).
			WithDescription(domain.DescriptionDeposit)
		return uow.AppendTransaction(tx)
	})
	if err != nil {
		return nil, e.storeError(err)
	}

	e.committed(domain.EventDeposit, account, []*domain.Transaction{tx}, []domain.BalanceUpdate{update}, account)
	return tx, nil
}

func (e *Engine) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (tx *domain.Transaction, err error) {
	defer e.observe("withdraw", time.Now(), &err)

	release := e.locks.acquire(accountNumber)
	defer release()

	var update domain.BalanceUpdate
	var account *domain.Account
	err = e.store.Update(ctx, func(uow repository.UnitOfWork) error {
		var err error
		account, err = e.findAccount(uow, accountNumber)
		if err != nil {
			return err
		}
		if err := e.validator.Struct(MoneyCommand{AccountNumber: accountNumber, Amount: amount}); err != nil {
			return err
		}
		if account.Balance.LessThan(amount) {
			return domain.NewInsufficientFundsError("account %s has %s, cannot withdraw %s",
				accountNumber, account.Balance.StringFixed(2), amount.StringFixed(2))
		}

		update = domain.BalanceUpdate{
			AccountNumber: accountNumber,
			Previous:      account.Balance,
			Current:       account.Balance.Sub(amount),
		}
		if err := uow.SetBalance(accountNumber, update.Current); err != nil {
			return err
		}

		tx = domain.NewTransaction(e.ids.Next(idgen.KindTransaction), domain.TypeWithdrawal, accountNumber, amount, e.now()).
			WithDescription(domain.DescriptionWithdrawal)
		return uow.AppendTransaction(tx)
	})
	if err != nil {
		return nil, e.storeError(err)
	}

	e.committed(domain.EventWithdrawal, account, []*domain.Transaction{tx}, []domain.BalanceUpdate{update}, account)
	return tx, nil
}

// Transfer moves amount between two accounts and records both legs, source
// first. Either everything commits or nothing does.
func (e *Engine) Transfer(ctx context.Context, cmd TransferCommand) (legs []*domain.Transaction, err error) {
	defer e.observe("transfer", time.Now(), &err)

	if err := e.validator.Struct(cmd); err != nil {
		return nil, err
	}

	from, to, amount := cmd.FromAccountNumber, cmd.ToAccountNumber, cmd.Amount

	release := e.locks.acquire(from, to)
	defer release()

	var updates []domain.BalanceUpdate
	var source, destination *domain.Account
	err = e.store.Update(ctx, func(uow repository.UnitOfWork) error {
		var err error
		if source, err = e.findAccount(uow, from); err != nil {
			return err
		}
		if destination, err = e.findAccount(uow, to); err != nil {
			return err
		}
		if source.Balance.LessThan(amount) {
			return domain.NewInsufficientFundsError("account %s has %s, cannot transfer %s",
				from, source.Balance.StringFixed(2), amount.StringFixed(2))
		}

		updates = []domain.BalanceUpdate{
			{AccountNumber: from, Previous: source.Balance, Current: source.Balance.Sub(amount)},
			{AccountNumber: to, Previous: destination.Balance, Current: destination.Balance.Add(amount)},
		}
		for _, u := range updates {
			if err := uow.SetBalance(u.AccountNumber, u.Current); err != nil {
				return err
			}
		}

		at := e.now()
		out := domain.NewTransaction(e.ids.Next(idgen.KindTransaction), domain.TypeTransfer, from, amount, at).
			WithRelatedAccount(to).
			WithDirection(domain.DirectionOut).
			WithDescription(domain.TransferOutDescription(to))
		in := domain.NewTransaction(e.ids.Next(idgen.KindTransaction), domain.TypeTransfer, to, amount, at).
			WithRelatedAccount(from).
			WithDirection(domain.DirectionIn).
			WithDescription(domain.TransferInDescription(from))

		if err := uow.AppendTransaction(out); err != nil {
			return err
		}
		if err := uow.AppendTransaction(in); err != nil {
			return err
		}
		legs = []*domain.Transaction{out, in}
		return nil
	})
	if err != nil {
		return nil, e.storeError(err)
	}

	e.committed(domain.EventTransfer, source, legs, updates, source, destination)
	return legs, nil
}

func (e *Engine) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	account, err := e.GetAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (e *Engine) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	account, err := e.store.FindAccount(ctx, accountNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewNotFoundError("account %s not found", accountNumber)
	}
	if err != nil {
		return nil, e.storeError(err)
	}
	return account, nil
}

func (e *Engine) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := e.store.FindCustomer(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewNotFoundError("customer %s not found", id)
	}
	if err != nil {
		return nil, e.storeError(err)
	}
	return customer, nil
}

func (e *Engine) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	customers, err := e.store.ListCustomers(ctx)
	if err != nil {
		return nil, e.storeError(err)
	}
	return customers, nil
}

func (e *Engine) ListAccountsByCustomer(ctx context.Context, customerID string) ([]*domain.Account, error) {
	if _, err := e.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	accounts, err := e.store.ListAccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, e.storeError(err)
	}
	return accounts, nil
}

// GetTransactionsFor returns the account's history newest first. An unknown
// account simply has no history.
func (e *Engine) GetTransactionsFor(ctx context.Context, accountNumber string) ([]*domain.Transaction, error) {
	txs, err := e.store.ListTransactionsByAccount(ctx, accountNumber)
	if err != nil {
		return nil, e.storeError(err)
	}
	sortNewestFirst(txs)
	return txs, nil
}

func (e *Engine) GetAllTransactionsOrdered(ctx context.Context) ([]*domain.Transaction, error) {
	txs, err := e.store.ListAllTransactions(ctx)
	if err != nil {
		return nil, e.storeError(err)
	}
	sortNewestFirst(txs)
	return txs, nil
}

// sortNewestFirst expects txs in insertion order; equal timestamps keep it.
func sortNewestFirst(txs []*domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
}

func (e *Engine) findAccount(uow repository.UnitOfWork, accountNumber string) (*domain.Account, error) {
	account, err := uow.FindAccount(accountNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewNotFoundError("account %s not found", accountNumber)
	}
	return account, err
}

func (e *Engine) storeError(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Kind == domain.KindPersistence {
			e.logger.Error("Ledger change was not persisted", zap.Error(err))
		}
		return err
	}
	e.logger.Error("Ledger store failure", zap.Error(err))
	return &domain.Error{Kind: domain.KindInternal, Message: "ledger store failure", Err: err}
}

func (e *Engine) observe(operation string, start time.Time, err *error) {
	e.recorder.ObserveOperation(operation, time.Since(start), *err)
}

func (e *Engine) committed(
	eventType domain.EventType,
	owner *domain.Account,
	txs []*domain.Transaction,
	updates []domain.BalanceUpdate,
	touched ...*domain.Account,
) {
	accounts := make([]string, 0, len(touched))
	for i, a := range touched {
		e.recorder.SetBalance(a.AccountNumber, a.AccountType, updates[i].Current)
		accounts = append(accounts, a.AccountNumber)
	}

	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	e.logger.Info("Ledger transaction recorded",
		zap.String("event", string(eventType)),
		zap.Strings("accounts", accounts),
		zap.Strings("transaction_ids", ids),
		zap.String("amount", txs[0].Amount.String()))

	e.publisher.Publish(domain.LedgerEvent{
		Type:         eventType,
		CustomerID:   owner.CustomerID,
		Accounts:     accounts,
		Transactions: txs,
		Balances:     updates,
		OccurredAt:   txs[0].Timestamp,
	})
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, time.Duration, error)          {}
func (nopRecorder) SetBalance(string, domain.AccountType, decimal.Decimal) {}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.LedgerEvent) {}
