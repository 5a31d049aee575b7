package memory

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/repository"
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	_ repository.Store      = (*Store)(nil)
	_ repository.UnitOfWork = (*unitOfWork)(nil)
)

// Store is the in-memory entity store. When a persister is set, every
// successful Update is written through it before the call returns; a failed
// write restores the collections to what they were before the Update.
type Store struct {
	mu           sync.RWMutex
	customers    *customerRepo
	accounts     *accountRepo
	transactions *transactionRepo
	persister    repository.Persister
	logger       *zap.Logger
}

func NewStore(persister repository.Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		customers:    newCustomerRepo(),
		accounts:     newAccountRepo(),
		transactions: newTransactionRepo(),
		persister:    persister,
		logger:       logger,
	}
}

// Open loads previously persisted collections. A missing snapshot leaves the
// store empty.
func (s *Store) Open(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	snapshot, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snapshot == nil {
		s.logger.Info("No persisted ledger found, starting empty")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customers := newCustomerRepo()
	accounts := newAccountRepo()
	transactions := newTransactionRepo()

	for _, c := range snapshot.Customers {
		if err := customers.insert(c); err != nil {
			return fmt.Errorf("load customers: %w", err)
		}
	}
	for _, a := range snapshot.Accounts {
		if err := accounts.insert(a); err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
	}
	domain.ResolveTransferDirections(snapshot.Transactions)
	for _, tx := range snapshot.Transactions {
		if err := transactions.append(tx); err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
	}

	s.customers = customers
	s.accounts = accounts
	s.transactions = transactions

	s.logger.Info("Ledger loaded",
		zap.Int("customers", customers.len()),
		zap.Int("accounts", accounts.len()),
		zap.Int("transactions", transactions.len()))

	return nil
}

func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

func (s *Store) FindCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", repository.ErrNotFound, id)
	}
	return customer, nil
}

func (s *Store) FindAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts.get(accountNumber)
	if !ok {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountNumber)
	}
	return account, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customers.list(), nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.list(), nil
}

func (s *Store) ListAccountsByCustomer(ctx context.Context, customerID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.byCustomer(customerID), nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.byAccount(accountNumber), nil
}

func (s *Store) ListAllTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.all(), nil
}

// Snapshot returns a copy of every collection.
func (s *Store) Snapshot() *repository.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *repository.Snapshot {
	return &repository.Snapshot{
		Customers:    s.customers.list(),
		Accounts:     s.accounts.list(),
		Transactions: s.transactions.all(),
	}
}

func (s *Store) Update(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uow := &unitOfWork{
		store:    s,
		balances: make(map[string]decimal.Decimal),
	}
	if err := fn(uow); err != nil {
		return err
	}
	if uow.empty() {
		return nil
	}

	undo, err := s.apply(uow)
	if err != nil {
		undo()
		return err
	}

	if s.persister == nil {
		return nil
	}

	if err := s.persister.Save(ctx, s.snapshotLocked()); err != nil {
		undo()
		s.logger.Error("Persist failed, ledger rolled back", zap.Error(err))
		return domain.NewPersistenceError(err)
	}

	return nil
}

// apply moves the staged batch into the collections and returns a func that
// reverses it.
func (s *Store) apply(uow *unitOfWork) (func(), error) {
	customerMark := 0
	accountMark := 0
	txMark := s.transactions.len()
	previous := make(map[string]decimal.Decimal, len(uow.balances))

	undo := func() {
		for number, balance := range previous {
			_ = s.accounts.setBalance(number, balance)
		}
		s.transactions.truncate(txMark)
		for ; accountMark > 0; accountMark-- {
			s.accounts.removeLast()
		}
		for ; customerMark > 0; customerMark-- {
			s.customers.removeLast()
		}
	}

	for _, c := range uow.customers {
		if err := s.customers.insert(c); err != nil {
			return undo, err
		}
		customerMark++
	}
	for _, a := range uow.accounts {
		if err := s.accounts.insert(a); err != nil {
			return undo, err
		}
		accountMark++
	}
	for number, balance := range uow.balances {
		current, ok := s.accounts.get(number)
		if !ok {
			return undo, fmt.Errorf("%w: account %s", repository.ErrNotFound, number)
		}
		previous[number] = current.Balance
		if err := s.accounts.setBalance(number, balance); err != nil {
			return undo, err
		}
	}
	for _, tx := range uow.transactions {
		if err := s.transactions.append(tx); err != nil {
			return undo, err
		}
	}

	return undo, nil
}

// unitOfWork stages writes; reads through it see staged values first.
type unitOfWork struct {
	store        *Store
	customers    []*domain.Customer
	accounts     []*domain.Account
	balances     map[string]decimal.Decimal
	transactions []*domain.Transaction
}

func (u *unitOfWork) empty() bool {
	return len(u.customers) == 0 && len(u.accounts) == 0 &&
		len(u.balances) == 0 && len(u.transactions) == 0
}

func (u *unitOfWork) FindCustomer(id string) (*domain.Customer, error) {
	for _, c := range u.customers {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	customer, ok := u.store.customers.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", repository.ErrNotFound, id)
	}
	return customer, nil
}

func (u *unitOfWork) FindAccount(accountNumber string) (*domain.Account, error) {
	var account *domain.Account
	for _, a := range u.accounts {
		if a.AccountNumber == accountNumber {
			account = a.Clone()
			break
		}
	}
	if account == nil {
		found, ok := u.store.accounts.get(accountNumber)
		if !ok {
			return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountNumber)
		}
		account = found
	}
	if balance, staged := u.balances[accountNumber]; staged {
		account.Balance = balance
	}
	return account, nil
}

func (u *unitOfWork) InsertCustomer(customer *domain.Customer) error {
	if _, err := u.FindCustomer(customer.ID); err == nil {
		return fmt.Errorf("%w: customer %s", repository.ErrDuplicate, customer.ID)
	}
	u.customers = append(u.customers, customer.Clone())
	return nil
}

func (u *unitOfWork) InsertAccount(account *domain.Account) error {
	if _, err := u.FindAccount(account.AccountNumber); err == nil {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.AccountNumber)
	}
	if _, err := u.FindCustomer(account.CustomerID); err != nil {
		return err
	}
	u.accounts = append(u.accounts, account.Clone())
	return nil
}

func (u *unitOfWork) SetBalance(accountNumber string, balance decimal.Decimal) error {
	if _, err := u.FindAccount(accountNumber); err != nil {
		return err
	}
	for _, a := range u.accounts {
		if a.AccountNumber == accountNumber {
			a.Balance = balance
			return nil
		}
	}
	u.balances[accountNumber] = balance
	return nil
}

func (u *unitOfWork) AppendTransaction(tx *domain.Transaction) error {
	if _, err := u.FindAccount(tx.AccountNumber); err != nil {
		return err
	}
	if _, exists := u.store.transactions.ids[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
	}
	for _, staged := range u.transactions {
		if staged.ID == tx.ID {
			return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
		}
	}
	u.transactions = append(u.transactions, tx.Clone())
	return nil
}
