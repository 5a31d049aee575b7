package memory

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/repository"
	"fmt"

	"github.com/shopspring/decimal"
)

// accountRepo is not safe on its own; Store guards it.
type accountRepo struct {
	accounts      map[string]*domain.Account
	order         []string
	customerIndex map[string][]string
}

func newAccountRepo() *accountRepo {
	return &accountRepo{
		accounts:      make(map[string]*domain.Account),
		customerIndex: make(map[string][]string),
	}
}

func (r *accountRepo) insert(account *domain.Account) error {
	if _, exists := r.accounts[account.AccountNumber]; exists {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.AccountNumber)
	}

	r.accounts[account.AccountNumber] = account.Clone()
	r.order = append(r.order, account.AccountNumber)
	r.customerIndex[account.CustomerID] = append(r.customerIndex[account.CustomerID], account.AccountNumber)

	return nil
}

// removeLast undoes the most recent insert.
func (r *accountRepo) removeLast() {
	if len(r.order) == 0 {
		return
	}
	number := r.order[len(r.order)-1]
	r.order = r.order[:len(r.order)-1]

	account := r.accounts[number]
	delete(r.accounts, number)

	idx := r.customerIndex[account.CustomerID]
	if len(idx) <= 1 {
		delete(r.customerIndex, account.CustomerID)
	} else {
		r.customerIndex[account.CustomerID] = idx[:len(idx)-1]
	}
}

func (r *accountRepo) get(accountNumber string) (*domain.Account, bool) {
	account, exists := r.accounts[accountNumber]
	if !exists {
		return nil, false
	}
	return account.Clone(), true
}

func (r *accountRepo) setBalance(accountNumber string, balance decimal.Decimal) error {
	account, exists := r.accounts[accountNumber]
	if !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, accountNumber)
	}
	account.Balance = balance
	return nil
}

func (r *accountRepo) list() []*domain.Account {
	result := make([]*domain.Account, 0, len(r.order))
	for _, number := range r.order {
		result = append(result, r.accounts[number].Clone())
	}
	return result
}

func (r *accountRepo) byCustomer(customerID string) []*domain.Account {
	numbers := r.customerIndex[customerID]
	result := make([]*domain.Account, 0, len(numbers))
	for _, number := range numbers {
		if account, exists := r.accounts[number]; exists {
			result = append(result, account.Clone())
		}
	}
	return result
}

func (r *accountRepo) len() int {
	return len(r.order)
}
