package memory

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/repository"
	"fmt"
)

// transactionRepo keeps transactions in insertion order. The account index
// stores positions into that slice.
type transactionRepo struct {
	transactions []*domain.Transaction
	ids          map[string]struct{}
	accountIndex map[string][]int
}

func newTransactionRepo() *transactionRepo {
	return &transactionRepo{
		ids:          make(map[string]struct{}),
		accountIndex: make(map[string][]int),
	}
}

func (r *transactionRepo) append(tx *domain.Transaction) error {
	if _, exists := r.ids[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
	}

	r.ids[tx.ID] = struct{}{}
	r.accountIndex[tx.AccountNumber] = append(r.accountIndex[tx.AccountNumber], len(r.transactions))
	r.transactions = append(r.transactions, tx.Clone())
	return nil
}

// truncate drops everything appended after the first n transactions.
func (r *transactionRepo) truncate(n int) {
	for len(r.transactions) > n {
		last := len(r.transactions) - 1
		tx := r.transactions[last]
		r.transactions = r.transactions[:last]

		delete(r.ids, tx.ID)
		idx := r.accountIndex[tx.AccountNumber]
		if len(idx) <= 1 {
			delete(r.accountIndex, tx.AccountNumber)
		} else {
			r.accountIndex[tx.AccountNumber] = idx[:len(idx)-1]
		}
	}
}

func (r *transactionRepo) byAccount(accountNumber string) []*domain.Transaction {
	positions := r.accountIndex[accountNumber]
	result := make([]*domain.Transaction, 0, len(positions))
	for _, pos := range positions {
		result = append(result, r.transactions[pos].Clone())
	}
	return result
}

func (r *transactionRepo) all() []*domain.Transaction {
	result := make([]*domain.Transaction, 0, len(r.transactions))
	for _, tx := range r.transactions {
		result = append(result, tx.Clone())
	}
	return result
}

func (r *transactionRepo) len() int {
	return len(r.transactions)
}
