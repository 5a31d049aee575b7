package domain

import (
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountSavings  AccountType = "SAVINGS"
	AccountChecking AccountType = "CHECKING"
)

func (t AccountType) Valid() bool {
	return t == AccountSavings || t == AccountChecking
}

// Account balance is mutated only by the ledger engine and never drops below zero.
type Account struct {
	AccountNumber string          `json:"accountNumber"`
	AccountType   AccountType     `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	CustomerID    string          `json:"customerId"`
}

func NewAccount(accountNumber string, accountType AccountType, customerID string) *Account {
	return &Account{
		AccountNumber: accountNumber,
		AccountType:   accountType,
		Balance:       decimal.Zero,
		CustomerID:    customerID,
	}
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

type BalanceUpdate struct {
	AccountNumber string
	Previous      decimal.Decimal
	Current       decimal.Decimal
}
