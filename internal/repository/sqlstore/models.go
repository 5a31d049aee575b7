package sqlstore

import (
	"bank_ledger/internal/domain"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Amounts are stored as text so sqlite and postgres round-trip them exactly.

type customerModel struct {
	ID       string `gorm:"primaryKey;size:64"`
	Position int    `gorm:"not null;index"`
	Name     string `gorm:"not null"`
	Email    string `gorm:"not null"`
	Phone    string `gorm:"not null"`
}

func (customerModel) TableName() string { return "customers" }

type accountModel struct {
	AccountNumber string `gorm:"primaryKey;size:64"`
	Position      int    `gorm:"not null;index"`
	AccountType   string `gorm:"size:16;not null"`
	Balance       string `gorm:"not null"`
	CustomerID    string `gorm:"size:64;not null;index"`
}

func (accountModel) TableName() string { return "accounts" }

type transactionModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	Position       int       `gorm:"not null;index"`
	AccountNumber  string    `gorm:"size:64;not null;index"`
	Type           string    `gorm:"size:16;not null"`
	Amount         string    `gorm:"not null"`
	Timestamp      time.Time `gorm:"not null"`
	RelatedAccount string    `gorm:"size:64"`
	Direction      string    `gorm:"size:8"`
	Description    string
}

func (transactionModel) TableName() string { return "transactions" }

func fromCustomer(c *domain.Customer, pos int) customerModel {
	return customerModel{ID: c.ID, Position: pos, Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func (m customerModel) toDomain() *domain.Customer {
	return &domain.Customer{ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone}
}

func fromAccount(a *domain.Account, pos int) accountModel {
	return accountModel{
		AccountNumber: a.AccountNumber,
		Position:      pos,
		AccountType:   string(a.AccountType),
		Balance:       a.Balance.String(),
		CustomerID:    a.CustomerID,
	}
}

func (m accountModel) toDomain() (*domain.Account, error) {
	balance, err := decimal.NewFromString(m.Balance)
	if err != nil {
		return nil, fmt.Errorf("account %s balance: %w", m.AccountNumber, err)
	}
	return &domain.Account{
		AccountNumber: m.AccountNumber,
		AccountType:   domain.AccountType(m.AccountType),
		Balance:       balance,
		CustomerID:    m.CustomerID,
	}, nil
}

func fromTransaction(tx *domain.Transaction, pos int) transactionModel {
	return transactionModel{
		ID:             tx.ID,
		Position:       pos,
		AccountNumber:  tx.AccountNumber,
		Type:           string(tx.Type),
		Amount:         tx.Amount.String(),
		Timestamp:      tx.Timestamp.UTC(),
		RelatedAccount: tx.RelatedAccount,
		Description:    tx.Description,
		Direction:      string(tx.Direction),
	}
}

func (m transactionModel) toDomain() (*domain.Transaction, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s amount: %w", m.ID, err)
	}
	return &domain.Transaction{
		ID:             m.ID,
		AccountNumber:  m.AccountNumber,
		Type:           domain.TransactionType(m.Type),
		Amount:         amount,
		Timestamp:      m.Timestamp,
		RelatedAccount: m.RelatedAccount,
		Description:    m.Description,
		Direction:      domain.TransferDirection(m.Direction),
	}, nil
}
