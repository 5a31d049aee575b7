package ledger

import (
	"bank_ledger/internal/domain"

	"github.com/shopspring/decimal"
)

type CreateCustomerCommand struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

type CreateAccountCommand struct {
	CustomerID  string             `json:"customerId" validate:"required"`
	AccountType domain.AccountType `json:"accountType" validate:"required,oneof=SAVINGS CHECKING"`
}

// MoneyCommand covers deposits and withdrawals.
type MoneyCommand struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount" validate:"positive_decimal"`
}

type TransferCommand struct {
	FromAccountNumber string          `json:"fromAccountNumber" validate:"required"`
	ToAccountNumber   string          `json:"toAccountNumber" validate:"required,nefield=FromAccountNumber"`
	Amount            decimal.Decimal `json:"amount" validate:"positive_decimal"`
}
