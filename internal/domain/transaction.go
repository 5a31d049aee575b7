package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeTransfer   TransactionType = "TRANSFER"
)

// TransferDirection tells which side of a transfer a leg belongs to.
type TransferDirection string

const (
	DirectionOut TransferDirection = "OUT"
	DirectionIn  TransferDirection = "IN"
)

const (
	DescriptionDeposit    = "Cash Deposit"
	DescriptionWithdrawal = "Atm Withdrawal"
)

// Transaction records are append-only; nothing mutates one after it is stored.
type Transaction struct {
	ID             string            `json:"id"`
	AccountNumber  string            `json:"accountNumber"`
	Type           TransactionType   `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	Timestamp      time.Time         `json:"timestamp"`
	RelatedAccount string            `json:"relatedAccount,omitempty"`
	Description    string            `json:"description,omitempty"`
	Direction      TransferDirection `json:"direction,omitempty"`
}

func NewTransaction(id string, t TransactionType, accountNumber string, amount decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:            id,
		AccountNumber: accountNumber,
		Type:          t,
		Amount:        amount,
		Timestamp:     at,
	}
}

func (tx *Transaction) WithDescription(desc string) *Transaction {
	tx.Description = desc
	return tx
}

func (tx *Transaction) WithRelatedAccount(accountNumber string) *Transaction {
	tx.RelatedAccount = accountNumber
	return tx
}

func (tx *Transaction) WithDirection(d TransferDirection) *Transaction {
	tx.Direction = d
	return tx
}

func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return nil
	}
	cp := *tx
	return &cp
}

// Effect is the signed change this transaction made to its own account's balance.
func (tx *Transaction) Effect() decimal.Decimal {
	switch tx.Type {
	case TypeDeposit:
		return tx.Amount
	case TypeWithdrawal:
		return tx.Amount.Neg()
	case TypeTransfer:
		if tx.Direction == DirectionIn {
			return tx.Amount
		}
		return tx.Amount.Neg()
	default:
		return decimal.Zero
	}
}

type legKey struct {
	account string
	related string
	amount  string
}

// ResolveTransferDirections fills in Direction for transfer legs stored
// without one. txs must be in insertion order. A transfer appends its source
// leg first, so of two mirrored legs the earlier one is outgoing. A leg with
// no mirror is treated as outgoing.
func ResolveTransferDirections(txs []*Transaction) {
	pending := make(map[legKey][]*Transaction)

	for _, tx := range txs {
		if tx.Type != TypeTransfer || tx.Direction != "" {
			continue
		}
		amount := tx.Amount.String()
		mirror := legKey{account: tx.RelatedAccount, related: tx.AccountNumber, amount: amount}
		if waiting := pending[mirror]; len(waiting) > 0 {
			waiting[0].Direction = DirectionOut
			tx.Direction = DirectionIn
			pending[mirror] = waiting[1:]
			continue
		}
		key := legKey{account: tx.AccountNumber, related: tx.RelatedAccount, amount: amount}
		pending[key] = append(pending[key], tx)
	}

	for _, unpaired := range pending {
		for _, tx := range unpaired {
			tx.Direction = DirectionOut
		}
	}
}

func TransferOutDescription(to string) string {
	return fmt.Sprintf("Transfer to %s", to)
}

func TransferInDescription(from string) string {
	return fmt.Sprintf("Transfer from %s", from)
}
