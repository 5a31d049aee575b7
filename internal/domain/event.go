package domain

import (
	"time"
)

type EventType string

const (
	EventCustomerCreated EventType = "customer_created"
	EventAccountCreated  EventType = "account_created"
	EventDeposit         EventType = "deposit_recorded"
	EventWithdrawal      EventType = "withdrawal_recorded"
	EventTransfer        EventType = "transfer_recorded"
)

// LedgerEvent describes one committed ledger operation.
type LedgerEvent struct {
	Type         EventType
	CustomerID   string
	Accounts     []string
	Transactions []*Transaction
	Balances     []BalanceUpdate
	OccurredAt   time.Time
}
