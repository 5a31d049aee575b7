package validator

import (
	"errors"
	"testing"

	"bank_ledger/internal/domain"

	"github.com/shopspring/decimal"
)

type customerCmd struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type accountCmd struct {
	AccountType domain.AccountType `json:"accountType" validate:"required,oneof=SAVINGS CHECKING"`
}

type transferCmd struct {
	FromAccountNumber string          `json:"fromAccountNumber" validate:"required"`
	ToAccountNumber   string          `json:"toAccountNumber" validate:"required,nefield=FromAccountNumber"`
	Amount            decimal.Decimal `json:"amount" validate:"positive_decimal"`
}

func TestCommandValidator_Valid(t *testing.T) {
	v := NewCommandValidator()

	err := v.Struct(transferCmd{FromAccountNumber: "ACC-1", ToAccountNumber: "ACC-2", Amount: decimal.NewFromInt(30)})

	if err != nil {
		t.Fatalf("expected valid command, got err=%v", err)
	}
}

func TestCommandValidator_RequiredUsesJSONName(t *testing.T) {
	v := NewCommandValidator()

	err := v.Struct(customerCmd{Name: "Alice"})

	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var de *domain.Error
	errors.As(err, &de)
	if de.Message != "email is required" {
		t.Errorf("expected 'email is required', got %q", de.Message)
	}
}

func TestCommandValidator_AccountType(t *testing.T) {
	v := NewCommandValidator()

	if err := v.Struct(accountCmd{AccountType: domain.AccountChecking}); err != nil {
		t.Errorf("expected CHECKING to pass, got %v", err)
	}
	if err := v.Struct(accountCmd{AccountType: "BROKERAGE"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for BROKERAGE, got %v", err)
	}
}

func TestCommandValidator_PositiveDecimal(t *testing.T) {
	v := NewCommandValidator()

	cases := []struct {
		amount string
		ok     bool
	}{
		{"0.01", true},
		{"100", true},
		{"0", false},
		{"-5", false},
	}
	for _, tc := range cases {
		err := v.Struct(transferCmd{FromAccountNumber: "A", ToAccountNumber: "B", Amount: decimal.RequireFromString(tc.amount)})
		if tc.ok && err != nil {
			t.Errorf("amount %s: unexpected error %v", tc.amount, err)
		}
		if !tc.ok && !errors.Is(err, domain.ErrValidation) {
			t.Errorf("amount %s: expected validation error, got %v", tc.amount, err)
		}
	}
}

func TestCommandValidator_SameAccountTransfer(t *testing.T) {
	v := NewCommandValidator()

	err := v.Struct(transferCmd{FromAccountNumber: "ACC-1", ToAccountNumber: "ACC-1", Amount: decimal.NewFromInt(10)})

	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if de.Message != "cannot transfer to the same account" {
		t.Errorf("unexpected message %q", de.Message)
	}
}
