package service

import (
	"bank_ledger/internal/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func depositEvent(n int) domain.LedgerEvent {
	return domain.LedgerEvent{
		Type:     domain.EventDeposit,
		Accounts: []string{"ACC-000001"},
		Transactions: []*domain.Transaction{{
			ID:            "TX-" + string(rune('A'+n)),
			AccountNumber: "ACC-000001",
			Type:          domain.TypeDeposit,
			Amount:        decimal.NewFromInt(int64(n + 1)),
		}},
		OccurredAt: time.Now(),
	}
}

func TestAuditService_DeliversAndDrainsOnShutdown(t *testing.T) {
	sink := &MockSink{}
	s := NewAuditService(2, 100, nil, sink)

	for i := 0; i < 20; i++ {
		s.Publish(depositEvent(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error on Shutdown: %v", err)
	}

	if sink.Count() != 20 {
		t.Errorf("expected 20 delivered events, got %d", sink.Count())
	}
	if s.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", s.Dropped())
	}
}

type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Write(ctx context.Context, event domain.LedgerEvent) error {
	<-b.release
	return nil
}

func TestAuditService_DropsWhenFull(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	sink := &blockingSink{release: make(chan struct{})}
	s := NewAuditService(1, 1, zap.New(core), sink)

	// one event parks the worker, one fills the buffer, the rest must drop
	for i := 0; i < 5; i++ {
		s.Publish(depositEvent(i))
		time.Sleep(5 * time.Millisecond)
	}

	if s.Dropped() < 3 {
		t.Errorf("expected at least 3 drops, got %d", s.Dropped())
	}
	if len(recorded.FilterMessage("Audit queue full, event dropped").All()) == 0 {
		t.Error("expected a warning for dropped events")
	}

	close(sink.release)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error on Shutdown: %v", err)
	}
}

func TestAuditService_PublishAfterShutdown(t *testing.T) {
	sink := &MockSink{}
	s := NewAuditService(1, 10, nil, sink)
	_ = s.Shutdown(context.Background())

	s.Publish(depositEvent(0))

	if s.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", s.Dropped())
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("expected second Shutdown to be a no-op, got %v", err)
	}
}

func TestAuditService_SinkErrorIsLogged(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	sink := &MockSink{Err: errors.New("sink offline")}
	s := NewAuditService(1, 10, zap.New(core), sink)

	s.Publish(depositEvent(0))
	_ = s.Shutdown(context.Background())

	if len(recorded.FilterMessage("Failed to write audit event").All()) != 1 {
		t.Errorf("expected one sink error log, got %d", recorded.Len())
	}
}

func TestLogSink_Write(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	event := depositEvent(0)
	event.CustomerID = "CUST-000001"
	event.Balances = []domain.BalanceUpdate{{
		AccountNumber: "ACC-000001",
		Previous:      decimal.Zero,
		Current:       decimal.NewFromInt(1),
	}}

	if err := sink.Write(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := recorded.FilterMessage("Ledger audit").All()
	if len(entries) != 1 {
		t.Fatalf("expected one audit line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["customer_id"] != "CUST-000001" {
		t.Errorf("expected customer_id, got %v", fields)
	}
	if fields["balance.ACC-000001"] != "0 -> 1" {
		t.Errorf("expected balance transition, got %v", fields["balance.ACC-000001"])
	}
	if entries[0].LoggerName != "audit" {
		t.Errorf("expected logger name audit, got %s", entries[0].LoggerName)
	}
}
