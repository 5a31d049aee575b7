package service

import (
	"bank_ledger/internal/domain"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink receives audit events from the worker pool.
type Sink interface {
	Write(ctx context.Context, event domain.LedgerEvent) error
}

// AuditService fans committed ledger events out to sinks on a fixed set of
// workers. Publish never blocks: a full queue drops the event with a warning.
type AuditService struct {
	sinks        []Sink
	queue        chan domain.LedgerEvent
	workers      int
	shutdownChan chan struct{}
	closed       atomic.Bool
	dropped      atomic.Int64
	mu           sync.RWMutex
	wg           sync.WaitGroup
	logger       *zap.Logger
}

func NewAuditService(workers, buffer int, logger *zap.Logger, sinks ...Sink) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 1000
	}

	s := &AuditService{
		sinks:        sinks,
		queue:        make(chan domain.LedgerEvent, buffer),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	s.startWorkers()

	return s
}

func (s *AuditService) Publish(event domain.LedgerEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		s.dropped.Add(1)
		s.logger.Warn("Audit service closed, event dropped", zap.String("event", string(event.Type)))
		return
	}

	select {
	case s.queue <- event:
	default:
		s.dropped.Add(1)
		s.logger.Warn("Audit queue full, event dropped",
			zap.String("event", string(event.Type)),
			zap.Strings("accounts", event.Accounts))
	}
}

func (s *AuditService) Dropped() int64 {
	return s.dropped.Load()
}

func (s *AuditService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("Audit worker started", zap.Int("worker_id", id))

	for {
		select {
		case event := <-s.queue:
			s.deliver(event, id)
		case <-s.shutdownChan:
			// drain whatever was queued before shutdown
			for {
				select {
				case event := <-s.queue:
					s.deliver(event, id)
				default:
					s.logger.Debug("Audit worker stopping", zap.Int("worker_id", id))
					return
				}
			}
		}
	}
}

func (s *AuditService) deliver(event domain.LedgerEvent, workerID int) {
	start := time.Now()
	for _, sink := range s.sinks {
		if err := sink.Write(context.Background(), event); err != nil {
			s.logger.Error("Failed to write audit event",
				zap.String("event", string(event.Type)),
				zap.String("sink", fmt.Sprintf("%T", sink)),
				zap.Int("worker_id", workerID),
				zap.Error(err))
		}
	}
	s.logger.Debug("Audit event delivered",
		zap.String("event", string(event.Type)),
		zap.Int("worker_id", workerID),
		zap.Duration("duration", time.Since(start)))
}

// Shutdown stops accepting events and waits for the workers to drain the queue.
func (s *AuditService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed.Swap(true) {
		s.mu.Unlock()
		return nil
	}
	close(s.shutdownChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Audit service shutdown complete", zap.Int64("dropped", s.dropped.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSink writes one structured audit line per event.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (l *LogSink) Write(ctx context.Context, event domain.LedgerEvent) error {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if event.CustomerID != "" {
		fields = append(fields, zap.String("customer_id", event.CustomerID))
	}
	if len(event.Accounts) > 0 {
		fields = append(fields, zap.Strings("accounts", event.Accounts))
	}
	for _, tx := range event.Transactions {
		fields = append(fields, zap.Dict(tx.ID,
			zap.String("account_number", tx.AccountNumber),
			zap.String("type", string(tx.Type)),
			zap.String("amount", tx.Amount.String()),
			zap.String("related_account", tx.RelatedAccount),
		))
	}
	for _, b := range event.Balances {
		fields = append(fields, zap.String("balance."+b.AccountNumber, b.Previous.String()+" -> "+b.Current.String()))
	}

	l.logger.Info("Ledger audit", fields...)
	return nil
}

type MockSink struct {
	mu     sync.Mutex
	Events []domain.LedgerEvent
	Err    error
}

func (m *MockSink) Write(ctx context.Context, event domain.LedgerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

func (m *MockSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}
