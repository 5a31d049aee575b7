package redisstore

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/repository"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ repository.Persister = (*Persister)(nil)

const defaultPrefix = "ledger:"

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Persister stores each collection as one JSON value under
// <prefix>customers, <prefix>accounts and <prefix>transactions. Save writes all
// three inside a single MULTI/EXEC.
type Persister struct {
	client *redis.Client
	prefix string
}

func New(cfg Config) (*Persister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, cfg.Prefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *Persister {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Persister{
		client: client,
		prefix: prefix,
	}
}

func (p *Persister) key(collection string) string {
	return p.prefix + collection
}

func (p *Persister) Load(ctx context.Context) (*repository.Snapshot, error) {
	values, err := p.client.MGet(ctx,
		p.key("customers"),
		p.key("accounts"),
		p.key("transactions"),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger from Redis: %w", err)
	}

	if values[0] == nil && values[1] == nil && values[2] == nil {
		return nil, nil
	}

	snapshot := repository.EmptySnapshot()
	if err := decodeInto(values[0], &snapshot.Customers); err != nil {
		return nil, fmt.Errorf("customers: %w", err)
	}
	if err := decodeInto(values[1], &snapshot.Accounts); err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	if err := decodeInto(values[2], &snapshot.Transactions); err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	return snapshot, nil
}

func decodeInto[T any](value any, dst *[]T) error {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("unexpected value type %T", value)
	}
	return json.Unmarshal([]byte(s), dst)
}

func (p *Persister) Save(ctx context.Context, snapshot *repository.Snapshot) error {
	customers, err := marshalCollection(snapshot.Customers)
	if err != nil {
		return err
	}
	accounts, err := marshalCollection(snapshot.Accounts)
	if err != nil {
		return err
	}
	transactions, err := marshalCollection(snapshot.Transactions)
	if err != nil {
		return err
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key("customers"), customers, 0)
		pipe.Set(ctx, p.key("accounts"), accounts, 0)
		pipe.Set(ctx, p.key("transactions"), transactions, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save ledger to Redis: %w", err)
	}
	return nil
}

func marshalCollection[T *domain.Customer | *domain.Account | *domain.Transaction](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection: %w", err)
	}
	return b, nil
}

func (p *Persister) Close() error {
	return p.client.Close()
}
