package redisstore

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a port nothing listens on.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewWithClient_DefaultPrefix(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	p := NewWithClient(client, "")
	assert.Equal(t, "ledger:customers", p.key("customers"))

	p = NewWithClient(client, "bank:")
	assert.Equal(t, "bank:transactions", p.key("transactions"))
}

func TestNew_FailsWithoutServer(t *testing.T) {
	_, err := New(Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestPersister_SaveSurfacesConnectionErrors(t *testing.T) {
	p := NewWithClient(unreachableClient(), "test:")
	defer p.Close()

	err := p.Save(context.Background(), repository.EmptySnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save ledger to Redis")
}

func TestPersister_LoadSurfacesConnectionErrors(t *testing.T) {
	p := NewWithClient(unreachableClient(), "test:")
	defer p.Close()

	_, err := p.Load(context.Background())
	require.Error(t, err)
}

func TestDecodeInto(t *testing.T) {
	var ids []map[string]string
	require.NoError(t, decodeInto(`[{"id":"CUST-000001"}]`, &ids))
	require.Len(t, ids, 1)
	assert.Equal(t, "CUST-000001", ids[0]["id"])

	require.NoError(t, decodeInto(nil, &ids))
	assert.Error(t, decodeInto(42, &ids))
}

func TestMarshalCollection_NilIsEmptyArray(t *testing.T) {
	var customers []*domain.Customer
	b, err := marshalCollection(customers)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}
