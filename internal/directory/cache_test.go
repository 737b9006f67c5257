package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAPI struct {
	calls     int
	operators []OperatorRecord
	err       error
}

func (c *countingAPI) GetOperators(context.Context) ([]OperatorRecord, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.operators, nil
}

func TestCacheListOperatorsUsesCache(t *testing.T) {
	api := &countingAPI{operators: []OperatorRecord{{ID: "op-1", OperatorName: "DocuCol"}}}
	cache := NewCache(api, NewMemoryKV(), time.Hour, discardLogger())

	first, err := cache.ListOperators(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := cache.ListOperators(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.calls, "second read must be served from cache")
}

func TestCacheListOperatorsBypass(t *testing.T) {
	api := &countingAPI{operators: []OperatorRecord{{ID: "op-1"}}}
	cache := NewCache(api, NewMemoryKV(), time.Hour, discardLogger())

	_, err := cache.ListOperators(context.Background(), true)
	require.NoError(t, err)
	_, err = cache.ListOperators(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	api := &countingAPI{operators: []OperatorRecord{{ID: "op-1"}}}
	cache := NewCache(api, NewMemoryKV(), time.Hour, discardLogger())

	_, err := cache.ListOperators(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background()))

	api.operators = []OperatorRecord{{ID: "op-1"}, {ID: "op-2"}}
	operators, err := cache.ListOperators(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, operators, 2)
	assert.Equal(t, 2, api.calls)
}

func TestCacheGetOperatorByID(t *testing.T) {
	api := &countingAPI{operators: []OperatorRecord{
		{ID: "op-1", OperatorName: "DocuCol", TransferAPIURL: "https://docucol.example/transfer"},
		{ID: "op-2", OperatorName: "OtherOp"},
	}}
	cache := NewCache(api, NewMemoryKV(), time.Hour, discardLogger())

	// Cold lookup refreshes the list and caches per-operator entries.
	operator, err := cache.GetOperatorByID(context.Background(), "op-2")
	require.NoError(t, err)
	assert.Equal(t, "OtherOp", operator.OperatorName)
	assert.Equal(t, 1, api.calls)

	// Warm lookup hits the per-operator key.
	operator, err = cache.GetOperatorByID(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, "https://docucol.example/transfer", operator.TransferAPIURL)
	assert.Equal(t, 1, api.calls)
}

func TestCacheGetOperatorByIDNotFound(t *testing.T) {
	api := &countingAPI{operators: []OperatorRecord{{ID: "op-1"}}}
	cache := NewCache(api, NewMemoryKV(), time.Hour, discardLogger())

	_, err := cache.GetOperatorByID(context.Background(), "op-404")
	require.ErrorIs(t, err, ErrOperatorNotFound)
}

func TestCacheSurvivesDirectoryOutageOnWarmCache(t *testing.T) {
	api := &countingAPI{operators: []OperatorRecord{{ID: "op-1"}}}
	cache := NewCache(api, NewMemoryKV(), time.Hour, discardLogger())

	_, err := cache.ListOperators(context.Background(), true)
	require.NoError(t, err)

	api.err = errors.New("directory down")
	operators, err := cache.ListOperators(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, operators, 1)
}

func TestMemoryKVExpiry(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Now()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(context.Background(), "k", "v", time.Minute))
	value, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	now = now.Add(2 * time.Minute)
	_, err = kv.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrCacheMiss)
}
