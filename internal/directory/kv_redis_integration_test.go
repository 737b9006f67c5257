//go:build integration

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josuedanielbust/docucol/pkg/testutil/containers"
)

func TestRedisKVRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := containers.StartRedis(t)
	kv := NewRedisKV(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "gov:operators", `[{"_id":"op-1"}]`, time.Minute))

	value, err := kv.Get(ctx, "gov:operators")
	require.NoError(t, err)
	require.Equal(t, `[{"_id":"op-1"}]`, value)

	require.NoError(t, kv.Del(ctx, "gov:operators"))
	_, err = kv.Get(ctx, "gov:operators")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisKVTTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := containers.StartRedis(t)
	kv := NewRedisKV(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "gov:operator:op-1", `{"_id":"op-1"}`, 500*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := kv.Get(ctx, "gov:operator:op-1")
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}
