package pubfile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheGetWithoutDirAlwaysFetches(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		return buildFile(t).Encode()
	}
	c := &Cache{}
	_, err := c.Get(context.Background(), fetch)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestCacheGetReusesFreshFile(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		return buildFile(t).Encode()
	}
	c := &Cache{Dir: t.TempDir(), TTL: time.Hour}

	_, err := c.Get(context.Background(), fetch)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestCacheGetRefetchesAfterTTL(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		return buildFile(t).Encode()
	}
	c := &Cache{Dir: t.TempDir(), TTL: -time.Second}

	_, err := c.Get(context.Background(), fetch)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
